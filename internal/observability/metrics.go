package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hospital_availability"

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_total", Help: "Booking attempts by resource type and outcome"},
		[]string{"resource", "outcome"},
	)
	AvailabilityChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "availability_changes_total", Help: "Admin availability flag updates"},
		[]string{"resource"},
	)
	LocationUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "ambulance_location_updates_total", Help: "Accepted ambulance location reports"})
	FanoutErrors    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "location_fanout_errors_total", Help: "Failed best-effort location fan-outs"},
		[]string{"sink"},
	)
	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "dispatch_latency_seconds", Help: "Ambulance dispatch latency seconds"})
	FallbackMode    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "fallback_mode", Help: "1 when serving the seeded fallback dataset"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
