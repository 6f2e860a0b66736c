package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/availability"
	"github.com/example/hospital-availability/internal/storage"
	"github.com/example/hospital-availability/internal/tracking"
)

const dataSourceHeader = "X-Data-Source"

type Server struct {
	Service *availability.Service
	Auth    *auth.Authenticator
	Hub     *tracking.Hub

	authHeader string
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
	mux        *mux.Router
}

// NewServer wires routes and middleware. authHeader names the header that
// carries the token; Authorization: Bearer is always accepted as well.
func NewServer(svc *availability.Service, authn *auth.Authenticator, hub *tracking.Hub, authHeader string, logger zerolog.Logger) *Server {
	if authHeader == "" {
		authHeader = "x-auth-token"
	}
	s := &Server{
		Service:    svc,
		Auth:       authn,
		Hub:        hub,
		authHeader: authHeader,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		mux:    mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.mux
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMsg(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMsg(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	// literal segments first so they are not captured by {id}
	r.Handle("/hospitals/me", s.authed(s.handleMyHospital)).Methods(http.MethodGet)
	r.HandleFunc("/hospitals", s.handleListHospitals).Methods(http.MethodGet)
	r.Handle("/hospitals", s.authed(s.handleCreateHospital)).Methods(http.MethodPost)
	r.HandleFunc("/hospitals/{id}", s.handleGetHospital).Methods(http.MethodGet)
	r.HandleFunc("/hospitals/{id}/availability", s.handleHospitalAvailability).Methods(http.MethodGet)
	r.Handle("/hospitals/{id}", s.authed(s.handleUpdateHospital)).Methods(http.MethodPut)
	r.Handle("/hospitals/{id}", s.authed(s.handleDeleteHospital)).Methods(http.MethodDelete)

	r.HandleFunc("/beds", s.handleListBeds).Methods(http.MethodGet)
	r.Handle("/beds", s.authed(s.handleCreateBed)).Methods(http.MethodPost)
	r.Handle("/beds/{id}/availability", s.authed(s.handleSetBedAvailability)).Methods(http.MethodPut)
	r.Handle("/beds/{id}", s.authed(s.handleDeleteBed)).Methods(http.MethodDelete)

	r.HandleFunc("/ambulances/nearby", s.handleNearbyAmbulances).Methods(http.MethodGet)
	r.HandleFunc("/ambulances", s.handleListAmbulances).Methods(http.MethodGet)
	r.Handle("/ambulances", s.authed(s.handleCreateAmbulance)).Methods(http.MethodPost)
	r.Handle("/ambulances/{id}/availability", s.authed(s.handleSetAmbulanceAvailability)).Methods(http.MethodPut)
	r.Handle("/ambulances/{id}", s.authed(s.handleDeleteAmbulance)).Methods(http.MethodDelete)

	r.Handle("/ambulance/location/{id}", s.authed(s.handleUpdateLocation)).Methods(http.MethodPut)
	r.Handle("/ambulance/book", s.authed(s.handleDispatch)).Methods(http.MethodPost)
	r.Handle("/ambulance/status/{id}", s.authed(s.handleAmbulanceStatus)).Methods(http.MethodGet)

	r.Handle("/bookings", s.authed(s.handleCreateBooking)).Methods(http.MethodPost)
	r.Handle("/bookings", s.authed(s.handleListBookings)).Methods(http.MethodGet)

	r.HandleFunc("/ws/ambulances/{id}", s.handleWS).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) fallbackMode() bool {
	return s.Service.Store.Mode() == storage.ModeFallback
}
