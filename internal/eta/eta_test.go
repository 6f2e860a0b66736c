package eta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hospital-availability/internal/models"
)

func TestEstimateSecondsUsesSpeed(t *testing.T) {
	from := models.Coord{Lat: 0, Lon: 0}
	to := models.Coord{Lat: 0.01, Lon: 0}
	slow := EstimateSeconds(from, to, 5)
	fast := EstimateSeconds(from, to, 10)
	assert.InDelta(t, slow/2, fast, 1e-6)
	assert.Greater(t, EstimateSeconds(from, to, 0), 0.0)
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	a, b := models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2}
	c.Set(a, b, 42)
	v, ok := c.Get(a, b)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get(a, b)
	assert.False(t, ok)
}

func TestOSRMClientParsesDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/77.594600,12.971600;"))
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"duration":321.5}]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL + "/")
	got, err := c.EstimateSeconds(context.Background(), models.Coord{Lat: 12.9716, Lon: 77.5946}, models.Coord{Lat: 12.98, Lon: 77.6})
	require.NoError(t, err)
	assert.Equal(t, 321.5, got)
}

func TestOSRMClientNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	_, err := NewOSRMClient(srv.URL).EstimateSeconds(context.Background(), models.Coord{}, models.Coord{Lat: 1})
	assert.Error(t, err)
}
