package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/availability"
	"github.com/example/hospital-availability/internal/fallback"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/storage"
	"github.com/example/hospital-availability/internal/tracking"
)

func newTestServer(t *testing.T, store storage.Store, secret string) *Server {
	t.Helper()
	svc := &availability.Service{Store: store, Logger: zerolog.Nop(), MaxPageSize: 100}
	return NewServer(svc, auth.NewAuthenticator(secret), tracking.NewHub(zerolog.Nop()), "", zerolog.Nop())
}

// seededStore is a writable store holding the same rows as fallback mode.
func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	m := storage.NewMemoryStore()
	require.NoError(t, fallback.Seed(context.Background(), m))
	return m
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListAndGetHospitals(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodGet, "/hospitals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hospitals := decode[[]models.Hospital](t, rec)
	require.Len(t, hospitals, 3)
	assert.Equal(t, "Apollo Hospital", hospitals[0].Name)
	assert.Empty(t, rec.Header().Get(dataSourceHeader))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodGet, "/hospitals?limit=1&offset=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hospitals = decode[[]models.Hospital](t, rec)
	require.Len(t, hospitals, 1)
	assert.Equal(t, "3", hospitals[0].ID)

	rec = do(t, s, http.MethodGet, "/hospitals?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/hospitals/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[models.HospitalDetails](t, rec)
	assert.Equal(t, "Manipal Hospital", details.Hospital.Name)
	assert.Len(t, details.Beds, fallback.BedsPerHospital)
	assert.Len(t, details.Ambulances, fallback.AmbulancesPerHospital)
}

func TestUnknownHospitalIs404WithMsg(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodGet, "/hospitals/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.NotEmpty(t, body["msg"])

	rec = do(t, s, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"msg"`)
}

func TestAvailabilitySummary(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodGet, "/hospitals/1/availability", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[models.AvailabilitySummary](t, rec)
	assert.Equal(t, 10, sum.TotalBeds)
	assert.Equal(t, 7, sum.AvailableBeds)
	assert.Equal(t, 3, sum.BookedBeds)
}

func TestMutationsRequireToken(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodPost, "/beds", "", map[string]any{"bedNumber": "B-200", "hospital": "1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token, authorization denied", decode[msgResponse](t, rec).Msg)

	rec = do(t, s, http.MethodPost, "/beds", "u1", map[string]any{"bedNumber": "B-200", "hospital": "1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bed := decode[models.Bed](t, rec)
	assert.NotEmpty(t, bed.ID)
	assert.True(t, bed.IsAvailable)

	rec = do(t, s, http.MethodPost, "/beds", "stranger", map[string]any{"bedNumber": "B-201", "hospital": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, http.MethodPost, "/beds", "u1", map[string]any{"bedNumber": "B-202", "hospital": "999"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/beds/"+bed.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bed removed", decode[msgResponse](t, rec).Msg)
}

func TestJWTMode(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, seededStore(t), secret)

	rec := do(t, s, http.MethodGet, "/bookings", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is not valid", decode[msgResponse](t, rec).Msg)

	tok, err := auth.Issue(secret, "u2", "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/hospitals/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2", decode[models.Hospital](t, rr).ID)
}

func TestFallbackModeReadsAndRefusesWrites(t *testing.T) {
	fb, err := fallback.New()
	require.NoError(t, err)
	s := newTestServer(t, fb, "")

	rec := do(t, s, http.MethodGet, "/hospitals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get(dataSourceHeader))
	assert.Len(t, decode[[]models.Hospital](t, rec), 3)

	rec = do(t, s, http.MethodPost, "/beds", "u1", map[string]any{"bedNumber": "B-200", "hospital": "1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get(dataSourceHeader))
	assert.NotEmpty(t, decode[msgResponse](t, rec).Msg)

	rec = do(t, s, http.MethodPost, "/bookings", "u1", map[string]any{"resourceType": "bed", "resourceId": "b-1-5"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fallback")
}

func TestBookingFlipsAvailability(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodPost, "/bookings", "patient", map[string]any{"resourceType": "bed", "resourceId": "b-1-5", "price": 1500})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bk := decode[models.Booking](t, rec)
	assert.Equal(t, "1", bk.HospitalID)
	assert.Equal(t, "patient", bk.UserID)

	rec = do(t, s, http.MethodPost, "/bookings", "patient", map[string]any{"resourceType": "bed", "resourceId": "b-1-5", "price": 1500})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/hospitals/1/availability", "", nil)
	sum := decode[models.AvailabilitySummary](t, rec)
	assert.Equal(t, 6, sum.AvailableBeds)
	assert.Equal(t, 4, sum.BookedBeds)

	rec = do(t, s, http.MethodPost, "/bookings", "patient", map[string]any{
		"hospitalName": "Fortis Hospital", "bedType": "", "date": "2026-05-01", "time": "09:00", "price": 900,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	legacy := decode[models.Booking](t, rec)
	assert.Equal(t, "3", legacy.HospitalID)
	require.NotNil(t, legacy.ScheduledFor)

	rec = do(t, s, http.MethodGet, "/bookings", "patient", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Booking](t, rec), 2)

	rec = do(t, s, http.MethodPost, "/bookings", "patient", map[string]any{"resourceType": "bed", "resourceId": "b-1-6", "price": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetAvailabilityEndpoint(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodPut, "/beds/b-1-1/availability", "u1", map[string]any{"isAvailable": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Bed](t, rec).IsAvailable)

	rec = do(t, s, http.MethodPut, "/beds/b-1-1/availability", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/ambulances/a-2-1/availability", "u2", map[string]any{"isAvailable": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.Ambulance](t, rec).IsAvailable)
}

func TestDeleteHospitalWithChildrenConflicts(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodDelete, "/hospitals/1", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/hospitals", "new-admin", map[string]any{"name": "Narayana Health", "rating": 4.2})
	require.Equal(t, http.StatusCreated, rec.Code)
	h := decode[models.Hospital](t, rec)
	assert.Equal(t, "new-admin", h.UserID)

	rec = do(t, s, http.MethodPut, "/hospitals/"+h.ID, "new-admin", map[string]any{"bio": "Bommasandra"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bommasandra", decode[models.Hospital](t, rec).Bio)

	rec = do(t, s, http.MethodPost, "/hospitals", "x", map[string]any{"name": "Bad", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/hospitals/"+h.ID, "new-admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAmbulanceLocationAndDispatch(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodPut, "/ambulance/location/a-1-1", "driver", map[string]any{"lat": 91, "lon": 77.6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/ambulance/location/a-1-1", "driver", map[string]any{"lat": 12.93, "lon": 77.58, "status": "en_route"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	amb := decode[models.Ambulance](t, rec)
	require.NotNil(t, amb.CurrentLocation)
	assert.Equal(t, []float64{77.58, 12.93}, amb.CurrentLocation.Coordinates)
	assert.Equal(t, models.StatusEnRoute, amb.Status)

	rec = do(t, s, http.MethodGet, "/ambulances/nearby?lat=12.93&lon=77.58", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	near := decode[[]models.NearbyAmbulance](t, rec)
	require.Len(t, near, 1)
	assert.Equal(t, "a-1-1", near[0].ID)

	rec = do(t, s, http.MethodGet, "/ambulances/nearby?lat=abc&lon=1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/ambulance/book", "patient", map[string]any{"hospitalId": "1", "pickupLat": 12.931, "pickupLon": 77.581})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	offer := decode[models.DispatchOffer](t, rec)
	assert.Equal(t, "a-1-1", offer.ID)
	assert.Equal(t, models.StatusDispatched, offer.Status)
	assert.NotEmpty(t, offer.BookingID)

	rec = do(t, s, http.MethodGet, "/ambulance/status/a-1-1", "patient", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[models.AmbulanceStatusView](t, rec)
	assert.Equal(t, models.StatusDispatched, st.Status)

	rec = do(t, s, http.MethodPost, "/ambulance/book", "patient", map[string]any{"hospitalId": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")

	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hospital_availability_http_requests_total")
}

func TestWebsocketReceivesLocationUpdates(t *testing.T) {
	s := newTestServer(t, seededStore(t), "")
	s.Service.Tracker = s.Hub
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/ambulances/a-3-2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub.Subscribers("a-3-2") == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := do(t, s, http.MethodPut, "/ambulance/location/a-3-2", "driver", map[string]any{"lat": 12.9, "lon": 77.6})
	require.Equal(t, http.StatusOK, rec.Code)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.LocationEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "a-3-2", ev.AmbulanceID)
	assert.Equal(t, "3", ev.HospitalID)
	assert.InDelta(t, 12.9, ev.Loc.Lat, 1e-9)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/ambulances/missing", nil)
	assert.Error(t, err)
}
