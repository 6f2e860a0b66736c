package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/availability"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/storage"
)

type hospitalBody struct {
	Name   string   `json:"name"`
	Bio    string   `json:"bio"`
	Rating *float64 `json:"rating"`
	Photo  string   `json:"photo"`
}

type bedBody struct {
	BedNumber   string `json:"bedNumber"`
	HospitalID  string `json:"hospital"`
	BedType     string `json:"bedType"`
	IsAvailable *bool  `json:"isAvailable"`
}

type ambulanceBody struct {
	AmbulanceNumber string                 `json:"ambulanceNumber"`
	HospitalID      string                 `json:"hospital"`
	IsAvailable     *bool                  `json:"isAvailable"`
	Status          models.AmbulanceStatus `json:"status"`
}

type availabilityBody struct {
	IsAvailable *bool `json:"isAvailable"`
}

// bookingBody accepts both the id-based shape and the legacy
// hospitalName/bedType shape.
type bookingBody struct {
	ResourceType models.ResourceType `json:"resourceType"`
	ResourceID   string              `json:"resourceId"`
	ScheduledFor *time.Time          `json:"scheduledFor"`

	HospitalName string `json:"hospitalName"`
	BedType      string `json:"bedType"`
	Date         string `json:"date"`
	Time         string `json:"time"`

	Price float64 `json:"price"`
}

func (b bookingBody) legacy() bool {
	return b.ResourceID == "" && b.ResourceType == "" && b.HospitalName != ""
}

type dispatchBody struct {
	HospitalID string   `json:"hospitalId"`
	PickupLat  *float64 `json:"pickupLat"`
	PickupLon  *float64 `json:"pickupLon"`
	Price      float64  `json:"price"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hospital Admin Server is running"))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": string(s.Service.Store.Mode())})
}

// handleReadyz reports ready in fallback mode too; the process can serve
// reads, and the mode is visible in the body.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Service.Store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		writeMsg(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "store": string(s.Service.Store.Mode())})
}

// ---- hospitals ----

func (s *Server) handleListHospitals(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hospitals, err := s.Service.ListHospitals(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hospitals)
}

func (s *Server) handleGetHospital(w http.ResponseWriter, r *http.Request) {
	d, err := s.Service.GetHospitalDetails(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleHospitalAvailability(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Service.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleMyHospital(w http.ResponseWriter, r *http.Request) {
	h, err := s.Service.MyHospital(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleCreateHospital(w http.ResponseWriter, r *http.Request) {
	var body hospitalBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.Service.CreateHospital(r.Context(), caller(r), models.Hospital{
		Name:   body.Name,
		Bio:    body.Bio,
		Rating: body.Rating,
		Photo:  body.Photo,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleUpdateHospital(w http.ResponseWriter, r *http.Request) {
	var patch models.HospitalPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.Service.UpdateHospital(r.Context(), caller(r), mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHospital(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.DeleteHospital(r.Context(), caller(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Hospital removed")
}

// ---- beds ----

func (s *Server) handleListBeds(w http.ResponseWriter, r *http.Request) {
	beds, err := s.Service.ListBeds(r.Context(), r.URL.Query().Get("hospital"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, beds)
}

func (s *Server) handleCreateBed(w http.ResponseWriter, r *http.Request) {
	var body bedBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.Service.AddBed(r.Context(), caller(r), models.Bed{
		BedNumber:   body.BedNumber,
		HospitalID:  body.HospitalID,
		BedType:     body.BedType,
		IsAvailable: body.IsAvailable == nil || *body.IsAvailable,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleSetBedAvailability(w http.ResponseWriter, r *http.Request) {
	s.setAvailability(w, r, models.ResourceBed)
}

func (s *Server) handleDeleteBed(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.DeleteBed(r.Context(), caller(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Bed removed")
}

// ---- ambulances ----

func (s *Server) handleListAmbulances(w http.ResponseWriter, r *http.Request) {
	ambulances, err := s.Service.ListAmbulances(r.Context(), r.URL.Query().Get("hospital"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ambulances)
}

func (s *Server) handleNearbyAmbulances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"), "lat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lon, err := floatParam(q.Get("lon"), "lon")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.Service.NearbyAmbulances(r.Context(), models.Coord{Lat: lat, Lon: lon}, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAmbulance(w http.ResponseWriter, r *http.Request) {
	var body ambulanceBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.Service.AddAmbulance(r.Context(), caller(r), models.Ambulance{
		AmbulanceNumber: body.AmbulanceNumber,
		HospitalID:      body.HospitalID,
		IsAvailable:     body.IsAvailable == nil || *body.IsAvailable,
		Status:          body.Status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleSetAmbulanceAvailability(w http.ResponseWriter, r *http.Request) {
	s.setAvailability(w, r, models.ResourceAmbulance)
}

func (s *Server) handleDeleteAmbulance(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.DeleteAmbulance(r.Context(), caller(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Ambulance removed")
}

func (s *Server) setAvailability(w http.ResponseWriter, r *http.Request, rt models.ResourceType) {
	var body availabilityBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.IsAvailable == nil {
		s.writeError(w, r, apperrors.Validation("isAvailable is required"))
		return
	}
	out, err := s.Service.SetAvailability(r.Context(), caller(r), rt, mux.Vars(r)["id"], *body.IsAvailable)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- ambulance operations ----

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var body availability.LocationRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.Service.UpdateAmbulanceLocation(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var body dispatchBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.PickupLat == nil || body.PickupLon == nil {
		s.writeError(w, r, apperrors.Validation("pickupLat and pickupLon are required"))
		return
	}
	offer, err := s.Service.DispatchAmbulance(r.Context(), caller(r), availability.DispatchRequest{
		HospitalID: body.HospitalID,
		Pickup:     models.Coord{Lat: *body.PickupLat, Lon: *body.PickupLon},
		Price:      body.Price,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleAmbulanceStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Service.AmbulanceStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ---- bookings ----

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body bookingBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	var (
		bk  *models.Booking
		err error
	)
	if body.legacy() {
		bk, err = s.Service.CreateLegacyBooking(r.Context(), caller(r), availability.LegacyBookingRequest{
			HospitalName: body.HospitalName,
			BedType:      body.BedType,
			Date:         body.Date,
			Time:         body.Time,
			Price:        body.Price,
		})
	} else {
		bk, err = s.Service.CreateBooking(r.Context(), caller(r), availability.BookingRequest{
			ResourceType: body.ResourceType,
			ResourceID:   body.ResourceID,
			Price:        body.Price,
			ScheduledFor: body.ScheduledFor,
		})
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bk)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.Service.ListBookings(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ---- tracking ----

// handleWS streams location events for one ambulance until the client
// disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.Service.Store.GetAmbulance(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug().Err(err).Str("ambulance_id", id).Msg("websocket upgrade failed")
		return
	}
	s.Hub.Subscribe(id, conn)
}

// ---- helpers ----

func caller(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func pageFrom(r *http.Request) (storage.Page, error) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return storage.Page{}, err
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		return storage.Page{}, err
	}
	return storage.Page{Limit: limit, Offset: offset}, nil
}

func intParam(v, name string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

func floatParam(v, name string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, apperrors.Validation("%s is required", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.Validation("%s must be a number", name)
	}
	return f, nil
}
