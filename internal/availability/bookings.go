package availability

import (
	"context"
	"strings"
	"time"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/observability"
	"github.com/example/hospital-availability/internal/storage"
)

// BookingRequest books one resource by id.
type BookingRequest struct {
	ResourceType models.ResourceType `json:"resourceType"`
	ResourceID   string              `json:"resourceId"`
	Price        float64             `json:"price"`
	ScheduledFor *time.Time          `json:"scheduledFor,omitempty"`
}

// LegacyBookingRequest is the body older clients send: a bed picked by
// hospital name and bed type.
type LegacyBookingRequest struct {
	HospitalName string  `json:"hospitalName"`
	BedType      string  `json:"bedType"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Price        float64 `json:"price"`
}

var (
	dateLayouts = []string{"2006-01-02", "02/01/2006", "Jan 2, 2006", "2 Jan 2006"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3 PM"}
)

// CreateBooking reserves the resource and records the booking in one store
// transition, so a resource is never booked twice.
func (s *Service) CreateBooking(ctx context.Context, caller auth.Principal, req BookingRequest) (*models.Booking, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if caller.UserID == "" {
		return nil, apperrors.Unauthorized("No token, authorization denied")
	}
	bk := &models.Booking{
		ResourceType: req.ResourceType,
		ResourceID:   strings.TrimSpace(req.ResourceID),
		UserID:       caller.UserID,
		Price:        req.Price,
		ScheduledFor: req.ScheduledFor,
	}
	var err error
	switch req.ResourceType {
	case models.ResourceBed:
		_, err = s.Store.ReserveBed(ctx, bk)
	case models.ResourceAmbulance:
		var a *models.Ambulance
		a, err = s.Store.ReserveAmbulance(ctx, bk, models.StatusDispatched)
		if err == nil && a.CurrentLocation != nil {
			s.fanout(ctx, a)
		}
	default:
		err = apperrors.Validation("resourceType must be bed or ambulance")
	}
	recordBooking(req.ResourceType, err)
	if err != nil {
		return nil, err
	}
	s.Logger.Info().
		Str("booking_id", bk.ID).
		Str("resource_type", string(bk.ResourceType)).
		Str("resource_id", bk.ResourceID).
		Str("user", bk.UserID).
		Msg("booking created")
	return bk, nil
}

// CreateLegacyBooking resolves the hospital by name and books the first
// available bed of the requested type. A bed taken concurrently between
// listing and reserving is skipped in favour of the next one.
func (s *Service) CreateLegacyBooking(ctx context.Context, caller auth.Principal, req LegacyBookingRequest) (*models.Booking, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.HospitalName) == "" {
		return nil, apperrors.Validation("hospitalName is required")
	}
	if req.Price < 0 {
		return nil, apperrors.Validation("price must not be negative")
	}
	scheduled, err := parseSchedule(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	h, err := s.Store.FindHospitalByName(ctx, req.HospitalName)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, apperrors.Validation("hospital %q does not exist", req.HospitalName)
	}
	if err != nil {
		return nil, err
	}
	yes := true
	beds, err := s.Store.ListBeds(ctx, storage.BedFilter{HospitalID: h.ID, Available: &yes})
	if err != nil {
		return nil, err
	}
	for _, b := range bedsOfType(beds, req.BedType) {
		bk, err := s.CreateBooking(ctx, caller, BookingRequest{
			ResourceType: models.ResourceBed,
			ResourceID:   b.ID,
			Price:        req.Price,
			ScheduledFor: scheduled,
		})
		if apperrors.Is(err, apperrors.KindValidation) {
			continue
		}
		return bk, err
	}
	if req.BedType != "" {
		return nil, apperrors.Validation("no %s bed available at %s", req.BedType, h.Name)
	}
	return nil, apperrors.Validation("no bed available at %s", h.Name)
}

// bedsOfType orders the beds that can serve a requested type: exact matches
// first, then untyped beds, which serve any type.
func bedsOfType(beds []models.Bed, bedType string) []models.Bed {
	if strings.TrimSpace(bedType) == "" {
		return beds
	}
	var typed, untyped []models.Bed
	for _, b := range beds {
		switch {
		case strings.EqualFold(b.BedType, bedType):
			typed = append(typed, b)
		case strings.TrimSpace(b.BedType) == "":
			untyped = append(untyped, b)
		}
	}
	return append(typed, untyped...)
}

// parseSchedule combines the legacy date and time strings. Both empty means
// unscheduled; a time without a date is rejected.
func parseSchedule(date, clock string) (*time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" && clock == "" {
		return nil, nil
	}
	if date == "" {
		return nil, apperrors.Validation("date is required when time is given")
	}
	var day time.Time
	var ok bool
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, date); err == nil {
			day, ok = d, true
			break
		}
	}
	if !ok {
		return nil, apperrors.Validation("date %q must look like 2006-01-02", date)
	}
	if clock != "" {
		ok = false
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.ToUpper(clock)); err == nil {
				day = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second)
				ok = true
				break
			}
		}
		if !ok {
			return nil, apperrors.Validation("time %q must look like 15:04", clock)
		}
	}
	day = day.UTC()
	return &day, nil
}

func recordBooking(rt models.ResourceType, err error) {
	resource := string(rt)
	if !rt.Valid() {
		resource = "unknown"
	}
	outcome := "booked"
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.KindValidation):
		outcome = "rejected"
	case apperrors.Is(err, apperrors.KindUnavailable):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	observability.BookingsTotal.WithLabelValues(resource, outcome).Inc()
}
