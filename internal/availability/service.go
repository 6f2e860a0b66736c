// Package availability holds the business rules of the service: derived
// availability counts, booking transitions, ownership checks and ambulance
// location handling. It sits between the HTTP gateway and the store.
package availability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/fallback"
	"github.com/example/hospital-availability/internal/geo"
	"github.com/example/hospital-availability/internal/matcher"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/observability"
	"github.com/example/hospital-availability/internal/storage"
)

const (
	defaultNearbyLimit   = 10
	defaultFanoutTimeout = 2 * time.Second
)

// LocationPublisher is satisfied by *ingest.KafkaProducer.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, ev models.LocationEvent) error
}

// Broadcaster is satisfied by *tracking.Hub.
type Broadcaster interface {
	Publish(ev models.LocationEvent)
}

// Ranker orders ambulances for a pickup; satisfied by *matcher.Service.
type Ranker interface {
	Rank(ctx context.Context, pickup models.Coord, ambulances []models.Ambulance) []matcher.Candidate
}

// Service is stateless across requests. Only Store is required; every other
// collaborator is skipped when nil.
type Service struct {
	Store   storage.Store
	Geo     geo.Index
	Events  LocationPublisher
	Tracker Broadcaster
	Ranker  Ranker
	Logger  zerolog.Logger

	NearbyRadiusM float64
	MaxPageSize   int
	FanoutTimeout time.Duration
}

// ---- reads ----

// GetHospitalDetails returns a hospital with its beds and ambulances. The
// hospital lookup gates the others so an unknown id never lists children.
func (s *Service) GetHospitalDetails(ctx context.Context, id string) (*models.HospitalDetails, error) {
	h, err := s.Store.GetHospital(ctx, id)
	if err != nil {
		return nil, err
	}
	beds, err := s.Store.ListBeds(ctx, storage.BedFilter{HospitalID: id})
	if err != nil {
		return nil, err
	}
	ambulances, err := s.Store.ListAmbulances(ctx, storage.AmbulanceFilter{HospitalID: id})
	if err != nil {
		return nil, err
	}
	return &models.HospitalDetails{Hospital: *h, Beds: beds, Ambulances: ambulances}, nil
}

// ListHospitals pages through hospitals. A zero limit returns every hospital;
// an explicit limit is capped at MaxPageSize when one is configured.
func (s *Service) ListHospitals(ctx context.Context, page storage.Page) ([]models.Hospital, error) {
	if page.Limit < 0 || page.Offset < 0 {
		return nil, apperrors.Validation("limit and offset must not be negative")
	}
	if s.MaxPageSize > 0 && page.Limit > s.MaxPageSize {
		page.Limit = s.MaxPageSize
	}
	return s.Store.ListHospitals(ctx, page)
}

func (s *Service) Summary(ctx context.Context, hospitalID string) (*models.AvailabilitySummary, error) {
	d, err := s.GetHospitalDetails(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	sum := Summarize(hospitalID, d.Beds, d.Ambulances)
	return &sum, nil
}

// Summarize derives the counts; availableBeds + bookedBeds == totalBeds.
func Summarize(hospitalID string, beds []models.Bed, ambulances []models.Ambulance) models.AvailabilitySummary {
	sum := models.AvailabilitySummary{
		HospitalID:      hospitalID,
		TotalBeds:       len(beds),
		TotalAmbulances: len(ambulances),
	}
	for _, b := range beds {
		if b.IsAvailable {
			sum.AvailableBeds++
		}
	}
	sum.BookedBeds = sum.TotalBeds - sum.AvailableBeds
	for _, a := range ambulances {
		if a.IsAvailable {
			sum.AvailableAmbulances++
		}
	}
	return sum
}

func (s *Service) ListBeds(ctx context.Context, hospitalID string) ([]models.Bed, error) {
	return s.Store.ListBeds(ctx, storage.BedFilter{HospitalID: hospitalID})
}

func (s *Service) ListAmbulances(ctx context.Context, hospitalID string) ([]models.Ambulance, error) {
	return s.Store.ListAmbulances(ctx, storage.AmbulanceFilter{HospitalID: hospitalID})
}

// ListBookings returns the caller's own bookings.
func (s *Service) ListBookings(ctx context.Context, caller auth.Principal) ([]models.Booking, error) {
	if caller.UserID == "" {
		return nil, apperrors.Unauthorized("No token, authorization denied")
	}
	return s.Store.ListBookings(ctx, storage.BookingFilter{UserID: caller.UserID})
}

// MyHospital returns the hospital administered by the caller.
func (s *Service) MyHospital(ctx context.Context, caller auth.Principal) (*models.Hospital, error) {
	return s.Store.FindHospitalByUser(ctx, caller.UserID)
}

func (s *Service) AmbulanceStatus(ctx context.Context, id string) (*models.AmbulanceStatusView, error) {
	a, err := s.Store.GetAmbulance(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AmbulanceStatusView{
		ID:                a.ID,
		Status:            a.Status,
		IsAvailable:       a.IsAvailable,
		CurrentLocation:   a.CurrentLocation,
		LocationUpdatedAt: a.LocationUpdatedAt,
	}, nil
}

// ---- hospital administration ----

// CreateHospital registers h with the caller as its owner.
func (s *Service) CreateHospital(ctx context.Context, caller auth.Principal, h models.Hospital) (*models.Hospital, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	h.ID = ""
	h.Name = strings.TrimSpace(h.Name)
	h.UserID = caller.UserID
	if err := s.Store.CreateHospital(ctx, &h); err != nil {
		return nil, err
	}
	s.Logger.Info().Str("hospital_id", h.ID).Str("user", caller.UserID).Msg("hospital created")
	return &h, nil
}

func (s *Service) UpdateHospital(ctx context.Context, caller auth.Principal, id string, patch models.HospitalPatch) (*models.Hospital, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if _, err := s.ownedHospital(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.Store.UpdateHospital(ctx, id, patch)
}

func (s *Service) DeleteHospital(ctx context.Context, caller auth.Principal, id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, err := s.ownedHospital(ctx, caller, id); err != nil {
		return err
	}
	if err := s.Store.DeleteHospital(ctx, id); err != nil {
		return err
	}
	s.Logger.Info().Str("hospital_id", id).Str("user", caller.UserID).Msg("hospital deleted")
	return nil
}

// ---- beds and ambulances ----

func (s *Service) AddBed(ctx context.Context, caller auth.Principal, b models.Bed) (*models.Bed, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if err := s.ownedParent(ctx, caller, b.HospitalID); err != nil {
		return nil, err
	}
	b.ID = ""
	if err := s.Store.CreateBed(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) DeleteBed(ctx context.Context, caller auth.Principal, id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	b, err := s.Store.GetBed(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ownedHospital(ctx, caller, b.HospitalID); err != nil {
		return err
	}
	return s.Store.DeleteBed(ctx, id)
}

func (s *Service) AddAmbulance(ctx context.Context, caller auth.Principal, a models.Ambulance) (*models.Ambulance, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if err := s.ownedParent(ctx, caller, a.HospitalID); err != nil {
		return nil, err
	}
	a.ID = ""
	if a.Status == "" {
		a.Status = models.StatusAvailable
	}
	if err := s.Store.CreateAmbulance(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) DeleteAmbulance(ctx context.Context, caller auth.Principal, id string) error {
	if err := s.writable(); err != nil {
		return err
	}
	a, err := s.Store.GetAmbulance(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ownedHospital(ctx, caller, a.HospitalID); err != nil {
		return err
	}
	if err := s.Store.DeleteAmbulance(ctx, id); err != nil {
		return err
	}
	if s.Geo != nil {
		ctx, cancel := s.fanoutContext(ctx)
		defer cancel()
		if err := s.Geo.Remove(ctx, id); err != nil {
			observability.FanoutErrors.WithLabelValues("geo").Inc()
			s.Logger.Warn().Err(err).Str("ambulance_id", id).Msg("geo index remove failed")
		}
	}
	return nil
}

// SetAvailability sets the flag to exactly the given value; repeating the
// call is harmless.
func (s *Service) SetAvailability(ctx context.Context, caller auth.Principal, rt models.ResourceType, id string, available bool) (any, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	switch rt {
	case models.ResourceBed:
		b, err := s.Store.GetBed(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := s.ownedHospital(ctx, caller, b.HospitalID); err != nil {
			return nil, err
		}
		out, err := s.Store.SetBedAvailability(ctx, id, available)
		if err != nil {
			return nil, err
		}
		observability.AvailabilityChanges.WithLabelValues(string(rt)).Inc()
		return out, nil
	case models.ResourceAmbulance:
		a, err := s.Store.GetAmbulance(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := s.ownedHospital(ctx, caller, a.HospitalID); err != nil {
			return nil, err
		}
		out, err := s.Store.SetAmbulanceAvailability(ctx, id, available)
		if err != nil {
			return nil, err
		}
		observability.AvailabilityChanges.WithLabelValues(string(rt)).Inc()
		if out.CurrentLocation != nil {
			s.fanout(ctx, out)
		}
		return out, nil
	default:
		return nil, apperrors.Validation("unknown resource type %q", rt)
	}
}

// ownedHospital loads the hospital and checks the caller may administer it.
// Hospitals without an owner are open to any authenticated caller.
func (s *Service) ownedHospital(ctx context.Context, caller auth.Principal, id string) (*models.Hospital, error) {
	h, err := s.Store.GetHospital(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.UserID != "" && h.UserID != caller.UserID && caller.Role != auth.RoleAdmin {
		return nil, apperrors.Forbidden("not authorized to manage this hospital")
	}
	return h, nil
}

// ownedParent is ownedHospital for a hospital referenced from a request
// body, where an unknown id is a validation problem rather than a 404.
func (s *Service) ownedParent(ctx context.Context, caller auth.Principal, hospitalID string) error {
	if strings.TrimSpace(hospitalID) == "" {
		return apperrors.Validation("hospital is required")
	}
	_, err := s.ownedHospital(ctx, caller, hospitalID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return apperrors.Validation("hospital %s does not exist", hospitalID)
	}
	return err
}

// writable fails fast in fallback mode so ownership checks against the
// seeded owners never mask the read-only error.
func (s *Service) writable() error {
	if s.Store.Mode() == storage.ModeFallback {
		return fallback.ErrReadOnly
	}
	return nil
}

func (s *Service) fanoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.FanoutTimeout
	if timeout <= 0 {
		timeout = defaultFanoutTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
