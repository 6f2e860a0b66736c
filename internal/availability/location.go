package availability

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/geo"
	"github.com/example/hospital-availability/internal/matcher"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/observability"
	"github.com/example/hospital-availability/internal/storage"
)

// LocationRequest is a driver's position report. Status is optional.
type LocationRequest struct {
	Lat    *float64               `json:"lat"`
	Lon    *float64               `json:"lon"`
	Status models.AmbulanceStatus `json:"status,omitempty"`
}

// DispatchRequest asks for the best ambulance for a pickup. HospitalID
// narrows the fleet to one hospital when set.
type DispatchRequest struct {
	HospitalID string
	Pickup     models.Coord
	Price      float64
}

// UpdateAmbulanceLocation stores the new position and then fans it out. The
// fan-out is best effort: its failures are logged and counted, never
// returned, because the store already holds the authoritative value.
func (s *Service) UpdateAmbulanceLocation(ctx context.Context, id string, req LocationRequest) (*models.Ambulance, error) {
	if err := s.writable(); err != nil {
		return nil, err
	}
	if req.Lat == nil || req.Lon == nil {
		return nil, apperrors.Validation("lat and lon are required")
	}
	loc := models.Coord{Lat: *req.Lat, Lon: *req.Lon}
	if loc.Lat < -90 || loc.Lat > 90 {
		return nil, apperrors.Validation("lat must be between -90 and 90")
	}
	if loc.Lon < -180 || loc.Lon > 180 {
		return nil, apperrors.Validation("lon must be between -180 and 180")
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, apperrors.Validation("unknown ambulance status %q", req.Status)
	}
	a, err := s.Store.UpdateAmbulanceLocation(ctx, id, models.LocationUpdate{
		Loc:    loc,
		Status: req.Status,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	observability.LocationUpdates.Inc()
	s.fanout(ctx, a)
	return a, nil
}

func (s *Service) fanout(ctx context.Context, a *models.Ambulance) {
	loc, ok := a.CurrentLocation.Coord()
	if !ok {
		return
	}
	updated := time.Now().UTC()
	if a.LocationUpdatedAt != nil {
		updated = *a.LocationUpdatedAt
	}
	ev := models.LocationEvent{
		AmbulanceID: a.ID,
		HospitalID:  a.HospitalID,
		Loc:         loc,
		Status:      a.Status,
		Available:   a.IsAvailable,
		Updated:     updated,
	}

	ctx, cancel := s.fanoutContext(ctx)
	defer cancel()
	if s.Geo != nil {
		p := geo.Position{AmbulanceID: a.ID, HospitalID: a.HospitalID, Loc: loc, Available: a.IsAvailable, Updated: updated}
		if err := s.Geo.Upsert(ctx, p); err != nil {
			observability.FanoutErrors.WithLabelValues("geo").Inc()
			s.Logger.Warn().Err(err).Str("ambulance_id", a.ID).Msg("geo index update failed")
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishLocation(ctx, ev); err != nil {
			observability.FanoutErrors.WithLabelValues("kafka").Inc()
			s.Logger.Warn().Err(err).Str("ambulance_id", a.ID).Msg("location event publish failed")
		}
	}
	if s.Tracker != nil {
		s.Tracker.Publish(ev)
	}
}

// DispatchAmbulance picks the available ambulance with the lowest ETA to the
// pickup and reserves it. When the best candidate is taken concurrently the
// next one is tried.
func (s *Service) DispatchAmbulance(ctx context.Context, caller auth.Principal, req DispatchRequest) (*models.DispatchOffer, error) {
	start := time.Now()
	if err := s.writable(); err != nil {
		return nil, err
	}
	if caller.UserID == "" {
		return nil, apperrors.Unauthorized("No token, authorization denied")
	}
	if !req.Pickup.Valid() {
		return nil, apperrors.Validation("pickup must be a valid lat/lon")
	}
	if req.Price < 0 {
		return nil, apperrors.Validation("price must not be negative")
	}
	hospitalID := strings.TrimSpace(req.HospitalID)
	if hospitalID != "" {
		if _, err := s.Store.GetHospital(ctx, hospitalID); err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return nil, apperrors.Validation("hospital %s does not exist", hospitalID)
			}
			return nil, err
		}
	}
	yes := true
	fleet, err := s.Store.ListAmbulances(ctx, storage.AmbulanceFilter{HospitalID: hospitalID, Available: &yes})
	if err != nil {
		return nil, err
	}

	for _, c := range s.ranker().Rank(ctx, req.Pickup, fleet) {
		bk := &models.Booking{ResourceID: c.Ambulance.ID, UserID: caller.UserID, Price: req.Price}
		a, err := s.Store.ReserveAmbulance(ctx, bk, models.StatusDispatched)
		if apperrors.Is(err, apperrors.KindValidation) {
			continue
		}
		recordBooking(models.ResourceAmbulance, err)
		if err != nil {
			return nil, err
		}
		offer := &models.DispatchOffer{Ambulance: *a, BookingID: bk.ID}
		if !math.IsInf(c.ETA, 1) {
			eta := c.ETA
			offer.ETA = &eta
		}
		s.fanout(ctx, a)
		observability.DispatchLatency.Observe(time.Since(start).Seconds())
		s.Logger.Info().
			Str("ambulance_id", a.ID).
			Str("booking_id", bk.ID).
			Str("user", caller.UserID).
			Msg("ambulance dispatched")
		return offer, nil
	}
	err = apperrors.Conflict("no ambulance available")
	recordBooking(models.ResourceAmbulance, err)
	return nil, err
}

func (s *Service) ranker() Ranker {
	if s.Ranker != nil {
		return s.Ranker
	}
	return &matcher.Service{}
}

// NearbyAmbulances lists available ambulances around a point, nearest
// first. The geo index is consulted first and every hit is re-checked
// against the store; when the index fails or is still cold the store is
// scanned instead.
func (s *Service) NearbyAmbulances(ctx context.Context, at models.Coord, limit int) ([]models.NearbyAmbulance, error) {
	if !at.Valid() {
		return nil, apperrors.Validation("lat must be between -90 and 90 and lon between -180 and 180")
	}
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		limit = s.MaxPageSize
	}
	if s.Geo != nil {
		out, err := s.nearbyFromIndex(ctx, at, limit)
		if err != nil {
			s.Logger.Warn().Err(err).Msg("geo index lookup failed, scanning store")
		} else if len(out) > 0 {
			return out, nil
		}
	}
	return s.nearbyFromStore(ctx, at, limit)
}

func (s *Service) nearbyFromIndex(ctx context.Context, at models.Coord, limit int) ([]models.NearbyAmbulance, error) {
	// over-fetch: stale index entries are filtered below
	positions, err := s.Geo.Nearby(ctx, at, s.NearbyRadiusM, limit*2)
	if err != nil {
		return nil, err
	}
	out := make([]models.NearbyAmbulance, 0, limit)
	for _, p := range positions {
		if len(out) == limit {
			break
		}
		a, err := s.Store.GetAmbulance(ctx, p.AmbulanceID)
		if apperrors.Is(err, apperrors.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !a.IsAvailable {
			continue
		}
		out = append(out, models.NearbyAmbulance{Ambulance: *a, DistanceM: p.DistanceM})
	}
	return out, nil
}

func (s *Service) nearbyFromStore(ctx context.Context, at models.Coord, limit int) ([]models.NearbyAmbulance, error) {
	yes := true
	fleet, err := s.Store.ListAmbulances(ctx, storage.AmbulanceFilter{Available: &yes})
	if err != nil {
		return nil, err
	}
	out := make([]models.NearbyAmbulance, 0)
	for _, a := range fleet {
		loc, ok := a.CurrentLocation.Coord()
		if !ok {
			continue
		}
		d := geo.Haversine(at.Lat, at.Lon, loc.Lat, loc.Lon)
		if s.NearbyRadiusM > 0 && d > s.NearbyRadiusM {
			continue
		}
		out = append(out, models.NearbyAmbulance{Ambulance: a, DistanceM: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
