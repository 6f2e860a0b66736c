package matcher

import (
	"context"
	"math"
	"sort"

	"github.com/example/hospital-availability/internal/eta"
	"github.com/example/hospital-availability/internal/models"
)

// Candidate is an ambulance scored for one pickup.
type Candidate struct {
	Ambulance models.Ambulance
	ETA       float64 // seconds; +Inf when the ambulance has no known location
}

// Service ranks available ambulances by estimated time to a pickup point.
// TopN bounds how many of the closest candidates get a routed ETA from the
// client or cache; the rest keep the straight-line estimate.
type Service struct {
	DefaultSpeedMps float64
	TopN            int
	ETAClient       eta.Client // optional OSRM client
	ETACache        *eta.Cache // optional ETA cache
}

// Rank returns every available candidate, best first. Ambulances without a
// reported location sort last but are still eligible.
func (s *Service) Rank(ctx context.Context, pickup models.Coord, ambulances []models.Ambulance) []Candidate {
	out := make([]Candidate, 0, len(ambulances))
	for _, a := range ambulances {
		if !a.IsAvailable {
			continue
		}
		c := Candidate{Ambulance: a, ETA: math.Inf(1)}
		if loc, ok := a.CurrentLocation.Coord(); ok {
			c.ETA = eta.EstimateSeconds(loc, pickup, s.DefaultSpeedMps)
		}
		out = append(out, c)
	}
	sortCandidates(out)
	if s.ETAClient == nil && s.ETACache == nil {
		return out
	}

	n := len(out)
	if s.TopN > 0 && n > s.TopN {
		n = s.TopN
	}
	for i := 0; i < n; i++ {
		if loc, ok := out[i].Ambulance.CurrentLocation.Coord(); ok {
			out[i].ETA = s.estimate(ctx, loc, pickup)
		}
	}
	sortCandidates(out)
	return out
}

func sortCandidates(out []Candidate) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ETA != out[j].ETA {
			return out[i].ETA < out[j].ETA
		}
		return out[i].Ambulance.ID < out[j].Ambulance.ID
	})
}

func (s *Service) estimate(ctx context.Context, from, to models.Coord) float64 {
	if s.ETACache != nil {
		if v, ok := s.ETACache.Get(from, to); ok {
			return v
		}
	}
	if s.ETAClient != nil {
		if v, err := s.ETAClient.EstimateSeconds(ctx, from, to); err == nil {
			if s.ETACache != nil {
				s.ETACache.Set(from, to, v)
			}
			return v
		}
		// fall through to the straight-line estimate
	}
	return eta.EstimateSeconds(from, to, s.DefaultSpeedMps)
}
