package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/hospital-availability/internal/models"
)

// Position is the last known location of one ambulance.
type Position struct {
	AmbulanceID string
	HospitalID  string
	Loc         models.Coord
	Available   bool
	Updated     time.Time
	DistanceM   float64 // set by Nearby
}

// Index answers "which ambulances are close to this point".
type Index interface {
	Upsert(ctx context.Context, p Position) error
	Remove(ctx context.Context, ambulanceID string) error
	Nearby(ctx context.Context, at models.Coord, radiusM float64, limit int) ([]Position, error)
}

// MemoryIndex is the single-process Index used when Redis is not configured.
type MemoryIndex struct {
	mu        sync.RWMutex
	positions map[string]Position
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{positions: make(map[string]Position)}
}

func (g *MemoryIndex) Upsert(_ context.Context, p Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.Updated.IsZero() {
		p.Updated = time.Now()
	}
	g.positions[p.AmbulanceID] = p
	return nil
}

func (g *MemoryIndex) Remove(_ context.Context, ambulanceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.positions, ambulanceID)
	return nil
}

// Nearby scans every position; fine for a fleet of a few thousand.
func (g *MemoryIndex) Nearby(_ context.Context, at models.Coord, radiusM float64, limit int) ([]Position, error) {
	g.mu.RLock()
	out := make([]Position, 0, len(g.positions))
	for _, p := range g.positions {
		p.DistanceM = Haversine(at.Lat, at.Lon, p.Loc.Lat, p.Loc.Lon)
		if radiusM > 0 && p.DistanceM > radiusM {
			continue
		}
		out = append(out, p)
	}
	g.mu.RUnlock()
	SortByDistance(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SortByDistance orders positions nearest first, ties by id.
func SortByDistance(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].DistanceM != ps[j].DistanceM {
			return ps[i].DistanceM < ps[j].DistanceM
		}
		return ps[i].AmbulanceID < ps[j].AmbulanceID
	})
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
