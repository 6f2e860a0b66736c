package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hospital-availability/internal/models"
)

func TestHaversineZero(t *testing.T) {
	assert.Zero(t, Haversine(0, 0, 0, 0))
}

func TestHaversineOneDegreeLatitude(t *testing.T) {
	assert.InDelta(t, 111195, Haversine(0, 0, 1, 0), 50)
}

func TestMemoryIndexNearbyOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryIndex()
	center := models.Coord{Lat: 12.9716, Lon: 77.5946}
	require.NoError(t, g.Upsert(ctx, Position{AmbulanceID: "far", Loc: models.Coord{Lat: 13.2, Lon: 77.7}}))
	require.NoError(t, g.Upsert(ctx, Position{AmbulanceID: "near", Loc: models.Coord{Lat: 12.972, Lon: 77.595}}))
	require.NoError(t, g.Upsert(ctx, Position{AmbulanceID: "mid", Loc: models.Coord{Lat: 12.99, Lon: 77.6}}))

	got, err := g.Nearby(ctx, center, 5000, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].AmbulanceID)
	assert.Equal(t, "mid", got[1].AmbulanceID)
	assert.Less(t, got[0].DistanceM, got[1].DistanceM)

	got, err = g.Nearby(ctx, center, 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].AmbulanceID)

	require.NoError(t, g.Remove(ctx, "near"))
	got, err = g.Nearby(ctx, center, 5000, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mid", got[0].AmbulanceID)
}

func TestMetaRoundTrip(t *testing.T) {
	p := Position{AmbulanceID: "a1", HospitalID: "h1", Available: true}
	fields := MetaFields(p)
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		m[k] = v.(string)
	}
	var got Position
	applyMeta(&got, m)
	assert.Equal(t, "h1", got.HospitalID)
	assert.True(t, got.Available)
}
