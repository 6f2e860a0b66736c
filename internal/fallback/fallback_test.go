package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/storage"
)

func TestSeededDatasetIsDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	ha, err := a.ListHospitals(ctx, storage.Page{})
	require.NoError(t, err)
	hb, err := b.ListHospitals(ctx, storage.Page{})
	require.NoError(t, err)

	require.Len(t, ha, 3)
	require.Len(t, hb, 3)
	for i := range ha {
		assert.Equal(t, ha[i].ID, hb[i].ID)
		assert.Equal(t, ha[i].Name, hb[i].Name)
	}
	assert.Equal(t, []string{"1", "2", "3"}, []string{ha[0].ID, ha[1].ID, ha[2].ID})
}

func TestSeededBedsAndAmbulances(t *testing.T) {
	ctx := context.Background()
	s, err := New()
	require.NoError(t, err)

	beds, err := s.ListBeds(ctx, storage.BedFilter{HospitalID: "2"})
	require.NoError(t, err)
	require.Len(t, beds, BedsPerHospital)
	booked := 0
	for _, b := range beds {
		assert.Equal(t, "2", b.HospitalID)
		if !b.IsAvailable {
			booked++
		}
	}
	assert.Equal(t, BookedBedsPerHospital, booked)
	assert.Equal(t, "b-2-1", beds[0].ID)
	assert.Equal(t, "B-101", beds[0].BedNumber)

	ambs, err := s.ListAmbulances(ctx, storage.AmbulanceFilter{HospitalID: "3"})
	require.NoError(t, err)
	require.Len(t, ambs, AmbulancesPerHospital)
	assert.Equal(t, "KA-02-1232", ambs[1].AmbulanceNumber)
	assert.Equal(t, models.StatusAvailable, ambs[1].Status)
}

func TestWritesFailWithUnavailable(t *testing.T) {
	ctx := context.Background()
	s, err := New()
	require.NoError(t, err)

	err = s.CreateBed(ctx, &models.Bed{BedNumber: "B-200", HospitalID: "1", IsAvailable: true})
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))

	_, err = s.SetBedAvailability(ctx, "b-1-5", false)
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))

	_, err = s.ReserveBed(ctx, &models.Booking{ResourceID: "b-1-5", UserID: "u"})
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))

	_, err = s.UpdateAmbulanceLocation(ctx, "a-1-1", models.LocationUpdate{})
	assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))

	// nothing changed underneath
	bed, err := s.GetBed(ctx, "b-1-5")
	require.NoError(t, err)
	assert.True(t, bed.IsAvailable)
	beds, err := s.ListBeds(ctx, storage.BedFilter{HospitalID: "1"})
	require.NoError(t, err)
	assert.Len(t, beds, BedsPerHospital)
}
