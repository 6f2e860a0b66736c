package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/models"
)

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create bed with unknown hospital is rejected", func(t *testing.T) {
		s := newStore(t)
		err := s.CreateBed(ctx, &models.Bed{BedNumber: "B-1", HospitalID: "missing", IsAvailable: true})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		err = s.CreateAmbulance(ctx, &models.Ambulance{AmbulanceNumber: "KA-1", HospitalID: "missing"})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("missing required fields", func(t *testing.T) {
		s := newStore(t)
		assert.True(t, apperrors.Is(s.CreateHospital(ctx, &models.Hospital{Name: "  "}), apperrors.KindValidation))
		bad := 7.5
		assert.True(t, apperrors.Is(s.CreateHospital(ctx, &models.Hospital{Name: "X", Rating: &bad}), apperrors.KindValidation))
		h := mustHospital(t, s, "Apollo")
		assert.True(t, apperrors.Is(s.CreateBed(ctx, &models.Bed{HospitalID: h.ID}), apperrors.KindValidation))
	})

	t.Run("list beds filters by hospital", func(t *testing.T) {
		s := newStore(t)
		a := mustHospital(t, s, "A")
		b := mustHospital(t, s, "B")
		mustBed(t, s, a.ID, "A-1", true)
		mustBed(t, s, a.ID, "A-2", false)
		mustBed(t, s, b.ID, "B-1", true)

		beds, err := s.ListBeds(ctx, BedFilter{HospitalID: a.ID})
		require.NoError(t, err)
		require.Len(t, beds, 2)
		for _, bed := range beds {
			assert.Equal(t, a.ID, bed.HospitalID)
		}

		yes := true
		avail, err := s.ListBeds(ctx, BedFilter{HospitalID: a.ID, Available: &yes})
		require.NoError(t, err)
		require.Len(t, avail, 1)
		assert.Equal(t, "A-1", avail[0].BedNumber)
	})

	t.Run("get and update unknown ids", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetHospital(ctx, "nope")
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
		name := "x"
		_, err = s.UpdateHospital(ctx, "nope", models.HospitalPatch{Name: &name})
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
		_, err = s.SetBedAvailability(ctx, "nope", true)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
		assert.True(t, apperrors.Is(s.DeleteBed(ctx, "nope"), apperrors.KindNotFound))
		assert.True(t, apperrors.Is(s.DeleteAmbulance(ctx, "nope"), apperrors.KindNotFound))
	})

	t.Run("update hospital keeps rating absent unless set", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Fortis")
		bio := "Heart care"
		got, err := s.UpdateHospital(ctx, h.ID, models.HospitalPatch{Bio: &bio})
		require.NoError(t, err)
		assert.Equal(t, "Heart care", got.Bio)
		assert.Nil(t, got.Rating)

		r := 4.5
		got, err = s.UpdateHospital(ctx, h.ID, models.HospitalPatch{Rating: &r})
		require.NoError(t, err)
		require.NotNil(t, got.Rating)
		assert.InDelta(t, 4.5, *got.Rating, 1e-9)
	})

	t.Run("reserve bed flips availability once", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Manipal")
		bed := mustBed(t, s, h.ID, "B-101", true)

		bk := &models.Booking{ResourceID: bed.ID, UserID: "u1", Price: 1500}
		got, err := s.ReserveBed(ctx, bk)
		require.NoError(t, err)
		assert.False(t, got.IsAvailable)
		assert.NotEmpty(t, bk.ID)
		assert.Equal(t, h.ID, bk.HospitalID)

		again, err := s.GetBed(ctx, bed.ID)
		require.NoError(t, err)
		assert.False(t, again.IsAvailable)

		_, err = s.ReserveBed(ctx, &models.Booking{ResourceID: bed.ID, UserID: "u2", Price: 1500})
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))

		bookings, err := s.ListBookings(ctx, BookingFilter{UserID: "u1"})
		require.NoError(t, err)
		require.Len(t, bookings, 1)
		assert.Equal(t, models.ResourceBed, bookings[0].ResourceType)
	})

	t.Run("concurrent reservations book a bed once", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Concurrent")
		bed := mustBed(t, s, h.ID, "B-1", true)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ReserveBed(ctx, &models.Booking{ResourceID: bed.ID, UserID: "u", Price: 1}); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("reserve ambulance sets status", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Apollo")
		amb := &models.Ambulance{AmbulanceNumber: "KA-01-1231", HospitalID: h.ID, IsAvailable: true, Status: models.StatusAvailable}
		require.NoError(t, s.CreateAmbulance(ctx, amb))

		got, err := s.ReserveAmbulance(ctx, &models.Booking{ResourceID: amb.ID, UserID: "u1"}, models.StatusDispatched)
		require.NoError(t, err)
		assert.False(t, got.IsAvailable)
		assert.Equal(t, models.StatusDispatched, got.Status)

		freed, err := s.SetAmbulanceAvailability(ctx, amb.ID, true)
		require.NoError(t, err)
		assert.True(t, freed.IsAvailable)
		assert.Equal(t, models.StatusAvailable, freed.Status, "freeing clears the dispatch status")
	})

	t.Run("location update leaves status unless supplied", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Apollo")
		amb := &models.Ambulance{AmbulanceNumber: "KA-02", HospitalID: h.ID, IsAvailable: true, Status: models.StatusAvailable}
		require.NoError(t, s.CreateAmbulance(ctx, amb))

		got, err := s.UpdateAmbulanceLocation(ctx, amb.ID, models.LocationUpdate{Loc: models.Coord{Lat: 12.93, Lon: 77.58}})
		require.NoError(t, err)
		assert.Equal(t, models.StatusAvailable, got.Status)
		c, ok := got.CurrentLocation.Coord()
		require.True(t, ok)
		assert.InDelta(t, 12.93, c.Lat, 1e-9)
		assert.InDelta(t, 77.58, c.Lon, 1e-9)
		assert.NotNil(t, got.LocationUpdatedAt)

		got, err = s.UpdateAmbulanceLocation(ctx, amb.ID, models.LocationUpdate{Loc: models.Coord{Lat: 1, Lon: 2}, Status: models.StatusEnRoute})
		require.NoError(t, err)
		assert.Equal(t, models.StatusEnRoute, got.Status)
	})

	t.Run("delete hospital with children is refused", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Parent")
		bed := mustBed(t, s, h.ID, "B-1", true)

		err := s.DeleteHospital(ctx, h.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindConflict))

		require.NoError(t, s.DeleteBed(ctx, bed.ID))
		require.NoError(t, s.DeleteHospital(ctx, h.ID))
		_, err = s.GetHospital(ctx, h.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})

	t.Run("find hospital by name is case insensitive", func(t *testing.T) {
		s := newStore(t)
		h := mustHospital(t, s, "Apollo Hospital")
		got, err := s.FindHospitalByName(ctx, "apollo hospital")
		require.NoError(t, err)
		assert.Equal(t, h.ID, got.ID)
		_, err = s.FindHospitalByName(ctx, "nowhere")
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	})

	t.Run("list hospitals pages in creation order", func(t *testing.T) {
		s := newStore(t)
		for _, n := range []string{"H1", "H2", "H3", "H4"} {
			mustHospital(t, s, n)
		}
		page, err := s.ListHospitals(ctx, Page{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "H2", page[0].Name)
		assert.Equal(t, "H3", page[1].Name)

		all, err := s.ListHospitals(ctx, Page{})
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func mustHospital(t *testing.T, s Store, name string) *models.Hospital {
	t.Helper()
	h := &models.Hospital{Name: name}
	require.NoError(t, s.CreateHospital(context.Background(), h))
	return h
}

func mustBed(t *testing.T, s Store, hospitalID, number string, available bool) *models.Bed {
	t.Helper()
	b := &models.Bed{BedNumber: number, HospitalID: hospitalID, IsAvailable: available}
	require.NoError(t, s.CreateBed(context.Background(), b))
	return b
}
