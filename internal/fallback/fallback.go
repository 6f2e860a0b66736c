// Package fallback provides the degraded-mode store used when the database
// cannot be reached at startup: a fixed seeded dataset that answers reads
// and refuses every write.
package fallback

import (
	"context"
	"fmt"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/models"
	"github.com/example/hospital-availability/internal/storage"
)

const (
	BedsPerHospital       = 10
	BookedBedsPerHospital = 3
	AmbulancesPerHospital = 3
)

// ErrReadOnly is returned by every write in fallback mode.
var ErrReadOnly = apperrors.Unavailable("database unavailable: running on fallback data, changes are not accepted")

type seedHospital struct {
	id, name, bio, photo, user string
	rating                     float64
}

var seedHospitals = []seedHospital{
	{"1", "Apollo Hospital", "Jayanagar, Bangalore • Multi-speciality", "https://images.unsplash.com/photo-1587351021759-3e566b9af9ef?q=80&w=2072&auto=format&fit=crop", "u1", 4.8},
	{"2", "Manipal Hospital", "Whitefield, Bangalore • Premium Care", "https://images.unsplash.com/photo-1519494026892-80bbd2d6fd0d?q=80&w=2053&auto=format&fit=crop", "u2", 4.6},
	{"3", "Fortis Hospital", "Bannerghatta Road, Bangalore • Heart Care", "https://images.unsplash.com/photo-1512678080530-7760d81faba6?q=80&w=2074&auto=format&fit=crop", "u3", 4.7},
}

// Store serves the seeded dataset. Reads are promoted from the embedded
// Reader; every Writer method fails with an Unavailable error.
type Store struct {
	storage.Reader
}

// New seeds the dataset. It must finish before the server accepts traffic;
// after it returns the data is never mutated.
func New() (*Store, error) {
	mem := storage.NewMemoryStore()
	if err := Seed(context.Background(), mem); err != nil {
		return nil, err
	}
	return &Store{Reader: mem}, nil
}

// Seed writes the fixed dataset into w. Beds 1..3 of every hospital are
// booked; the rest are available.
func Seed(ctx context.Context, w storage.Writer) error {
	for _, sh := range seedHospitals {
		rating := sh.rating
		h := &models.Hospital{ID: sh.id, Name: sh.name, Bio: sh.bio, Photo: sh.photo, UserID: sh.user, Rating: &rating}
		if err := w.CreateHospital(ctx, h); err != nil {
			return fmt.Errorf("seed hospital %s: %w", sh.id, err)
		}
		for i := 1; i <= BedsPerHospital; i++ {
			b := &models.Bed{
				ID:          fmt.Sprintf("b-%s-%d", sh.id, i),
				BedNumber:   fmt.Sprintf("B-%d", 100+i),
				IsAvailable: i > BookedBedsPerHospital,
				HospitalID:  sh.id,
			}
			if err := w.CreateBed(ctx, b); err != nil {
				return fmt.Errorf("seed bed %s: %w", b.ID, err)
			}
		}
		for i := 1; i <= AmbulancesPerHospital; i++ {
			a := &models.Ambulance{
				ID:              fmt.Sprintf("a-%s-%d", sh.id, i),
				AmbulanceNumber: fmt.Sprintf("KA-0%d-123%d", i, i),
				IsAvailable:     true,
				HospitalID:      sh.id,
				Status:          models.StatusAvailable,
			}
			if err := w.CreateAmbulance(ctx, a); err != nil {
				return fmt.Errorf("seed ambulance %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

func (s *Store) Mode() storage.Mode         { return storage.ModeFallback }
func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateHospital(context.Context, *models.Hospital) error { return ErrReadOnly }

func (s *Store) UpdateHospital(context.Context, string, models.HospitalPatch) (*models.Hospital, error) {
	return nil, ErrReadOnly
}

func (s *Store) DeleteHospital(context.Context, string) error { return ErrReadOnly }

func (s *Store) CreateBed(context.Context, *models.Bed) error { return ErrReadOnly }

func (s *Store) SetBedAvailability(context.Context, string, bool) (*models.Bed, error) {
	return nil, ErrReadOnly
}

func (s *Store) DeleteBed(context.Context, string) error { return ErrReadOnly }

func (s *Store) CreateAmbulance(context.Context, *models.Ambulance) error { return ErrReadOnly }

func (s *Store) SetAmbulanceAvailability(context.Context, string, bool) (*models.Ambulance, error) {
	return nil, ErrReadOnly
}

func (s *Store) UpdateAmbulanceLocation(context.Context, string, models.LocationUpdate) (*models.Ambulance, error) {
	return nil, ErrReadOnly
}

func (s *Store) DeleteAmbulance(context.Context, string) error { return ErrReadOnly }

func (s *Store) ReserveBed(context.Context, *models.Booking) (*models.Bed, error) {
	return nil, ErrReadOnly
}

func (s *Store) ReserveAmbulance(context.Context, *models.Booking, models.AmbulanceStatus) (*models.Ambulance, error) {
	return nil, ErrReadOnly
}

var _ storage.Store = (*Store)(nil)
