package storage

import (
	"context"

	"github.com/example/hospital-availability/internal/models"
)

// Page bounds a list query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

type BedFilter struct {
	HospitalID string
	Available  *bool
}

type AmbulanceFilter struct {
	HospitalID string
	Available  *bool
}

type BookingFilter struct {
	UserID     string
	HospitalID string
}

// Reader is the read half of the resource store.
type Reader interface {
	GetHospital(ctx context.Context, id string) (*models.Hospital, error)
	ListHospitals(ctx context.Context, page Page) ([]models.Hospital, error)
	FindHospitalByName(ctx context.Context, name string) (*models.Hospital, error)
	FindHospitalByUser(ctx context.Context, userID string) (*models.Hospital, error)

	GetBed(ctx context.Context, id string) (*models.Bed, error)
	ListBeds(ctx context.Context, f BedFilter) ([]models.Bed, error)

	GetAmbulance(ctx context.Context, id string) (*models.Ambulance, error)
	ListAmbulances(ctx context.Context, f AmbulanceFilter) ([]models.Ambulance, error)

	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error)
}

// Writer is the mutating half. Create methods assign ids and timestamps on
// the passed record.
type Writer interface {
	CreateHospital(ctx context.Context, h *models.Hospital) error
	UpdateHospital(ctx context.Context, id string, p models.HospitalPatch) (*models.Hospital, error)
	// DeleteHospital refuses with a Conflict while beds or ambulances
	// still reference the hospital.
	DeleteHospital(ctx context.Context, id string) error

	CreateBed(ctx context.Context, b *models.Bed) error
	SetBedAvailability(ctx context.Context, id string, available bool) (*models.Bed, error)
	DeleteBed(ctx context.Context, id string) error

	CreateAmbulance(ctx context.Context, a *models.Ambulance) error
	SetAmbulanceAvailability(ctx context.Context, id string, available bool) (*models.Ambulance, error)
	UpdateAmbulanceLocation(ctx context.Context, id string, u models.LocationUpdate) (*models.Ambulance, error)
	DeleteAmbulance(ctx context.Context, id string) error

	// ReserveBed checks the bed is available, marks it booked and stores
	// the booking as one step.
	ReserveBed(ctx context.Context, b *models.Booking) (*models.Bed, error)
	// ReserveAmbulance does the same for an ambulance and sets its status.
	ReserveAmbulance(ctx context.Context, b *models.Booking, status models.AmbulanceStatus) (*models.Ambulance, error)
}

// Mode names the kind of store behind the handle.
type Mode string

const (
	ModePersistent Mode = "postgres"
	ModeMemory     Mode = "memory"
	ModeFallback   Mode = "fallback"
)

// Store is the handle chosen once at startup and shared by every request.
type Store interface {
	Reader
	Writer
	Mode() Mode
	Ping(ctx context.Context) error
	Close() error
}
