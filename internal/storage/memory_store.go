package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/models"
)

// MemoryStore keeps every collection in process memory. A single mutex
// serializes writes, which also makes the reserve operations atomic.
type MemoryStore struct {
	mu sync.RWMutex

	hospitals  map[string]models.Hospital
	beds       map[string]models.Bed
	ambulances map[string]models.Ambulance
	bookings   map[string]models.Booking

	// insertion order, so lists are deterministic
	hospitalIDs  []string
	bedIDs       []string
	ambulanceIDs []string
	bookingIDs   []string

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hospitals:  make(map[string]models.Hospital),
		beds:       make(map[string]models.Bed),
		ambulances: make(map[string]models.Ambulance),
		bookings:   make(map[string]models.Booking),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Mode() Mode                 { return ModeMemory }
func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

func (m *MemoryStore) GetHospital(_ context.Context, id string) (*models.Hospital, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hospitals[id]
	if !ok {
		return nil, apperrors.NotFound("hospital %s not found", id)
	}
	return &h, nil
}

func (m *MemoryStore) ListHospitals(_ context.Context, page Page) ([]models.Hospital, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := paginate(m.hospitalIDs, page)
	out := make([]models.Hospital, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.hospitals[id])
	}
	return out, nil
}

func (m *MemoryStore) FindHospitalByName(_ context.Context, name string) (*models.Hospital, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = strings.TrimSpace(name)
	for _, id := range m.hospitalIDs {
		if h := m.hospitals[id]; strings.EqualFold(h.Name, name) {
			return &h, nil
		}
	}
	return nil, apperrors.NotFound("hospital %q not found", name)
}

func (m *MemoryStore) FindHospitalByUser(_ context.Context, userID string) (*models.Hospital, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.hospitalIDs {
		if h := m.hospitals[id]; userID != "" && h.UserID == userID {
			return &h, nil
		}
	}
	return nil, apperrors.NotFound("no hospital registered for this account")
}

func (m *MemoryStore) CreateHospital(_ context.Context, h *models.Hospital) error {
	if err := validateHospital(h); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if _, dup := m.hospitals[h.ID]; dup {
		return apperrors.Conflict("hospital %s already exists", h.ID)
	}
	h.CreatedAt = m.now()
	h.UpdatedAt = h.CreatedAt
	m.hospitals[h.ID] = *h
	m.hospitalIDs = append(m.hospitalIDs, h.ID)
	return nil
}

func (m *MemoryStore) UpdateHospital(_ context.Context, id string, p models.HospitalPatch) (*models.Hospital, error) {
	if err := validateRating(p.Rating); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hospitals[id]
	if !ok {
		return nil, apperrors.NotFound("hospital %s not found", id)
	}
	applyHospitalPatch(&h, p)
	if err := validateHospital(&h); err != nil {
		return nil, err
	}
	h.UpdatedAt = m.now()
	m.hospitals[id] = h
	return &h, nil
}

func (m *MemoryStore) DeleteHospital(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hospitals[id]; !ok {
		return apperrors.NotFound("hospital %s not found", id)
	}
	for _, b := range m.beds {
		if b.HospitalID == id {
			return apperrors.Conflict("hospital %s still has beds", id)
		}
	}
	for _, a := range m.ambulances {
		if a.HospitalID == id {
			return apperrors.Conflict("hospital %s still has ambulances", id)
		}
	}
	for _, bk := range m.bookings {
		if bk.HospitalID == id {
			return apperrors.Conflict("hospital %s has booking history", id)
		}
	}
	delete(m.hospitals, id)
	m.hospitalIDs = removeID(m.hospitalIDs, id)
	return nil
}

func (m *MemoryStore) GetBed(_ context.Context, id string) (*models.Bed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.beds[id]
	if !ok {
		return nil, apperrors.NotFound("bed %s not found", id)
	}
	return &b, nil
}

func (m *MemoryStore) ListBeds(_ context.Context, f BedFilter) ([]models.Bed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Bed, 0)
	for _, id := range m.bedIDs {
		b := m.beds[id]
		if f.HospitalID != "" && b.HospitalID != f.HospitalID {
			continue
		}
		if f.Available != nil && b.IsAvailable != *f.Available {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *MemoryStore) CreateBed(_ context.Context, b *models.Bed) error {
	if err := validateBed(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hospitals[b.HospitalID]; !ok {
		return unknownHospital(b.HospitalID)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, dup := m.beds[b.ID]; dup {
		return apperrors.Conflict("bed %s already exists", b.ID)
	}
	b.CreatedAt = m.now()
	m.beds[b.ID] = *b
	m.bedIDs = append(m.bedIDs, b.ID)
	return nil
}

func (m *MemoryStore) SetBedAvailability(_ context.Context, id string, available bool) (*models.Bed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beds[id]
	if !ok {
		return nil, apperrors.NotFound("bed %s not found", id)
	}
	b.IsAvailable = available
	m.beds[id] = b
	return &b, nil
}

func (m *MemoryStore) DeleteBed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.beds[id]; !ok {
		return apperrors.NotFound("bed %s not found", id)
	}
	delete(m.beds, id)
	m.bedIDs = removeID(m.bedIDs, id)
	return nil
}

func (m *MemoryStore) GetAmbulance(_ context.Context, id string) (*models.Ambulance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.ambulances[id]
	if !ok {
		return nil, apperrors.NotFound("ambulance %s not found", id)
	}
	return &a, nil
}

func (m *MemoryStore) ListAmbulances(_ context.Context, f AmbulanceFilter) ([]models.Ambulance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Ambulance, 0)
	for _, id := range m.ambulanceIDs {
		a := m.ambulances[id]
		if f.HospitalID != "" && a.HospitalID != f.HospitalID {
			continue
		}
		if f.Available != nil && a.IsAvailable != *f.Available {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryStore) CreateAmbulance(_ context.Context, a *models.Ambulance) error {
	if err := validateAmbulance(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hospitals[a.HospitalID]; !ok {
		return unknownHospital(a.HospitalID)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, dup := m.ambulances[a.ID]; dup {
		return apperrors.Conflict("ambulance %s already exists", a.ID)
	}
	a.CreatedAt = m.now()
	m.ambulances[a.ID] = *a
	m.ambulanceIDs = append(m.ambulanceIDs, a.ID)
	return nil
}

func (m *MemoryStore) SetAmbulanceAvailability(_ context.Context, id string, available bool) (*models.Ambulance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.ambulances[id]
	if !ok {
		return nil, apperrors.NotFound("ambulance %s not found", id)
	}
	a.IsAvailable = available
	if available {
		a.Status = models.StatusAvailable
	}
	m.ambulances[id] = a
	return &a, nil
}

func (m *MemoryStore) UpdateAmbulanceLocation(_ context.Context, id string, u models.LocationUpdate) (*models.Ambulance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.ambulances[id]
	if !ok {
		return nil, apperrors.NotFound("ambulance %s not found", id)
	}
	at := u.At
	if at.IsZero() {
		at = m.now()
	}
	a.CurrentLocation = models.PointFrom(u.Loc)
	a.LocationUpdatedAt = &at
	if u.Status != "" {
		a.Status = u.Status
	}
	m.ambulances[id] = a
	return &a, nil
}

func (m *MemoryStore) DeleteAmbulance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ambulances[id]; !ok {
		return apperrors.NotFound("ambulance %s not found", id)
	}
	delete(m.ambulances, id)
	m.ambulanceIDs = removeID(m.ambulanceIDs, id)
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking %s not found", id)
	}
	return &b, nil
}

func (m *MemoryStore) ListBookings(_ context.Context, f BookingFilter) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, id := range m.bookingIDs {
		b := m.bookings[id]
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.HospitalID != "" && b.HospitalID != f.HospitalID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *MemoryStore) ReserveBed(_ context.Context, bk *models.Booking) (*models.Bed, error) {
	bk.ResourceType = models.ResourceBed
	if err := validateBooking(bk); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bed, ok := m.beds[bk.ResourceID]
	if !ok {
		return nil, apperrors.Validation("bed %s does not exist", bk.ResourceID)
	}
	if !bed.IsAvailable {
		return nil, apperrors.Validation("bed %s is not available", bed.BedNumber)
	}
	bed.IsAvailable = false
	m.beds[bed.ID] = bed
	bk.HospitalID = bed.HospitalID
	m.insertBooking(bk)
	return &bed, nil
}

func (m *MemoryStore) ReserveAmbulance(_ context.Context, bk *models.Booking, status models.AmbulanceStatus) (*models.Ambulance, error) {
	bk.ResourceType = models.ResourceAmbulance
	if err := validateBooking(bk); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	amb, ok := m.ambulances[bk.ResourceID]
	if !ok {
		return nil, apperrors.Validation("ambulance %s does not exist", bk.ResourceID)
	}
	if !amb.IsAvailable {
		return nil, apperrors.Validation("ambulance %s is not available", amb.AmbulanceNumber)
	}
	amb.IsAvailable = false
	if status != "" {
		amb.Status = status
	}
	m.ambulances[amb.ID] = amb
	bk.HospitalID = amb.HospitalID
	m.insertBooking(bk)
	return &amb, nil
}

// insertBooking requires m.mu held for writing.
func (m *MemoryStore) insertBooking(bk *models.Booking) {
	if bk.ID == "" {
		bk.ID = uuid.NewString()
	}
	bk.CreatedAt = m.now()
	m.bookings[bk.ID] = *bk
	m.bookingIDs = append(m.bookingIDs, bk.ID)
}

func applyHospitalPatch(h *models.Hospital, p models.HospitalPatch) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Bio != nil {
		h.Bio = *p.Bio
	}
	if p.Rating != nil {
		r := *p.Rating
		h.Rating = &r
	}
	if p.Photo != nil {
		h.Photo = *p.Photo
	}
}

func paginate(ids []string, page Page) []string {
	if page.Offset >= len(ids) {
		return nil
	}
	if page.Offset > 0 {
		ids = ids[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(ids) {
		ids = ids[:page.Limit]
	}
	return ids
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
