package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// GeoPoint is the GeoJSON point clients expect for currentLocation.
// Coordinates are [lon, lat].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func PointFrom(c Coord) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{c.Lon, c.Lat}}
}

// Coord converts the point back; ok is false for malformed points.
func (p *GeoPoint) Coord() (Coord, bool) {
	if p == nil || len(p.Coordinates) != 2 {
		return Coord{}, false
	}
	return Coord{Lat: p.Coordinates[1], Lon: p.Coordinates[0]}, true
}

type Hospital struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	Rating    *float64  `json:"rating,omitempty"` // 0..5, nil when unrated
	Photo     string    `json:"photo,omitempty"`
	UserID    string    `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HospitalPatch carries a partial hospital update; nil fields are untouched.
type HospitalPatch struct {
	Name   *string  `json:"name"`
	Bio    *string  `json:"bio"`
	Rating *float64 `json:"rating"`
	Photo  *string  `json:"photo"`
}

type Bed struct {
	ID          string    `json:"_id"`
	BedNumber   string    `json:"bedNumber"`
	IsAvailable bool      `json:"isAvailable"`
	HospitalID  string    `json:"hospital"`
	BedType     string    `json:"bedType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AmbulanceStatus string

const (
	StatusAvailable  AmbulanceStatus = "available"
	StatusDispatched AmbulanceStatus = "dispatched"
	StatusEnRoute    AmbulanceStatus = "en_route"
	StatusBusy       AmbulanceStatus = "busy"
	StatusOffline    AmbulanceStatus = "offline"
)

func (s AmbulanceStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusDispatched, StatusEnRoute, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type Ambulance struct {
	ID                string          `json:"_id"`
	AmbulanceNumber   string          `json:"ambulanceNumber"`
	IsAvailable       bool            `json:"isAvailable"`
	HospitalID        string          `json:"hospital"`
	Status            AmbulanceStatus `json:"status,omitempty"`
	CurrentLocation   *GeoPoint       `json:"currentLocation,omitempty"`
	LocationUpdatedAt *time.Time      `json:"locationUpdatedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// LocationUpdate moves an ambulance; Status is applied only when set.
type LocationUpdate struct {
	Loc    Coord
	Status AmbulanceStatus
	At     time.Time
}

type ResourceType string

const (
	ResourceBed       ResourceType = "bed"
	ResourceAmbulance ResourceType = "ambulance"
)

func (r ResourceType) Valid() bool { return r == ResourceBed || r == ResourceAmbulance }

type Booking struct {
	ID           string       `json:"_id"`
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId"`
	HospitalID   string       `json:"hospital"`
	UserID       string       `json:"user"`
	Price        float64      `json:"price"`
	ScheduledFor *time.Time   `json:"scheduledFor,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// HospitalDetails is the composite view returned for one hospital.
type HospitalDetails struct {
	Hospital   Hospital    `json:"hospital"`
	Beds       []Bed       `json:"beds"`
	Ambulances []Ambulance `json:"ambulances"`
}

type AvailabilitySummary struct {
	HospitalID          string `json:"hospital"`
	TotalBeds           int    `json:"totalBeds"`
	AvailableBeds       int    `json:"availableBeds"`
	BookedBeds          int    `json:"bookedBeds"`
	TotalAmbulances     int    `json:"totalAmbulances"`
	AvailableAmbulances int    `json:"availableAmbulances"`
}

// LocationEvent is published whenever an ambulance reports its position.
type LocationEvent struct {
	AmbulanceID string          `json:"ambulance_id"`
	HospitalID  string          `json:"hospital_id"`
	Loc         Coord           `json:"loc"`
	Status      AmbulanceStatus `json:"status,omitempty"`
	Available   bool            `json:"available"`
	Updated     time.Time       `json:"updated"`
}

// DispatchOffer is the outcome of assigning an ambulance to a pickup.
// ETA is nil when the ambulance has not reported a location yet.
type DispatchOffer struct {
	Ambulance
	BookingID string   `json:"bookingId"`
	ETA       *float64 `json:"eta_seconds,omitempty"`
}

// AmbulanceStatusView is what a tracking screen polls for.
type AmbulanceStatusView struct {
	ID                string          `json:"_id"`
	Status            AmbulanceStatus `json:"status,omitempty"`
	IsAvailable       bool            `json:"isAvailable"`
	CurrentLocation   *GeoPoint       `json:"currentLocation,omitempty"`
	LocationUpdatedAt *time.Time      `json:"locationUpdatedAt,omitempty"`
}

type NearbyAmbulance struct {
	Ambulance
	DistanceM float64 `json:"distanceMeters"`
}
