package storage

import (
	"strings"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/models"
)

func validateHospital(h *models.Hospital) error {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return apperrors.Validation("hospital name is required")
	}
	return validateRating(h.Rating)
}

func validateRating(r *float64) error {
	if r != nil && (*r < 0 || *r > 5) {
		return apperrors.Validation("rating must be between 0 and 5")
	}
	return nil
}

func validateBed(b *models.Bed) error {
	b.BedNumber = strings.TrimSpace(b.BedNumber)
	if b.BedNumber == "" {
		return apperrors.Validation("bedNumber is required")
	}
	if strings.TrimSpace(b.HospitalID) == "" {
		return apperrors.Validation("hospital is required")
	}
	return nil
}

func validateAmbulance(a *models.Ambulance) error {
	a.AmbulanceNumber = strings.TrimSpace(a.AmbulanceNumber)
	if a.AmbulanceNumber == "" {
		return apperrors.Validation("ambulanceNumber is required")
	}
	if strings.TrimSpace(a.HospitalID) == "" {
		return apperrors.Validation("hospital is required")
	}
	if a.Status != "" && !a.Status.Valid() {
		return apperrors.Validation("unknown ambulance status %q", a.Status)
	}
	return nil
}

func validateBooking(b *models.Booking) error {
	if !b.ResourceType.Valid() {
		return apperrors.Validation("resourceType must be bed or ambulance")
	}
	if b.ResourceID == "" {
		return apperrors.Validation("resourceId is required")
	}
	if b.UserID == "" {
		return apperrors.Validation("booking requires a user")
	}
	if b.Price < 0 {
		return apperrors.Validation("price must not be negative")
	}
	return nil
}

func unknownHospital(id string) error {
	return apperrors.Validation("hospital %s does not exist", id)
}
