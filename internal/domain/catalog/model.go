package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
)

// MinDurationMinutes is the shortest bookable service.
const MinDurationMinutes = 5

// MedicalService is one entry of the clinic's price list.
type MedicalService struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	Category        string    `json:"category"`
	ImageURL        *string   `json:"image_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Input is the write payload. Create needs every required field; update
// applies only the fields present.
type Input struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price"`
	DurationMinutes *int     `json:"duration_minutes"`
	Category        *string  `json:"category"`
	ImageURL        *string  `json:"image_url"`
	IsActive        *bool    `json:"is_active"`
}

// New builds a service from a create payload.
func (in Input) New() (*MedicalService, error) {
	switch {
	case in.Name == nil:
		return nil, apperr.Validation("name is required")
	case in.Description == nil:
		return nil, apperr.Validation("description is required")
	case in.Price == nil:
		return nil, apperr.Validation("price is required")
	case in.DurationMinutes == nil:
		return nil, apperr.Validation("duration_minutes is required")
	case in.Category == nil:
		return nil, apperr.Validation("category is required")
	}
	s := &MedicalService{ID: uuid.New(), IsActive: true}
	if err := in.Apply(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply copies the present fields onto s and validates the result.
func (in Input) Apply(s *MedicalService) error {
	if in.Name != nil {
		s.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		s.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		s.Price = *in.Price
	}
	if in.DurationMinutes != nil {
		s.DurationMinutes = *in.DurationMinutes
	}
	if in.Category != nil {
		s.Category = strings.TrimSpace(*in.Category)
	}
	if in.ImageURL != nil {
		if v := strings.TrimSpace(*in.ImageURL); v != "" {
			s.ImageURL = &v
		} else {
			s.ImageURL = nil
		}
	}
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
	return s.validate()
}

func (s *MedicalService) validate() error {
	switch {
	case s.Name == "":
		return apperr.Validation("name is required")
	case s.Description == "":
		return apperr.Validation("description is required")
	case s.Category == "":
		return apperr.Validation("category is required")
	case s.Price < 0:
		return apperr.Validation("price must not be negative")
	case s.DurationMinutes < MinDurationMinutes:
		return apperr.Validationf("duration_minutes must be at least %d", MinDurationMinutes)
	}
	return nil
}

// ListFilter narrows catalog listings. Zero values do not filter.
type ListFilter struct {
	Category string
	IsActive *bool
}
