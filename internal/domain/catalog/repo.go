package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *MedicalService) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	Update(ctx context.Context, s *MedicalService) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders by category then name.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicalService, int, error)
}
