package education

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Material) error
	GetByID(ctx context.Context, id uuid.UUID) (*Material, error)
	Update(ctx context.Context, m *Material) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders newest publish_date first.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Material, int, error)
}
