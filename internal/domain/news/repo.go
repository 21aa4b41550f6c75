package news

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders newest publish_date first.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Item, int, error)
}
