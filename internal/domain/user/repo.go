package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error)
	RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error)
}
