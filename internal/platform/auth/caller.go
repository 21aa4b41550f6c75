package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the three clinic roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsAdmin() bool   { return c.Role == RoleAdmin }
func (c Caller) IsDoctor() bool  { return c.Role == RoleDoctor }
func (c Caller) IsPatient() bool { return c.Role == RolePatient }

// CallerFromContext resolves the caller set by JWTMiddleware. A missing or
// malformed identity is Unauthenticated.
func CallerFromContext(ctx context.Context) (Caller, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return Caller{}, apperr.Unauthenticated("authentication required")
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return Caller{}, apperr.Unauthenticated("invalid subject in token")
	}

	var role Role
	for _, r := range RolesFromContext(ctx) {
		if Role(r).Valid() {
			role = Role(r)
			break
		}
	}
	if role == "" {
		return Caller{}, apperr.Unauthenticated("token carries no clinic role")
	}
	return Caller{ID: id, Role: role}, nil
}

// WithCaller binds c to ctx the same way JWTMiddleware does.
func WithCaller(ctx context.Context, c Caller) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, c.ID.String())
	return context.WithValue(ctx, UserRolesKey, []string{string(c.Role)})
}
