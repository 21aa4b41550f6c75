package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate reads and row-locks the appointment for the current transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListDoctorDay returns the doctor's non-cancelled appointments on day,
	// ordered by start time.
	ListDoctorDay(ctx context.Context, doctorID uuid.UUID, day Date) ([]*Appointment, error)
	// LockDoctorDay serializes bookings for one doctor and day until the
	// current transaction ends.
	LockDoctorDay(ctx context.Context, doctorID uuid.UUID, day Date) error
}

// Directory resolves user roles so bookings reference a real patient and doctor.
type Directory interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (auth.Role, error)
}
