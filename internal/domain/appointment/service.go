package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/internal/platform/db"
	"github.com/medclinic/clinic/internal/platform/keylock"
	"github.com/medclinic/clinic/internal/platform/outbox"
	"github.com/medclinic/clinic/internal/platform/telemetry"
)

const aggregateType = "appointment"

type Service struct {
	repo    Repository
	tx      db.Transactor
	users   Directory
	events  outbox.Recorder
	locks   *keylock.Locker
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewService(repo Repository, tx db.Transactor, users Directory, events outbox.Recorder, locks *keylock.Locker, metrics *telemetry.Metrics) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		users:   users,
		events:  events,
		locks:   locks,
		metrics: metrics,
		now:     time.Now,
	}
}

// booking is a validated CreateRequest.
type booking struct {
	patientID uuid.UUID
	doctorID  uuid.UUID
	day       Date
	slot      Interval
	reason    string
	notes     string
}

func parseCreate(req CreateRequest) (booking, error) {
	var b booking
	if req.DoctorID == "" {
		return b, apperr.Validation("doctor_id is required")
	}
	id, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return b, apperr.Validation("doctor_id must be a UUID")
	}
	b.doctorID = id

	if req.Date == "" {
		return b, apperr.Validation("date is required")
	}
	if b.day, err = ParseDate(req.Date); err != nil {
		return b, apperr.Validation(err.Error())
	}
	if req.StartTime == "" || req.EndTime == "" {
		return b, apperr.Validation("start_time and end_time are required")
	}
	if b.slot.Start, err = ParseClock(req.StartTime); err != nil {
		return b, apperr.Validation(err.Error())
	}
	if b.slot.End, err = ParseClock(req.EndTime); err != nil {
		return b, apperr.Validation(err.Error())
	}
	if !b.slot.Valid() {
		return b, apperr.Validation("start_time must be before end_time")
	}

	b.reason = strings.TrimSpace(req.Reason)
	if b.reason == "" {
		return b, apperr.Validation("reason is required")
	}
	b.notes = strings.TrimSpace(req.Notes)
	return b, nil
}

func (s *Service) requireRole(ctx context.Context, id uuid.UUID, want auth.Role, field string) error {
	role, err := s.users.RoleOf(ctx, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Validationf("%s does not reference an existing user", field)
	}
	if err != nil {
		return apperr.Internal("resolve user role", err)
	}
	if role != want {
		return apperr.Validationf("%s must reference a %s", field, want)
	}
	return nil
}

// Create books a pending appointment. The conflict check and the insert run
// under a per-doctor lock and a per-doctor-day advisory lock in one
// transaction, so two overlapping requests cannot both succeed.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointment.Create")
	defer span.End()

	patientID, err := AuthorizeCreate(caller, req.PatientID)
	if err != nil {
		return nil, err
	}
	b, err := parseCreate(req)
	if err != nil {
		return nil, err
	}
	b.patientID = patientID
	span.SetAttributes(
		attribute.String("appointment.doctor_id", b.doctorID.String()),
		attribute.String("appointment.date", b.day.String()),
	)

	if err := s.requireRole(ctx, b.patientID, auth.RolePatient, "patient_id"); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, b.doctorID, auth.RoleDoctor, "doctor_id"); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, b.doctorID.String())
	if err != nil {
		return nil, apperr.Internal("wait for booking lock", err)
	}
	defer unlock()

	a := &Appointment{
		ID:        uuid.New(),
		PatientID: b.patientID,
		DoctorID:  b.doctorID,
		Date:      b.day,
		StartTime: b.slot.Start,
		EndTime:   b.slot.End,
		Status:    StatusPending,
		Reason:    b.reason,
		Notes:     b.notes,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDoctorDay(ctx, a.DoctorID, a.Date); err != nil {
			return err
		}
		sameDay, err := s.repo.ListDoctorDay(ctx, a.DoctorID, a.Date)
		if err != nil {
			return err
		}
		if HasConflict(sameDay, b.slot) {
			return apperr.Conflict("the requested time slot is already booked")
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.record(ctx, EventCreated, a, "", caller.ID)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			s.metrics.BookingConflict()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create appointment")
		return nil, apperr.Wrap("create appointment", err)
	}

	s.metrics.AppointmentOp("create")
	return s.repo.GetByID(ctx, a.ID)
}

func (s *Service) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get appointment", err)
	}
	if err := AuthorizeRead(caller, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update applies a status change and/or notes edit. Leaving a terminal
// status is a validation error; re-setting the current status is a no-op.
// Authorization is checked before the payload is validated.
func (s *Service) Update(ctx context.Context, caller auth.Caller, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointment.Update")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id.String()))

	var updated *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Authorization precedes payload validation.
		if err := AuthorizeUpdate(caller, a, req); err != nil {
			return err
		}
		if req.Status == nil && req.Notes == nil {
			return apperr.Validation("nothing to update: provide status or notes")
		}
		if req.Status != nil && !req.Status.Valid() {
			return apperr.Validationf("invalid status %q", *req.Status)
		}

		prev := a.Status
		changed := false
		if req.Status != nil && *req.Status != a.Status {
			if a.Status.Terminal() {
				return apperr.Validationf("appointment is %s and can no longer change status", a.Status)
			}
			if !CanTransition(a.Status, *req.Status) {
				return apperr.Validationf("cannot change status from %s to %s", a.Status, *req.Status)
			}
			a.Status = *req.Status
			changed = true
		}
		if req.Notes != nil {
			a.Notes = strings.TrimSpace(*req.Notes)
		}

		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if changed {
			if err := s.record(ctx, EventStatusChanged, a, prev, caller.ID); err != nil {
				return err
			}
		}
		updated = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update appointment")
		return nil, apperr.Wrap("update appointment", err)
	}

	s.metrics.AppointmentOp("update")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	if err := AuthorizeDelete(caller); err != nil {
		return err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, EventDeleted, a, "", caller.ID)
	})
	if err != nil {
		return apperr.Wrap("delete appointment", err)
	}
	s.metrics.AppointmentOp("delete")
	return nil
}

// List returns the caller's visible appointments, ordered by date then
// start time.
func (s *Service) List(ctx context.Context, caller auth.Caller, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	items, total, err := s.repo.List(ctx, ScopeList(caller, f), limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list appointments", err)
	}
	return items, total, nil
}

// Availability returns the busy intervals of a doctor on day. Patient
// identities are not exposed.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, day Date) ([]Busy, error) {
	if err := s.requireRole(ctx, doctorID, auth.RoleDoctor, "doctor_id"); err != nil {
		return nil, err
	}
	sameDay, err := s.repo.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		return nil, apperr.Wrap("list availability", err)
	}
	busy := make([]Busy, 0, len(sameDay))
	for _, a := range sameDay {
		if a.Status == StatusCancelled {
			continue
		}
		busy = append(busy, Busy{Interval: a.Interval(), Status: a.Status})
	}
	return busy, nil
}

// HasConflict reports whether iv overlaps a live booking of doctorID on day.
// It reads without locking; Create repeats the check under the day lock.
func (s *Service) HasConflict(ctx context.Context, doctorID uuid.UUID, day Date, iv Interval) (bool, error) {
	if !iv.Valid() {
		return false, apperr.Validation("end_time must be after start_time")
	}
	sameDay, err := s.repo.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		return false, apperr.Wrap("check conflict", err)
	}
	return HasConflict(sameDay, iv), nil
}

func (s *Service) record(ctx context.Context, eventType string, a *Appointment, prev Status, actor uuid.UUID) error {
	if s.events == nil {
		return nil
	}
	evt, err := outbox.NewEvent(aggregateType, a.ID.String(), eventType, EventPayload{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status,
		PrevStatus:    prev,
		ActorID:       actor,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.events.Record(ctx, evt)
}
