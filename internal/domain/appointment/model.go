package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports states an appointment never leaves.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from may move to a different status to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Party is the display summary of a patient or doctor on an appointment.
type Party struct {
	ID              uuid.UUID `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	DoctorSpecialty *string   `json:"doctor_specialty,omitempty"`
}

type Appointment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      Date      `json:"date"`
	StartTime Clock     `json:"start_time"`
	EndTime   Clock     `json:"end_time"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason"`
	Notes     string    `json:"notes"`
	Patient   *Party    `json:"patient,omitempty"`
	Doctor    *Party    `json:"doctor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// CreateRequest is the booking payload. Fields stay raw so validation
// errors can name the offending field.
type CreateRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

// UpdateRequest carries the mutable fields. Nil means unchanged.
type UpdateRequest struct {
	Status *Status `json:"status"`
	Notes  *string `json:"notes"`
}

// ListFilter narrows appointment listings. Nil fields do not filter.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Date      *Date
}

// Busy is one occupied slot returned by the availability query.
type Busy struct {
	Interval
	Status Status `json:"status"`
}

// Event types written to the outbox.
const (
	EventCreated       = "appointment.created"
	EventStatusChanged = "appointment.status_changed"
	EventDeleted       = "appointment.deleted"
)

// EventPayload is the JSON body of every appointment event.
type EventPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          Date      `json:"date"`
	StartTime     Clock     `json:"start_time"`
	EndTime       Clock     `json:"end_time"`
	Status        Status    `json:"status"`
	PrevStatus    Status    `json:"previous_status,omitempty"`
	ActorID       uuid.UUID `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
