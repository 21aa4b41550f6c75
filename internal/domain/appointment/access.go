package appointment

import (
	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
)

// ScopeList narrows f to what caller may see. Patients and doctors only see
// their own appointments whatever filters they send; admins keep theirs.
func ScopeList(caller auth.Caller, f ListFilter) ListFilter {
	id := caller.ID
	switch caller.Role {
	case auth.RolePatient:
		f.PatientID = &id
	case auth.RoleDoctor:
		f.DoctorID = &id
	}
	return f
}

// AuthorizeRead rejects reads of appointments the caller takes no part in.
func AuthorizeRead(caller auth.Caller, a *Appointment) error {
	switch caller.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RolePatient:
		if a.PatientID == caller.ID {
			return nil
		}
	case auth.RoleDoctor:
		if a.DoctorID == caller.ID {
			return nil
		}
	}
	return apperr.Forbidden("access to this appointment is denied")
}

// AuthorizeCreate resolves the patient a booking is for. Patients book for
// themselves, admins for any patient, doctors never.
func AuthorizeCreate(caller auth.Caller, requestedPatient string) (uuid.UUID, error) {
	switch caller.Role {
	case auth.RolePatient:
		if requestedPatient == "" {
			return caller.ID, nil
		}
		id, err := uuid.Parse(requestedPatient)
		if err != nil || id != caller.ID {
			return uuid.Nil, apperr.Forbidden("patients can only book appointments for themselves")
		}
		return id, nil
	case auth.RoleAdmin:
		if requestedPatient == "" {
			return uuid.Nil, apperr.Validation("patient_id is required")
		}
		id, err := uuid.Parse(requestedPatient)
		if err != nil {
			return uuid.Nil, apperr.Validation("patient_id must be a UUID")
		}
		return id, nil
	default:
		return uuid.Nil, apperr.Forbidden("only patients and administrators can book appointments")
	}
}

// AuthorizeUpdate applies the per-role mutation rules. Patients may only
// cancel their own appointment; doctors may change status and notes on
// their own; admins on any.
func AuthorizeUpdate(caller auth.Caller, a *Appointment, req UpdateRequest) error {
	switch caller.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDoctor:
		if a.DoctorID != caller.ID {
			return apperr.Forbidden("access to this appointment is denied")
		}
		return nil
	case auth.RolePatient:
		if a.PatientID != caller.ID {
			return apperr.Forbidden("access to this appointment is denied")
		}
		if req.Notes != nil || req.Status == nil || *req.Status != StatusCancelled {
			return apperr.Forbidden("patients can only cancel appointments")
		}
		return nil
	}
	return apperr.Forbidden("access to this appointment is denied")
}

// AuthorizeDelete allows hard deletes by admins only.
func AuthorizeDelete(caller auth.Caller) error {
	if caller.Role != auth.RoleAdmin {
		return apperr.Forbidden("only administrators can delete appointments")
	}
	return nil
}
