package user

import (
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
)

type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Role            auth.Role  `json:"role"`
	PhoneNumber     *string    `json:"phone_number,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	DoctorSpecialty *string    `json:"doctor_specialty,omitempty"`
	ProfilePicture  *string    `json:"profile_picture,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email is not a valid address")
	}
	return email, nil
}

func parseBirthDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD")
	}
	return &t, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	DateOfBirth string `json:"date_of_birth"`
}

// CreateRequest is the admin account form. It can create any role.
type CreateRequest struct {
	RegisterRequest
	Role            auth.Role `json:"role"`
	DoctorSpecialty string    `json:"doctor_specialty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse pairs the issued token with the account it belongs to.
type LoginResponse struct {
	*auth.IssuedToken
	User *User `json:"user"`
}

// ListFilter narrows user listings. Empty fields do not filter.
type ListFilter struct {
	Role      auth.Role
	Specialty string
}

// ProfileUpdate is a role-specific set of editable profile fields.
type ProfileUpdate interface {
	Apply(u *User) error
}

// PatientProfileUpdate lists what patients and admins may change about
// themselves. Any other field in the payload is ignored.
type PatientProfileUpdate struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	PhoneNumber    *string `json:"phone_number"`
	DateOfBirth    *string `json:"date_of_birth"`
	ProfilePicture *string `json:"profile_picture"`
}

func (p PatientProfileUpdate) Apply(u *User) error {
	if p.FirstName != nil {
		v := strings.TrimSpace(*p.FirstName)
		if v == "" {
			return apperr.Validation("first_name cannot be empty")
		}
		u.FirstName = v
	}
	if p.LastName != nil {
		v := strings.TrimSpace(*p.LastName)
		if v == "" {
			return apperr.Validation("last_name cannot be empty")
		}
		u.LastName = v
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = optional(*p.PhoneNumber)
	}
	if p.DateOfBirth != nil {
		dob, err := parseBirthDate(strings.TrimSpace(*p.DateOfBirth))
		if err != nil {
			return err
		}
		u.DateOfBirth = dob
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = optional(*p.ProfilePicture)
	}
	return nil
}

// DoctorProfileUpdate adds the specialty to the common fields.
type DoctorProfileUpdate struct {
	PatientProfileUpdate
	DoctorSpecialty *string `json:"doctor_specialty"`
}

func (d DoctorProfileUpdate) Apply(u *User) error {
	if err := d.PatientProfileUpdate.Apply(u); err != nil {
		return err
	}
	if d.DoctorSpecialty != nil {
		u.DoctorSpecialty = optional(*d.DoctorSpecialty)
	}
	return nil
}

// DecodeProfileUpdate parses body into the update struct for role.
func DecodeProfileUpdate(role auth.Role, body []byte) (ProfileUpdate, error) {
	var upd ProfileUpdate
	switch role {
	case auth.RoleDoctor:
		var d DoctorProfileUpdate
		if err := json.Unmarshal(body, &d); err != nil {
			return nil, apperr.Validation("invalid request body")
		}
		upd = d
	default:
		var p PatientProfileUpdate
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, apperr.Validation("invalid request body")
		}
		upd = p
	}
	return upd, nil
}
