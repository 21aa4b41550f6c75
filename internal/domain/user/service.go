package user

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
)

type Service struct {
	repo        Repository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore

	dummyOnce sync.Once
	dummyHash string
}

func NewService(repo Repository, tokens *auth.TokenIssuer, revocations auth.RevocationStore) *Service {
	return &Service{repo: repo, tokens: tokens, revocations: revocations}
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	u, err := s.newUser(req, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperr.Wrap("create user", err)
	}
	return u, nil
}

// CreateUser lets an admin open an account with any role.
func (s *Service) CreateUser(ctx context.Context, caller auth.Caller, req CreateRequest) (*User, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can create accounts")
	}
	role := req.Role
	if role == "" {
		role = auth.RolePatient
	}
	if !role.Valid() {
		return nil, apperr.Validationf("invalid role %q", req.Role)
	}
	u, err := s.newUser(req.RegisterRequest, role)
	if err != nil {
		return nil, err
	}
	if role == auth.RoleDoctor {
		u.DoctorSpecialty = optional(req.DoctorSpecialty)
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperr.Wrap("create user", err)
	}
	return u, nil
}

func (s *Service) newUser(req RegisterRequest, role auth.Role) (*User, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		return nil, apperr.Validation("first_name and last_name are required")
	}
	dob, err := parseBirthDate(strings.TrimSpace(req.DateOfBirth))
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, apperr.Validation(err.Error())
	}
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	return &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Role:         role,
		PhoneNumber:  optional(req.PhoneNumber),
		DateOfBirth:  dob,
	}, nil
}

// Login checks the credentials and issues an access token. Unknown emails
// and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	invalid := apperr.Unauthenticated("invalid email or password")

	email, err := NormalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, invalid
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		// Equalize timing with the wrong-password path.
		_, _ = auth.CheckPassword(s.dummy(), req.Password)
		return nil, invalid
	}
	if err != nil {
		return nil, apperr.Wrap("load user", err)
	}
	ok, err := auth.CheckPassword(u.PasswordHash, req.Password)
	if err != nil {
		return nil, apperr.Internal("check password", err)
	}
	if !ok {
		return nil, invalid
	}

	tok, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &LoginResponse{IssuedToken: tok, User: u}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword(uuid.NewString())
	})
	return s.dummyHash
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.revocations == nil || jti == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, jti, expiresAt); err != nil {
		return apperr.Internal("revoke token", err)
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, caller auth.Caller) (*User, error) {
	u, err := s.repo.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Wrap("load profile", err)
	}
	return u, nil
}

// UpdateProfile decodes body with the caller's role-specific struct and
// applies it. Fields outside that struct are ignored.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Caller, body []byte) (*User, error) {
	upd, err := DecodeProfileUpdate(caller.Role, body)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Wrap("load profile", err)
	}
	if err := upd.Apply(u); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, apperr.Wrap("update profile", err)
	}
	return u, nil
}

// ListDoctors returns doctor accounts, optionally by specialty.
func (s *Service) ListDoctors(ctx context.Context, specialty string, limit, offset int) ([]*User, int, error) {
	items, total, err := s.repo.List(ctx, ListFilter{Role: auth.RoleDoctor, Specialty: strings.TrimSpace(specialty)}, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list doctors", err)
	}
	return items, total, nil
}

func (s *Service) ListUsers(ctx context.Context, caller auth.Caller, f ListFilter, limit, offset int) ([]*User, int, error) {
	if !caller.IsAdmin() {
		return nil, 0, apperr.Forbidden("only administrators can list accounts")
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, apperr.Validationf("invalid role %q", f.Role)
	}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list users", err)
	}
	return items, total, nil
}

// RoleOf resolves a user's role for other domains.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (auth.Role, error) {
	return s.repo.RoleOf(ctx, id)
}
