package education

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) ListPublished(ctx context.Context, typ Type, category string, limit, offset int) ([]*Material, int, error) {
	if typ != "" && !typ.Valid() {
		return nil, 0, apperr.Validationf("invalid type %q", typ)
	}
	f := ListFilter{Type: typ, Category: category, PublishedOnly: true, Now: s.now()}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list materials", err)
	}
	return items, total, nil
}

// canManage reports whether caller may edit m: admins always, doctors their own.
func canManage(caller *auth.Caller, m *Material) bool {
	if caller == nil {
		return false
	}
	return caller.IsAdmin() || (caller.IsDoctor() && m.AuthorID == caller.ID)
}

// Get hides drafts from everyone except their author and admins.
func (s *Service) Get(ctx context.Context, caller *auth.Caller, id uuid.UUID) (*Material, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get material", err)
	}
	published := m.IsPublished && !m.PublishDate.After(s.now())
	if !published && !canManage(caller, m) {
		return nil, apperr.NotFound("material not found")
	}
	return m, nil
}

func (s *Service) Create(ctx context.Context, caller auth.Caller, in Input) (*Material, error) {
	if !caller.IsAdmin() && !caller.IsDoctor() {
		return nil, apperr.Forbidden("only doctors and administrators can publish materials")
	}
	m := &Material{ID: uuid.New(), AuthorID: caller.ID, IsPublished: true, PublishDate: s.now().UTC()}
	if err := in.Apply(m); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, apperr.Wrap("create material", err)
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Caller, id uuid.UUID, in Input) (*Material, error) {
	if !caller.IsAdmin() && !caller.IsDoctor() {
		return nil, apperr.Forbidden("only doctors and administrators can edit materials")
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get material", err)
	}
	if !canManage(&caller, m) {
		return nil, apperr.Forbidden("doctors can only edit their own materials")
	}
	if err := in.Apply(m); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, apperr.Wrap("update material", err)
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return apperr.Forbidden("only administrators can delete materials")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Wrap("delete material", err)
	}
	return nil
}
