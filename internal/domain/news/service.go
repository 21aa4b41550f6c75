package news

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

// ListPublic returns the items visible right now, newest first.
func (s *Service) ListPublic(ctx context.Context, typ Type, limit, offset int) ([]*Item, int, error) {
	if typ != "" && !typ.Valid() {
		return nil, 0, apperr.Validationf("invalid type %q", typ)
	}
	now := s.now()
	items, total, err := s.repo.List(ctx, ListFilter{Type: typ, VisibleAt: &now}, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list news", err)
	}
	return items, total, nil
}

// Get hides inactive, scheduled and expired items from everyone but admins.
func (s *Service) Get(ctx context.Context, caller *auth.Caller, id uuid.UUID) (*Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get news", err)
	}
	if !it.VisibleAt(s.now()) && (caller == nil || !caller.IsAdmin()) {
		return nil, apperr.NotFound("news item not found")
	}
	return it, nil
}

func (s *Service) Create(ctx context.Context, caller auth.Caller, in Input) (*Item, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can publish news")
	}
	it := &Item{ID: uuid.New(), PublishDate: s.now().UTC(), IsActive: true, AuthorID: caller.ID}
	if err := in.Apply(it); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, apperr.Wrap("create news", err)
	}
	return it, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Caller, id uuid.UUID, in Input) (*Item, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can edit news")
	}
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get news", err)
	}
	if err := in.Apply(it); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, apperr.Wrap("update news", err)
	}
	return it, nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return apperr.Forbidden("only administrators can delete news")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Wrap("delete news", err)
	}
	return nil
}
