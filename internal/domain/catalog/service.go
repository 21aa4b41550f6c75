package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/internal/platform/cache"
	"github.com/medclinic/clinic/internal/platform/telemetry"
)

const (
	cacheName  = "catalog"
	versionKey = "catalog:version"
)

// Service manages the catalog. Listings are cached under a version key that
// every write bumps, so stale pages are never served after a change.
type Service struct {
	repo    Repository
	cache   cache.Store
	ttl     time.Duration
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func NewService(repo Repository, store cache.Store, ttl time.Duration, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	if store == nil {
		store = cache.Nop{}
	}
	return &Service{repo: repo, cache: store, ttl: ttl, metrics: metrics, logger: logger}
}

type page struct {
	Items []*MedicalService `json:"items"`
	Total int               `json:"total"`
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicalService, int, error) {
	key := s.listKey(ctx, f, limit, offset)
	if key != "" {
		if b, err := s.cache.Get(ctx, key); err == nil {
			var p page
			if err := json.Unmarshal(b, &p); err == nil {
				s.metrics.CacheLookup(cacheName, true)
				return p.Items, p.Total, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn().Err(err).Msg("catalog cache read failed")
		}
		s.metrics.CacheLookup(cacheName, false)
	}

	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list services", err)
	}

	if key != "" {
		if b, err := json.Marshal(page{Items: items, Total: total}); err == nil {
			if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
				s.logger.Warn().Err(err).Msg("catalog cache write failed")
			}
		}
	}
	return items, total, nil
}

// listKey returns "" when caching is disabled or the version is unreadable.
func (s *Service) listKey(ctx context.Context, f ListFilter, limit, offset int) string {
	if s.ttl <= 0 {
		return ""
	}
	version := "0"
	b, err := s.cache.Get(ctx, versionKey)
	switch {
	case err == nil:
		version = string(b)
	case !errors.Is(err, cache.ErrMiss):
		s.logger.Warn().Err(err).Msg("catalog cache version read failed")
		return ""
	}
	active := "any"
	if f.IsActive != nil {
		active = strconv.FormatBool(*f.IsActive)
	}
	return fmt.Sprintf("catalog:v%s:list:%s:%s:%d:%d", version, f.Category, active, limit, offset)
}

func (s *Service) invalidate(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, versionKey); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get service", err)
	}
	return svc, nil
}

func requireAdmin(caller auth.Caller) error {
	if !caller.IsAdmin() {
		return apperr.Forbidden("only administrators can modify services")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, caller auth.Caller, in Input) (*MedicalService, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	svc, err := in.New()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, apperr.Wrap("create service", err)
	}
	s.invalidate(ctx)
	return svc, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Caller, id uuid.UUID, in Input) (*MedicalService, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get service", err)
	}
	if err := in.Apply(svc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, apperr.Wrap("update service", err)
	}
	s.invalidate(ctx)
	return svc, nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Wrap("delete service", err)
	}
	s.invalidate(ctx)
	return nil
}
