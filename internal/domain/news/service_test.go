package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
)

type mockRepo struct {
	items map[uuid.UUID]*Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockRepo) Create(_ context.Context, it *Item) error {
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("news item not found")
	}
	cp := *it
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, it *Item) error {
	if _, ok := m.items[it.ID]; !ok {
		return apperr.NotFound("news item not found")
	}
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return apperr.NotFound("news item not found")
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Item, int, error) {
	var result []*Item
	for _, it := range m.items {
		if f.Type != "" && it.Type != f.Type {
			continue
		}
		if f.VisibleAt != nil && !it.VisibleAt(*f.VisibleAt) {
			continue
		}
		cp := *it
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PublishDate.After(result[j].PublishDate) })
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

var (
	admin   = auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin}
	patient = auth.Caller{ID: uuid.New(), Role: auth.RolePatient}
	now     = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
)

func newTestService() *Service {
	svc := NewService(newMockRepo())
	svc.now = func() time.Time { return now }
	return svc
}

func strPtr(s string) *string        { return &s }
func typePtr(t Type) *Type           { return &t }
func timePtr(t time.Time) *time.Time { return &t }
func boolPtr(b bool) *bool           { return &b }

func input(title string, typ Type) Input {
	return Input{Title: strPtr(title), Content: strPtr("body"), Type: typePtr(typ)}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	it, err := svc.Create(context.Background(), admin, input("Flu shots", TypeNews))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !it.IsActive || it.AuthorID != admin.ID || !it.PublishDate.Equal(now) {
		t.Errorf("unexpected defaults %+v", it)
	}

	if _, err := svc.Create(context.Background(), patient, input("x", TypeNews)); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, input("x", "blog")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation for bad type, got %v", err)
	}
	bad := input("x", TypePromotion)
	bad.ExpiryDate = timePtr(now.Add(-time.Hour))
	if _, err := svc.Create(context.Background(), admin, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation for expiry before publish, got %v", err)
	}
}

func TestService_ListPublic_Visibility(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	older := input("older", TypeNews)
	older.PublishDate = timePtr(now.Add(-48 * time.Hour))
	svc.Create(ctx, admin, older)
	svc.Create(ctx, admin, input("latest", TypePromotion))

	scheduled := input("scheduled", TypeNews)
	scheduled.PublishDate = timePtr(now.Add(time.Hour))
	svc.Create(ctx, admin, scheduled)

	expired := input("expired", TypePromotion)
	expired.PublishDate = timePtr(now.Add(-72 * time.Hour))
	expired.ExpiryDate = timePtr(now.Add(-time.Hour))
	svc.Create(ctx, admin, expired)

	hidden := input("hidden", TypeNews)
	hidden.IsActive = boolPtr(false)
	hiddenItem, _ := svc.Create(ctx, admin, hidden)

	items, total, err := svc.ListPublic(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || items[0].Title != "latest" || items[1].Title != "older" {
		t.Errorf("unexpected visible items (%d)", total)
	}

	_, total, _ = svc.ListPublic(ctx, TypePromotion, 10, 0)
	if total != 1 {
		t.Errorf("expected 1 promotion, got %d", total)
	}
	if _, _, err := svc.ListPublic(ctx, "blog", 10, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation, got %v", err)
	}

	if _, err := svc.Get(ctx, nil, hiddenItem.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("anonymous get of hidden item: expected not found, got %v", err)
	}
	if _, err := svc.Get(ctx, &admin, hiddenItem.ID); err != nil {
		t.Errorf("admin get of hidden item: %v", err)
	}
}

func TestService_UpdateDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	it, _ := svc.Create(ctx, admin, input("Flu shots", TypeNews))

	got, err := svc.Update(ctx, admin, it.ID, Input{Title: strPtr("Flu shots available")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Flu shots available" || got.Content != "body" {
		t.Errorf("unexpected update %+v", got)
	}
	if _, err := svc.Update(ctx, patient, it.ID, Input{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, patient, it.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, admin, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, admin, it.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	svc := newTestService()
	svc.Create(context.Background(), admin, input("Flu shots", TypeNews))
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?type=news", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/?type=blog", nil)
	err := h.List(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
