package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/internal/platform/db"
	"github.com/medclinic/clinic/internal/platform/keylock"
	"github.com/medclinic/clinic/internal/platform/outbox"
	"github.com/medclinic/clinic/internal/platform/telemetry"
)

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	fail  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return apperr.NotFound("appointment not found")
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return apperr.NotFound("appointment not found")
	}
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && !a.Date.Equal(f.Date.Time) {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date.Time) {
			return result[i].Date.Before(result[j].Date.Time)
		}
		return result[i].StartTime < result[j].StartTime
	})
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

func (m *mockRepo) ListDoctorDay(_ context.Context, doctorID uuid.UUID, day Date) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Date.Equal(day.Time) && a.Status != StatusCancelled {
			cp := *a
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result, nil
}

func (m *mockRepo) LockDoctorDay(context.Context, uuid.UUID, Date) error { return nil }

type mockDirectory map[uuid.UUID]auth.Role

func (d mockDirectory) RoleOf(_ context.Context, id uuid.UUID) (auth.Role, error) {
	r, ok := d[id]
	if !ok {
		return "", apperr.NotFound("user not found")
	}
	return r, nil
}

type fixture struct {
	svc     *Service
	repo    *mockRepo
	events  *outbox.MemoryRecorder
	patient auth.Caller
	other   auth.Caller
	doctor  auth.Caller
	admin   auth.Caller
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMockRepo(),
		events:  &outbox.MemoryRecorder{},
		patient: auth.Caller{ID: uuid.New(), Role: auth.RolePatient},
		other:   auth.Caller{ID: uuid.New(), Role: auth.RolePatient},
		doctor:  auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor},
		admin:   auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin},
	}
	dir := mockDirectory{
		f.patient.ID: auth.RolePatient,
		f.other.ID:   auth.RolePatient,
		f.doctor.ID:  auth.RoleDoctor,
		f.admin.ID:   auth.RoleAdmin,
	}
	f.svc = NewService(f.repo, db.NopTransactor{}, dir, f.events, keylock.New(), telemetry.NewMetrics("test"))
	return f
}

func (f *fixture) book(t *testing.T, date, start, end string) *Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), f.patient, CreateRequest{
		DoctorID:  f.doctor.ID.String(),
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Reason:    "checkup",
	})
	if err != nil {
		t.Fatalf("book %s %s-%s: %v", date, start, end, err)
	}
	return a
}

func (f *fixture) setStatus(t *testing.T, id uuid.UUID, st Status) {
	t.Helper()
	if _, err := f.svc.Update(context.Background(), f.admin, id, UpdateRequest{Status: &st}); err != nil {
		t.Fatalf("set status %s: %v", st, err)
	}
}

func TestService_Create_RoundTrip(t *testing.T) {
	f := newFixture()
	created, err := f.svc.Create(context.Background(), f.patient, CreateRequest{
		DoctorID:  f.doctor.ID.String(),
		Date:      "2024-01-10",
		StartTime: "09:00",
		EndTime:   "09:30",
		Reason:    "  annual checkup ",
		Notes:     "first visit",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != StatusPending {
		t.Errorf("expected pending, got %s", created.Status)
	}

	got, err := f.svc.Get(context.Background(), f.patient, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DoctorID != f.doctor.ID || got.PatientID != f.patient.ID {
		t.Errorf("unexpected parties %+v", got)
	}
	if got.Date.String() != "2024-01-10" || got.StartTime.String() != "09:00" || got.EndTime.String() != "09:30" {
		t.Errorf("unexpected slot %s %s-%s", got.Date, got.StartTime, got.EndTime)
	}
	if got.Reason != "annual checkup" || got.Notes != "first visit" {
		t.Errorf("unexpected reason/notes %q %q", got.Reason, got.Notes)
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != EventCreated {
		t.Errorf("expected one created event, got %v", types)
	}
}

func TestService_Create_ConflictScenario(t *testing.T) {
	f := newFixture()
	first := f.book(t, "2024-01-10", "09:00", "09:30")
	f.setStatus(t, first.ID, StatusConfirmed)

	_, err := f.svc.Create(context.Background(), f.patient, CreateRequest{
		DoctorID: f.doctor.ID.String(), Date: "2024-01-10", StartTime: "09:15", EndTime: "09:45", Reason: "follow-up",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	second := f.book(t, "2024-01-10", "09:30", "10:00")
	if second.Status != StatusPending {
		t.Errorf("expected pending, got %s", second.Status)
	}
}

func TestService_Create_CancelledFreesSlot(t *testing.T) {
	f := newFixture()
	first := f.book(t, "2024-01-10", "09:00", "09:30")
	f.setStatus(t, first.ID, StatusCancelled)
	f.book(t, "2024-01-10", "09:00", "09:30")
}

func TestService_Create_OtherDayOrDoctorDoesNotConflict(t *testing.T) {
	f := newFixture()
	f.book(t, "2024-01-10", "09:00", "09:30")
	f.book(t, "2024-01-11", "09:00", "09:30")
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture()
	base := CreateRequest{DoctorID: f.doctor.ID.String(), Date: "2024-01-10", StartTime: "09:00", EndTime: "09:30", Reason: "x"}

	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
	}{
		{"missing doctor", func(r *CreateRequest) { r.DoctorID = "" }},
		{"bad doctor id", func(r *CreateRequest) { r.DoctorID = "abc" }},
		{"missing date", func(r *CreateRequest) { r.Date = "" }},
		{"bad date", func(r *CreateRequest) { r.Date = "01/10/2024" }},
		{"bad start", func(r *CreateRequest) { r.StartTime = "9am" }},
		{"start equals end", func(r *CreateRequest) { r.EndTime = "09:00" }},
		{"start after end", func(r *CreateRequest) { r.StartTime = "10:00" }},
		{"missing reason", func(r *CreateRequest) { r.Reason = "   " }},
		{"doctor is not a doctor", func(r *CreateRequest) { r.DoctorID = f.other.ID.String() }},
		{"unknown doctor", func(r *CreateRequest) { r.DoctorID = uuid.NewString() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.svc.Create(context.Background(), f.patient, req)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(f.events.Events) != 0 {
		t.Errorf("no events expected, got %d", len(f.events.Events))
	}
}

func TestService_Create_RoleRules(t *testing.T) {
	f := newFixture()
	req := CreateRequest{
		PatientID: f.patient.ID.String(), DoctorID: f.doctor.ID.String(),
		Date: "2024-01-10", StartTime: "09:00", EndTime: "09:30", Reason: "x",
	}

	if _, err := f.svc.Create(context.Background(), f.doctor, req); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("doctor create: expected forbidden, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.other, req); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("cross-patient create: expected forbidden, got %v", err)
	}
	a, err := f.svc.Create(context.Background(), f.admin, req)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if a.PatientID != f.patient.ID {
		t.Errorf("expected booking for patient, got %s", a.PatientID)
	}

	req.PatientID = f.doctor.ID.String()
	req.StartTime, req.EndTime = "11:00", "11:30"
	if _, err := f.svc.Create(context.Background(), f.admin, req); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("booking a doctor as patient: expected validation, got %v", err)
	}
}

func TestService_Create_ConcurrentSameSlot(t *testing.T) {
	f := newFixture()
	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.patient, CreateRequest{
				DoctorID: f.doctor.ID.String(), Date: "2024-01-10", StartTime: "09:00", EndTime: "09:30", Reason: "x",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || conflicts != n-1 {
		t.Errorf("expected 1 booking and %d conflicts, got %d and %d", n-1, ok, conflicts)
	}
}

func TestService_Create_RepositoryFailureIsInternal(t *testing.T) {
	f := newFixture()
	f.repo.fail = errors.New("connection reset")
	_, err := f.svc.Create(context.Background(), f.patient, CreateRequest{
		DoctorID: f.doctor.ID.String(), Date: "2024-01-10", StartTime: "09:00", EndTime: "09:30", Reason: "x",
	})
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestService_Get_CrossAccess(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")

	if _, err := f.svc.Get(context.Background(), f.other, a.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for other patient, got %v", err)
	}
	otherDoctor := auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, err := f.svc.Get(context.Background(), otherDoctor, a.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for other doctor, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.doctor, a.ID); err != nil {
		t.Errorf("assigned doctor read: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.admin, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Update_PatientCancelAndComplete(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")
	b := f.book(t, "2024-01-10", "10:00", "10:30")

	completed := StatusCompleted
	if _, err := f.svc.Update(context.Background(), f.patient, b.ID, UpdateRequest{Status: &completed}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("patient complete: expected forbidden, got %v", err)
	}

	cancelled := StatusCancelled
	got, err := f.svc.Update(context.Background(), f.patient, a.ID, UpdateRequest{Status: &cancelled})
	if err != nil {
		t.Fatalf("patient cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	if _, err := f.svc.Update(context.Background(), f.other, b.ID, UpdateRequest{Status: &cancelled}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("other patient cancel: expected forbidden, got %v", err)
	}
}

func TestService_Update_TerminalStates(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")
	f.setStatus(t, a.ID, StatusCompleted)

	for _, st := range []Status{StatusPending, StatusConfirmed, StatusCancelled} {
		st := st
		if _, err := f.svc.Update(context.Background(), f.admin, a.ID, UpdateRequest{Status: &st}); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("completed -> %s: expected validation, got %v", st, err)
		}
	}

	same := StatusCompleted
	if _, err := f.svc.Update(context.Background(), f.admin, a.ID, UpdateRequest{Status: &same}); err != nil {
		t.Errorf("re-setting current status should be a no-op, got %v", err)
	}

	notes := "patient arrived late"
	got, err := f.svc.Update(context.Background(), f.doctor, a.ID, UpdateRequest{Notes: &notes})
	if err != nil {
		t.Fatalf("notes on terminal appointment: %v", err)
	}
	if got.Notes != notes {
		t.Errorf("expected notes %q, got %q", notes, got.Notes)
	}
}

func TestService_Update_Events(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")
	f.setStatus(t, a.ID, StatusConfirmed)
	f.setStatus(t, a.ID, StatusConfirmed)

	types := f.events.Types()
	if len(types) != 2 || types[1] != EventStatusChanged {
		t.Errorf("expected created + one status change, got %v", types)
	}
}

func TestService_Update_Validation(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")

	if _, err := f.svc.Update(context.Background(), f.admin, a.ID, UpdateRequest{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty update: expected validation, got %v", err)
	}
	bogus := Status("rescheduled")
	if _, err := f.svc.Update(context.Background(), f.admin, a.ID, UpdateRequest{Status: &bogus}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown status: expected validation, got %v", err)
	}
	back := StatusPending
	f.setStatus(t, a.ID, StatusConfirmed)
	if _, err := f.svc.Update(context.Background(), f.admin, a.ID, UpdateRequest{Status: &back}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("confirmed -> pending: expected validation, got %v", err)
	}
}

func TestService_Update_ForbiddenBeforeValidation(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")
	bogus := Status("bogus")
	cancelled := StatusCancelled
	strangerDoctor := auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}

	tests := []struct {
		name   string
		caller auth.Caller
		req    UpdateRequest
	}{
		{"other patient, unknown status", f.other, UpdateRequest{Status: &bogus}},
		{"other patient, empty body", f.other, UpdateRequest{}},
		{"other patient, valid status", f.other, UpdateRequest{Status: &cancelled}},
		{"other doctor, unknown status", strangerDoctor, UpdateRequest{Status: &bogus}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), tt.caller, a.ID, tt.req)
			if !errors.Is(err, apperr.ErrForbidden) {
				t.Errorf("expected forbidden, got %v", err)
			}
		})
	}

	got, err := f.svc.Get(context.Background(), f.admin, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestService_Delete(t *testing.T) {
	f := newFixture()
	a := f.book(t, "2024-01-10", "09:00", "09:30")

	if err := f.svc.Delete(context.Background(), f.doctor, a.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("doctor delete: expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.patient, a.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("patient delete: expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.admin, a.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.admin, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.admin, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
	types := f.events.Types()
	if types[len(types)-1] != EventDeleted {
		t.Errorf("expected deleted event last, got %v", types)
	}
}

func TestService_List_ScopedAndOrdered(t *testing.T) {
	f := newFixture()
	f.book(t, "2024-01-11", "08:00", "08:30")
	f.book(t, "2024-01-10", "11:00", "11:30")
	f.book(t, "2024-01-10", "09:00", "09:30")

	otherDoctor := auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	items, total, err := f.svc.List(context.Background(), f.patient, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3, got %d", total)
	}
	want := []string{"2024-01-10 09:00", "2024-01-10 11:00", "2024-01-11 08:00"}
	for i, a := range items {
		if got := a.Date.String() + " " + a.StartTime.String(); got != want[i] {
			t.Errorf("item %d: expected %s, got %s", i, want[i], got)
		}
	}

	if _, total, _ := f.svc.List(context.Background(), f.other, ListFilter{PatientID: &f.patient.ID}, 10, 0); total != 0 {
		t.Errorf("other patient must see nothing, got %d", total)
	}
	if _, total, _ := f.svc.List(context.Background(), otherDoctor, ListFilter{}, 10, 0); total != 0 {
		t.Errorf("other doctor must see nothing, got %d", total)
	}
	if _, total, _ := f.svc.List(context.Background(), f.doctor, ListFilter{}, 10, 0); total != 3 {
		t.Errorf("assigned doctor must see 3, got %d", total)
	}

	day, _ := ParseDate("2024-01-10")
	if _, total, _ := f.svc.List(context.Background(), f.admin, ListFilter{Date: &day}, 10, 0); total != 2 {
		t.Errorf("admin date filter: expected 2, got %d", total)
	}
}

func TestService_HasConflict(t *testing.T) {
	f := newFixture()
	f.book(t, "2024-01-10", "09:00", "10:00")
	c := f.book(t, "2024-01-10", "11:00", "12:00")
	f.setStatus(t, c.ID, StatusCancelled)

	day, _ := ParseDate("2024-01-10")
	other, _ := ParseDate("2024-01-11")
	slot := func(start, end string) Interval {
		s, _ := ParseClock(start)
		e, _ := ParseClock(end)
		return Interval{Start: s, End: e}
	}

	tests := []struct {
		name string
		day  Date
		iv   Interval
		want bool
	}{
		{"overlapping", day, slot("09:30", "10:30"), true},
		{"enclosing", day, slot("08:00", "11:00"), true},
		{"adjacent after", day, slot("10:00", "10:30"), false},
		{"adjacent before", day, slot("08:30", "09:00"), false},
		{"cancelled slot", day, slot("11:00", "12:00"), false},
		{"other day", other, slot("09:00", "10:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.HasConflict(context.Background(), f.doctor.ID, tt.day, tt.iv)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasConflict = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.svc.HasConflict(context.Background(), f.doctor.ID, day, slot("10:00", "09:00")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("reversed interval: expected validation, got %v", err)
	}
}

func TestService_Availability(t *testing.T) {
	f := newFixture()
	f.book(t, "2024-01-10", "10:00", "10:30")
	a := f.book(t, "2024-01-10", "09:00", "09:30")
	c := f.book(t, "2024-01-10", "11:00", "11:30")
	f.setStatus(t, c.ID, StatusCancelled)
	f.setStatus(t, a.ID, StatusConfirmed)

	day, _ := ParseDate("2024-01-10")
	busy, err := f.svc.Availability(context.Background(), f.doctor.ID, day)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected 2 busy slots, got %d", len(busy))
	}
	if busy[0].Start.String() != "09:00" || busy[0].Status != StatusConfirmed {
		t.Errorf("unexpected first slot %+v", busy[0])
	}

	if _, err := f.svc.Availability(context.Background(), f.patient.ID, day); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation for non-doctor, got %v", err)
	}
}
