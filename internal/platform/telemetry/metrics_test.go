package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.AppointmentOp("create")
	m.BookingConflict()
	m.OutboxPublished(3)
	m.CacheLookup("services", true)
	if m.Registry() != nil {
		t.Error("expected nil registry")
	}

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := m.Middleware()(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("clinic")
	m.AppointmentOp("create")
	m.AppointmentOp("create")
	m.BookingConflict()
	m.OutboxPublished(4)
	m.CacheLookup("services", false)

	if got := testutil.ToFloat64(m.appointmentOps.WithLabelValues("create")); got != 2 {
		t.Errorf("expected 2 creates, got %v", got)
	}
	if got := testutil.ToFloat64(m.bookingConflicts); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.outboxPublished); got != 4 {
		t.Errorf("expected 4 published, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("services", "miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := NewMetrics("clinic")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	})
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	want := `clinic_http_requests_total{method="GET",route="/api/v1/appointments/:id",status_code="404"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("expected %s in metrics output", want)
	}
}
