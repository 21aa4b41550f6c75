package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func roleContext(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if roles != nil {
		req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	h := RequireRole(RoleDoctor, RolePatient)(okHandler)
	if err := h(roleContext("doctor")); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	h := RequireRole(RoleDoctor)(okHandler)
	expectHTTPStatus(t, h(roleContext("patient")), http.StatusForbidden)
}

func TestRequireRole_AdminAlwaysPasses(t *testing.T) {
	h := RequireRole(RoleDoctor)(okHandler)
	if err := h(roleContext("admin")); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Anonymous(t *testing.T) {
	h := RequireRole(RolePatient)(okHandler)
	expectHTTPStatus(t, h(roleContext()), http.StatusUnauthorized)
}
