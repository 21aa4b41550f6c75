package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medclinic/clinic/internal/platform/auth"
)

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc, nil)
	e := echo.New()

	rec := httptest.NewRecorder()
	body := `{"email":"ann@example.com","password":"secret1","first_name":"Ann","last_name":"Lee"}`
	if err := h.Register(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password data: %s", rec.Body.String())
	}

	err := h.Register(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))
	if code := statusOf(t, err); code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", code)
	}

	rec = httptest.NewRecorder()
	if err := h.Login(e.NewContext(jsonRequest(http.MethodPost, `{"email":"ann@example.com","password":"secret1"}`), rec)); err != nil {
		t.Fatalf("login: %v", err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["access_token"] == "" || resp["token_type"] != "Bearer" || resp["user"] == nil {
		t.Errorf("unexpected login response %s", rec.Body.String())
	}

	err = h.Login(e.NewContext(jsonRequest(http.MethodPost, `{"email":"ann@example.com","password":"nope123"}`), httptest.NewRecorder()))
	if code := statusOf(t, err); code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", code)
	}
}

func TestHandler_Profile(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc, nil)
	e := echo.New()
	u := register(t, svc, "ann@example.com")
	caller := auth.Caller{ID: u.ID, Role: auth.RolePatient}

	req := jsonRequest(http.MethodPut, `{"last_name":"Smith","doctor_specialty":"Surgery"}`)
	req = req.WithContext(auth.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	if err := h.UpdateProfile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"last_name":"Smith"`) || strings.Contains(rec.Body.String(), "Surgery") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithCaller(req.Context(), caller))
	rec = httptest.NewRecorder()
	if err := h.GetProfile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	err := h.GetProfile(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	if code := statusOf(t, err); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestRoutes_LogoutRevokesToken(t *testing.T) {
	svc, _, revs := newTestService()
	h := NewHandler(svc, nil)
	u := register(t, svc, "ann@example.com")

	secret := []byte("test-secret-key-that-is-long-enough")
	tok, err := auth.NewTokenIssuer(secret, "clinic-test", time.Hour).Issue(u.ID, u.Email, u.Role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	e := echo.New()
	api := e.Group("/api/v1", auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      "clinic-test",
		SigningKey:  secret,
		Revocations: revs,
		Skipper:     auth.AuthSkipper,
	}))
	h.RegisterRoutes(api)

	do := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.AccessToken)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(http.MethodGet, "/api/v1/profile"); code != http.StatusOK {
		t.Fatalf("profile before logout: expected 200, got %d", code)
	}
	if code := do(http.MethodPost, "/api/v1/auth/logout"); code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", code)
	}
	if code := do(http.MethodGet, "/api/v1/profile"); code != http.StatusUnauthorized {
		t.Errorf("profile after logout: expected 401, got %d", code)
	}
	if code := do(http.MethodGet, "/api/v1/users"); code != http.StatusUnauthorized {
		t.Errorf("revoked token on admin route: expected 401, got %d", code)
	}
}

func TestRoutes_UsersAdminOnly(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc, nil)
	e := echo.New()
	secret := []byte("test-secret-key-that-is-long-enough")
	api := e.Group("/api/v1", auth.JWTMiddleware(auth.JWTConfig{SigningKey: secret, Skipper: auth.AuthSkipper}))
	h.RegisterRoutes(api)

	u := register(t, svc, "ann@example.com")
	tok, _ := auth.NewTokenIssuer(secret, "", time.Hour).Issue(u.ID, u.Email, u.Role)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.AccessToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient listing users: expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous doctors listing: expected 401, got %d", rec.Code)
	}
}
