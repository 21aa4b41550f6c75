package user

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc        *Service
	loginLimit echo.MiddlewareFunc
}

// NewHandler builds the account handler. loginLimit, when set, guards the
// login and register endpoints.
func NewHandler(svc *Service, loginLimit echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, loginLimit: loginLimit}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	var limited []echo.MiddlewareFunc
	if h.loginLimit != nil {
		limited = append(limited, h.loginLimit)
	}
	api.POST("/auth/register", h.Register, limited...)
	api.POST("/auth/login", h.Login, limited...)

	member := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	member.POST("/auth/logout", h.Logout)
	member.GET("/profile", h.GetProfile)
	member.PUT("/profile", h.UpdateProfile)
	member.GET("/doctors", h.ListDoctors)

	admin := api.Group("/users", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.ListUsers)
	admin.POST("", h.CreateUser)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	jti, exp := auth.TokenFromContext(ctx)
	if err := h.svc.Logout(ctx, jti, exp); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetProfile(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	u, err := h.svc.Profile(c.Request().Context(), caller)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), caller, body)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("specialty"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListUsers(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	f := ListFilter{Role: auth.Role(c.QueryParam("role")), Specialty: c.QueryParam("specialty")}
	items, total, err := h.svc.ListUsers(c.Request().Context(), caller, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateUser(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), caller, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}
