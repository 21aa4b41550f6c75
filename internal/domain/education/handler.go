package education

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/materials", h.List)
	api.GET("/materials/:id", h.Get)

	authors := api.Group("/materials", auth.RequireRole(auth.RoleDoctor))
	authors.POST("", h.Create)
	authors.PUT("/:id", h.Update)
	authors.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPublished(c.Request().Context(),
		Type(c.QueryParam("type")), c.QueryParam("category"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Material{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var caller *auth.Caller
	if cl, err := auth.CallerFromContext(c.Request().Context()); err == nil {
		caller = &cl
	}
	m, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Create(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.Create(c.Request().Context(), caller, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Update(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.Update(c.Request().Context(), caller, id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), caller, id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
