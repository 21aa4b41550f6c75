package appointment

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
	g := api.Group("/appointments", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	g.GET("", h.List)
	g.GET("/availability", h.Availability)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Create(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), caller, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
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
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Update(c.Request().Context(), caller, id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
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

func (h *Handler) List(c echo.Context) error {
	caller, err := auth.CallerFromContext(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), caller, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Availability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id must be a UUID")
	}
	day, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	busy, err := h.svc.Availability(c.Request().Context(), doctorID, day)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      day,
		"busy":      busy,
	})
}

func filterFromQuery(c echo.Context) (ListFilter, error) {
	var f ListFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("patient_id must be a UUID")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("doctor_id must be a UUID")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		st := Status(v)
		if !st.Valid() {
			return f, apperr.Validationf("invalid status %q", v)
		}
		f.Status = &st
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return f, apperr.Validation(err.Error())
		}
		f.Date = &d
	}
	return f, nil
}
