package visit

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/praxisoft/backoffice/internal/platform/auth"
	"github.com/praxisoft/backoffice/internal/platform/db"
	"github.com/praxisoft/backoffice/internal/platform/middleware"
	"github.com/praxisoft/backoffice/internal/platform/phi"
	"github.com/praxisoft/backoffice/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(db.RoleProvider, db.RoleStaff))
	g.GET("/visits/:id", h.GetVisit)
	g.GET("/visits/:id/history", h.GetStatusHistory)
	g.GET("/patients/:patient_id/visits", h.ListByPatient)

	// Authoring and signing are provider-only.
	p := api.Group("", auth.RequireRole(db.RoleProvider))
	p.POST("/visits", h.CreateVisit)
	p.PUT("/visits/:id", h.UpdateVisit)
	p.POST("/visits/:id/sign", h.SignVisit)
	p.POST("/visits/:id/lock", h.LockVisit)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.svc.CreateVisit(c.Request().Context(), actor, &v, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetVisit(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	v, err := h.svc.GetVisit(c.Request().Context(), actor, id, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateVisit(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID = id

	updated, err := h.svc.UpdateVisit(c.Request().Context(), actor, &v, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) SignVisit(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	signed, err := h.svc.SignVisit(c.Request().Context(), actor, id, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, signed)
}

func (h *Handler) LockVisit(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	locked, err := h.svc.LockVisit(c.Request().Context(), actor, id, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, locked)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	params := pagination.FromContext(c)

	visits, total, err := h.svc.ListVisitsByPatient(c.Request().Context(), actor, patientID, params.Limit, params.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, params.Limit, params.Offset))
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	history, err := h.svc.GetStatusHistory(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, history)
}

// httpError maps service errors onto HTTP responses. Crypto failures get a
// deliberately generic message.
func httpError(err error) error {
	switch {
	case phi.IsCryptoError(err):
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process record")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotEditable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
