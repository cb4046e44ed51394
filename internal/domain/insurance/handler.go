package insurance

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/praxisoft/backoffice/internal/platform/auth"
	"github.com/praxisoft/backoffice/internal/platform/db"
	"github.com/praxisoft/backoffice/internal/platform/middleware"
	"github.com/praxisoft/backoffice/internal/platform/phi"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(db.RoleProvider, db.RoleStaff))
	g.POST("/insurance", h.Add)
	g.GET("/insurance/:id", h.Get)
	g.PUT("/insurance/:id", h.Update)
	g.DELETE("/insurance/:id", h.Remove)
	g.GET("/patients/:patient_id/insurance", h.ListByPatient)
}

func (h *Handler) Add(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var pi PatientInsurance
	if err := c.Bind(&pi); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.svc.AddCoverage(c.Request().Context(), actor, &pi, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	pi, err := h.svc.GetCoverage(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pi)
}

func (h *Handler) Update(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var pi PatientInsurance
	if err := c.Bind(&pi); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pi.ID = id

	updated, err := h.svc.UpdateCoverage(c.Request().Context(), actor, &pi, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Remove(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.svc.RemoveCoverage(c.Request().Context(), actor, id, middleware.RequestMeta(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
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
	activeOnly := c.QueryParam("active") == "true"

	items, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID, activeOnly)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// httpError maps service errors onto HTTP responses. Crypto failures get a
// deliberately generic message.
func httpError(err error) error {
	switch {
	case phi.IsCryptoError(err):
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process record")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "coverage not found")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
