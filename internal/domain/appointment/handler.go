package appointment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/praxisoft/backoffice/internal/platform/audit"
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
	g.POST("/appointments", h.Create)
	g.GET("/appointments/:id", h.Get)
	g.POST("/appointments/:id/confirm", h.Confirm)
	g.POST("/appointments/:id/begin", h.Begin)
	g.POST("/appointments/:id/complete", h.Complete)
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.POST("/appointments/:id/no-show", h.MarkNoShow)
	g.POST("/appointments/:id/reschedule", h.Reschedule)
	g.GET("/patients/:patient_id/appointments", h.ListByPatient)
	g.GET("/providers/:provider_id/appointments", h.ProviderDay)
}

func (h *Handler) Create(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.svc.CreateAppointment(c.Request().Context(), actor, &a, middleware.RequestMeta(c))
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

	a, err := h.svc.GetAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.runTransition(c, h.svc.Confirm)
}

func (h *Handler) Begin(c echo.Context) error {
	return h.runTransition(c, h.svc.Begin)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.runTransition(c, h.svc.Complete)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.runTransition(c, h.svc.MarkNoShow)
}

type transitionFn func(ctx context.Context, sc db.SessionContext, id uuid.UUID, meta audit.RequestMeta) (*Appointment, error)

func (h *Handler) runTransition(c echo.Context, fn transitionFn) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := fn(c.Request().Context(), actor, id, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Cancel(c.Request().Context(), actor, id, body.Reason, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Reschedule(c.Request().Context(), actor, id, body.StartsAt, body.EndsAt, middleware.RequestMeta(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
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

	appts, total, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID, params.Limit, params.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, params.Limit, params.Offset))
}

func (h *Handler) ProviderDay(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	providerID, err := uuid.Parse(c.Param("provider_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}

	day := time.Now().UTC()
	if d := c.QueryParam("date"); d != "" {
		day, err = time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		}
	}

	appts, err := h.svc.ProviderDay(c.Request().Context(), actor, providerID, day)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

// httpError maps service errors onto HTTP responses. Crypto failures get a
// deliberately generic message.
func httpError(err error) error {
	switch {
	case phi.IsCryptoError(err):
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process record")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
