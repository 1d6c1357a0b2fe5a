package submission

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lumivita/portal/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := auth.RequireRole(auth.RolePatient)
	caregiver := auth.RequireRole(auth.RoleCaregiver)
	any := auth.RequireRole(auth.RolePatient, auth.RoleCaregiver)

	subs := api.Group("/submissions")
	subs.POST("", h.Create, patient)
	subs.GET("", h.ListMine, patient)
	subs.GET("/:id", h.Get, any)
	subs.PATCH("/:id", h.Edit, patient)
	subs.DELETE("/:id", h.Delete, patient)
	subs.POST("/:id/review", h.RecordReview, caregiver)
	subs.GET("/:id/reviews", h.ListReviews, any)

	triage := api.Group("/triage", caregiver)
	triage.GET("/pending", h.ListPending)
	triage.GET("/reviewed", h.ListReviewed)
	triage.GET("/queue", h.ListQueue)
	triage.GET("/roster", h.ListRoster)
	triage.GET("/stats", h.Stats)

	api.GET("/patients/:id/submissions", h.ListForPatient, any)
}

// httpError maps domain sentinels onto HTTP statuses. Unknown errors become
// 500s so storage failures never leak details to the client.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrReviewed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSeverity), errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sub, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) ListMine(c echo.Context) error {
	subs, err := h.svc.ListMine(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := pathID(c)
	if err != nil {
		return err
	}
	subs, err := h.svc.ListForPatient(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (h *Handler) Edit(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req EditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sub, err := h.svc.Edit(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordReview(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rv, err := h.svc.RecordReview(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rv)
}

func (h *Handler) ListReviews(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	reviews, err := h.svc.ListReviews(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reviews": reviews})
}

func (h *Handler) ListPending(c echo.Context) error {
	items, err := h.svc.ListPending(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

func (h *Handler) ListReviewed(c echo.Context) error {
	items, err := h.svc.ListReviewed(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

func (h *Handler) ListQueue(c echo.Context) error {
	opts := RankOptions{
		SortBy:      SortBy(c.QueryParam("sort_by")),
		Status:      StatusFilter(c.QueryParam("status")),
		Appointment: AppointmentFilter(c.QueryParam("appointment")),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		opts.Limit = limit
	}
	items, err := h.svc.ListQueue(c.Request().Context(), opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": len(items)})
}

func (h *Handler) ListRoster(c echo.Context) error {
	q := RosterQuery{
		Search: c.QueryParam("q"),
		SortBy: SortBy(c.QueryParam("sort_by")),
		Status: StatusFilter(c.QueryParam("status")),
	}
	entries, err := h.svc.ListRoster(c.Request().Context(), q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patients": entries, "total": len(entries)})
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}
