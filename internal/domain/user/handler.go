package user

import (
	"errors"
	"net/http"

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
	admin := auth.RequireRole(auth.RoleAdmin)
	caregiver := auth.RequireRole(auth.RoleCaregiver)
	patient := auth.RequireRole(auth.RolePatient)
	any := auth.RequireRole(auth.RolePatient, auth.RoleCaregiver)

	api.POST("/users", h.Register)
	api.GET("/users", h.List, caregiver)
	api.GET("/users/:id", h.Get, any)
	api.PUT("/users/:id/role", h.SetRole, admin)
	api.DELETE("/users/:id", h.Delete, admin)

	api.GET("/me", h.Me, any)
	api.PATCH("/me", h.UpdateMe, any)

	api.GET("/patients/:id/profile", h.GetPatientProfile, any)
	api.PUT("/me/patient-profile", h.SavePatientProfile, patient)
	api.GET("/caregivers/:id/profile", h.GetCaregiverProfile, any)
	api.PUT("/me/caregiver-profile", h.SaveCaregiverProfile, caregiver)

	api.GET("/caregivers/:id/patients", h.AssignedPatients, caregiver)
	api.PUT("/caregivers/:id/patients/:patientID", h.AssignPatient, caregiver)
	api.DELETE("/caregivers/:id/patients/:patientID", h.UnassignPatient, caregiver)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, ErrEmailTaken.Error())
	case errors.Is(err, ErrValidation):
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

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var req UpdateMeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateMe(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c echo.Context) error {
	users, err := h.svc.List(c.Request().Context(), c.QueryParam("role"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": users, "total": len(users)})
}

func (h *Handler) SetRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.SetRole(c.Request().Context(), id, req.Role)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
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

func (h *Handler) GetPatientProfile(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.PatientProfile(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SavePatientProfile(c echo.Context) error {
	var p PatientProfile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	saved, err := h.svc.SavePatientProfile(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) GetCaregiverProfile(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CaregiverProfile(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func pairIDs(c echo.Context) (caregiverID, patientID uuid.UUID, err error) {
	caregiverID, err = pathID(c)
	if err != nil {
		return
	}
	patientID, err = uuid.Parse(c.Param("patientID"))
	if err != nil {
		err = echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return
}

func (h *Handler) AssignPatient(c echo.Context) error {
	caregiverID, patientID, err := pairIDs(c)
	if err != nil {
		return err
	}
	if err := h.svc.AssignPatient(c.Request().Context(), caregiverID, patientID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UnassignPatient(c echo.Context) error {
	caregiverID, patientID, err := pairIDs(c)
	if err != nil {
		return err
	}
	if err := h.svc.UnassignPatient(c.Request().Context(), caregiverID, patientID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AssignedPatients(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.AssignedPatients(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patients": patients, "total": len(patients)})
}

func (h *Handler) SaveCaregiverProfile(c echo.Context) error {
	var p CaregiverProfile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	saved, err := h.svc.SaveCaregiverProfile(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}
