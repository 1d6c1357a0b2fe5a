package message

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lumivita/portal/internal/platform/auth"
	"github.com/lumivita/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	any := auth.RequireRole(auth.RolePatient, auth.RoleCaregiver)

	msgs := api.Group("/messages", any)
	msgs.POST("", h.Send)
	msgs.GET("/threads", h.Threads)
	msgs.GET("/unread", h.UnreadCount)
	msgs.GET("/with/:peer", h.Conversation)
	msgs.POST("/with/:peer/read", h.MarkRead)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func peerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("peer"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid peer id")
	}
	return id, nil
}

func (h *Handler) Send(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.Send(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Conversation(c echo.Context) error {
	peer, err := peerID(c)
	if err != nil {
		return err
	}
	msgs, err := h.svc.Conversation(c.Request().Context(), peer)
	if err != nil {
		return httpError(err)
	}

	// Conversations are returned oldest first; page from the offset forward.
	p := pagination.FromContext(c)
	total := len(msgs)
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(msgs[start:end], total, p.Limit, p.Offset))
}

func (h *Handler) Threads(c echo.Context) error {
	threads, err := h.svc.Threads(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"threads": threads})
}

func (h *Handler) MarkRead(c echo.Context) error {
	peer, err := peerID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), peer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"marked_read": n})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	n, err := h.svc.UnreadCount(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"unread": n})
}
