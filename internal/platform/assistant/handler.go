package assistant

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lumivita/portal/internal/platform/auth"
)

const maxHistory = 40

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	any := auth.RequireRole(auth.RolePatient, auth.RoleCaregiver)
	api.POST("/assistant/chat", h.Chat, any)
}

type chatRequest struct {
	Messages []Message `json:"messages"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages are required")
	}
	if len(req.Messages) > maxHistory {
		req.Messages = req.Messages[len(req.Messages)-maxHistory:]
	}
	for _, m := range req.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			return echo.NewHTTPError(http.StatusBadRequest, "message roles must be user or assistant")
		}
		if strings.TrimSpace(m.Content) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "empty message content")
		}
	}

	reply, err := h.client.Chat(c.Request().Context(), req.Messages)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant is not available")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "assistant request failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"reply": reply})
}
