// Package notification delivers portal emails and SMS with template
// rendering, in-memory history, and retry for failed sends.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Built-in template ids.
const (
	TemplateSubmissionReceived   = "submission-received"
	TemplateSubmissionReviewed   = "submission-reviewed"
	TemplateAppointmentScheduled = "appointment-scheduled"
	TemplateNewMessage           = "new-message"
)

// Notification is one outbound delivery and its outcome.
type Notification struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes deliveries to the log instead of a provider. Used in dev
// where no email or SMS credentials exist.
type LogSender struct{}

func (LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("email (log only)")
	return nil
}

func (LogSender) SendSMS(_ context.Context, to, _ string) error {
	log.Info().Str("to", to).Msg("sms (log only)")
	return nil
}

type Template struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine renders {{key}} placeholders. Keys missing from the data
// map are left in place.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateSubmissionReceived,
			Subject: "We received your symptom report",
			Body:    "Hi {{patient_name}}, your symptom report from {{date}} is in the review queue. A caregiver will look at it soon.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateSubmissionReviewed,
			Subject: "A caregiver reviewed your symptom report",
			Body:    "Hi {{patient_name}}, your symptom report from {{date}} has been reviewed. Log in to see the notes and recommendation.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateAppointmentScheduled,
			Subject: "Your appointment on {{date}}",
			Body:    "Hi {{patient_name}}, an appointment has been scheduled for {{date}} at {{time}}. Reason: {{reason}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateNewMessage,
			Subject: "New message in your care portal",
			Body:    "Hi {{recipient_name}}, you have a new message waiting. Log in to read and reply.",
			Channel: ChannelEmail,
		},
	} {
		t := t
		e.templates[t.ID] = &t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Render(id string, data map[string]string) (*Template, string, string, error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return nil, "", "", fmt.Errorf("template %q not found", id)
	}

	subject, body := t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return t, subject, body, nil
}

// Manager sends notifications and keeps their history in memory. History is
// bounded per process lifetime; persistent delivery logs are out of scope.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine

	mu   sync.RWMutex
	sent map[string]*Notification
}

func NewManager(email EmailSender, sms SMSSender, templates *TemplateEngine) *Manager {
	return &Manager{
		email:     email,
		sms:       sms,
		templates: templates,
		sent:      make(map[string]*Notification),
	}
}

func (m *Manager) dispatch(ctx context.Context, n *Notification) error {
	switch n.Channel {
	case ChannelEmail:
		return m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		return m.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

// Send delivers a notification and records the outcome. A failed delivery is
// kept with status failed so it can be retried.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()

	err := m.dispatch(ctx, n)
	if err != nil {
		n.Status = "failed"
		n.Error = err.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.sent[n.ID] = n
	m.mu.Unlock()
	return err
}

// SendTemplate renders a built-in or registered template and sends it.
func (m *Manager) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Notification, error) {
	t, subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}
	n := &Notification{
		Channel:    t.Channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

func (m *Manager) Get(id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.sent[id]
	if !ok {
		return nil, errors.New("notification not found")
	}
	return n, nil
}

func (m *Manager) ListByRecipient(recipient string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Notification
	for _, n := range m.sent {
		if n.Recipient == recipient {
			out = append(out, n)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	n, ok := m.sent[id]
	m.mu.RUnlock()
	if !ok {
		return errors.New("notification not found")
	}
	if n.Status != "failed" {
		return fmt.Errorf("notification is %s, only failed sends retry", n.Status)
	}

	err := m.dispatch(ctx, n)
	m.mu.Lock()
	if err != nil {
		n.Status = "failed"
		n.Error = err.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.sent {
		stats[n.Status]++
	}
	return stats
}

// Handler exposes delivery history and retry to admins.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/stats", h.GetStats)
	g.GET("/notifications/:id", h.Get)
	g.POST("/notifications/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": h.manager.ListByRecipient(recipient, 100),
	})
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Retry(c echo.Context) error {
	if err := h.manager.Retry(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, _ := h.manager.Get(c.Param("id"))
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}
