package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lumivita/portal/internal/platform/auth"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	mw := Recovery(testLogger())
	h := mw(func(c echo.Context) error { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := h(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}

func TestRequestID_Generates(t *testing.T) {
	e := echo.New()
	mw := RequestID()
	h := mw(func(c echo.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rid, _ := c.Get("request_id").(string)
	if rid == "" {
		t.Error("expected a generated request_id")
	}
	if rec.Header().Get("X-Request-ID") != rid {
		t.Error("response header should echo request_id")
	}
}

func TestRequestID_HonorsInbound(t *testing.T) {
	e := echo.New()
	mw := RequestID()
	h := mw(func(c echo.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rid, _ := c.Get("request_id").(string); rid != "upstream-42" {
		t.Errorf("expected upstream-42, got %q", rid)
	}
}

func TestTokenBucket_Exhausts(t *testing.T) {
	b := newTokenBucket(0, 2)
	if !b.allow() || !b.allow() {
		t.Fatal("burst should allow 2 requests")
	}
	if b.allow() {
		t.Error("bucket should be exhausted")
	}
}

func TestRateLimit_TooManyRequests(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	rec2 := httptest.NewRecorder()
	err := h(e.NewContext(req2, rec2))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %v", err)
	}
	if rec2.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestAudit_RecordsEntry(t *testing.T) {
	e := echo.New()
	var got AuditEntry
	mw := Audit(testLogger(), AuditRecorderFunc(func(entry AuditEntry) error {
		got = entry
		return nil
	}))
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions?patient_id=p1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetRequest(req.WithContext(auth.WithActor(req.Context(), auth.Actor{ID: "c1", Role: auth.RoleCaregiver})))

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "c1" || got.ResourceType != "submissions" || got.Action != "read" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.PatientID != "p1" {
		t.Errorf("expected patient_id p1, got %q", got.PatientID)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	e := echo.New()
	recorded := false
	mw := Audit(testLogger(), AuditRecorderFunc(func(entry AuditEntry) error {
		recorded = true
		return nil
	}))
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded {
		t.Error("health endpoint should not be audited")
	}
}
