package submission

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity is the patient-reported intensity tier of symptoms.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Status tracks a submission through the triage flow. The transition is
// one-way: a reviewed submission never returns to pending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
)

// Sentinel errors for the triage flow. Handlers map these to HTTP statuses;
// storage errors propagate unwrapped.
var (
	ErrInvalidSeverity = errors.New("invalid severity")
	ErrNotFound        = errors.New("submission not found")
	ErrForbidden       = errors.New("access denied")
	ErrValidation      = errors.New("validation failed")
	ErrReviewed        = errors.New("submission already reviewed")
)

// ParseSeverity validates a severity string. Unknown values are rejected,
// never coerced to a default tier.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
}

// Submission maps to the submission table: one patient symptom report.
type Submission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Symptoms    string    `db:"symptoms" json:"symptoms"`
	Severity    Severity  `db:"severity" json:"severity"`
	ContactInfo string    `db:"contact_info" json:"contact_info"`
	// PriorityScore is the score computed at write time. Caregiver-facing
	// views recompute against the current clock; this column seeds the
	// by-priority index only.
	PriorityScore float64   `db:"priority_score" json:"priority_score"`
	SubmittedAt   time.Time `db:"submitted_at" json:"submitted_at"`
	Status        Status    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Review maps to the submission_review table. Appending a review is what
// transitions a submission to reviewed; later reviews still append without
// touching the status.
type Review struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SubmissionID   uuid.UUID `db:"submission_id" json:"submission_id"`
	CaregiverID    uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	Note           string    `db:"note" json:"note,omitempty"`
	Recommendation string    `db:"recommendation" json:"recommendation,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
