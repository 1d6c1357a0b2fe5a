package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound   = errors.New("appointment not found")
	ErrForbidden  = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusCompleted: true, StatusCancelled: true,
}

type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	CaregiverID uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	DurationMin int       `db:"duration_min" json:"duration_min"`
	Reason      string    `db:"reason" json:"reason"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	Status      Status    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
