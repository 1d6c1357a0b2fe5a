package prescription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound   = errors.New("prescription not found")
	ErrForbidden  = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
	ErrNoRefills  = errors.New("no refills remaining")
)

var validStatuses = map[Status]bool{
	StatusActive: true, StatusCompleted: true, StatusCancelled: true,
}

type Prescription struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	CaregiverID  uuid.UUID `db:"caregiver_id" json:"caregiver_id"`
	Medication   string    `db:"medication" json:"medication"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	Instructions string    `db:"instructions" json:"instructions,omitempty"`
	Refills      int       `db:"refills" json:"refills"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
