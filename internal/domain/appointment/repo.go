package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]*Appointment, error)
	ListUpcoming(ctx context.Context, after time.Time) ([]*Appointment, error)
	// PatientIDsWithUpcoming returns patients holding at least one scheduled
	// appointment after the given instant.
	PatientIDsWithUpcoming(ctx context.Context, after time.Time) (map[uuid.UUID]bool, error)
}
