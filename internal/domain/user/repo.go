package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRole(ctx context.Context, role string) ([]*User, error)
	ListAll(ctx context.Context) ([]*User, error)

	// AssignPatient puts a patient on a caregiver's panel. Assigning an
	// already-assigned pair is a no-op.
	AssignPatient(ctx context.Context, caregiverID, patientID uuid.UUID) error
	UnassignPatient(ctx context.Context, caregiverID, patientID uuid.UUID) error
	ListAssignedPatients(ctx context.Context, caregiverID uuid.UUID) ([]*User, error)

	GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
	UpsertPatientProfile(ctx context.Context, p *PatientProfile) error
	GetCaregiverProfile(ctx context.Context, userID uuid.UUID) (*CaregiverProfile, error)
	UpsertCaregiverProfile(ctx context.Context, p *CaregiverProfile) error
}
