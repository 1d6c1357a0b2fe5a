package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role mirrors the auth roles; stored here so role changes survive token
// refreshes.
const (
	RolePatient   = "patient"
	RoleCaregiver = "caregiver"
	RoleAdmin     = "admin"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrForbidden  = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
	ErrEmailTaken = errors.New("email already registered")
)

type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PatientProfile extends a patient account with intake details.
type PatientProfile struct {
	UserID           uuid.UUID  `db:"user_id" json:"user_id"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Conditions       []string   `db:"conditions" json:"conditions"`
	EmergencyContact string     `db:"emergency_contact" json:"emergency_contact,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// CaregiverProfile extends a caregiver account with practice details.
type CaregiverProfile struct {
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Specialty    string    `db:"specialty" json:"specialty,omitempty"`
	Organization string    `db:"organization" json:"organization,omitempty"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func validRole(r string) bool {
	return r == RolePatient || r == RoleCaregiver || r == RoleAdmin
}
