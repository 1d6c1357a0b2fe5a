package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func actorID(a auth.Actor) (uuid.UUID, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	return id, nil
}

// RegisterRequest creates an account on first sign-in. Admin accounts are
// seeded, never self-registered.
type RegisterRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	role := req.Role
	if role == "" {
		role = RolePatient
	}
	if role != RolePatient && role != RoleCaregiver {
		return nil, fmt.Errorf("%w: role must be patient or caregiver", ErrValidation)
	}

	u := &User{Email: email, Name: strings.TrimSpace(req.Name), Role: role}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id", ErrValidation)
		}
		u.ID = id
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Me returns the acting user's account record.
func (s *Service) Me(ctx context.Context) (*User, error) {
	id, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Get returns a user record. Patients only see themselves.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && !actor.IsSelf(id.String()) {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

// List returns users filtered by role. Caregivers may only list patients;
// admins may list anyone.
func (s *Service) List(ctx context.Context, role string) ([]*User, error) {
	actor := auth.ActorFromContext(ctx)
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleCaregiver:
		if role != RolePatient {
			return nil, fmt.Errorf("%w: caregivers may only list patients", ErrForbidden)
		}
	default:
		return nil, ErrForbidden
	}
	if role == "" {
		return s.repo.ListAll(ctx)
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	return s.repo.ListByRole(ctx, role)
}

// SetRole changes a user's role. Admin only; enforced at the route.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role string) (*User, error) {
	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateMe lets a user change their own name and email.
type UpdateMeRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Service) UpdateMe(ctx context.Context, req UpdateMeRequest) (*User, error) {
	u, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", ErrValidation)
		}
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
		}
		u.Email = email
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes an account. Admin only; enforced at the route.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// PatientProfile returns a patient's intake profile. Patients see their own;
// caregivers and admins see any.
func (s *Service) PatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && !actor.IsSelf(userID.String()) {
		return nil, ErrForbidden
	}
	return s.repo.GetPatientProfile(ctx, userID)
}

// SavePatientProfile upserts the acting patient's own profile.
func (s *Service) SavePatientProfile(ctx context.Context, p PatientProfile) (*PatientProfile, error) {
	actor := auth.ActorFromContext(ctx)
	id, err := actorID(actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RolePatient {
		return nil, fmt.Errorf("%w: only patients have intake profiles", ErrForbidden)
	}
	p.UserID = id
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	if err := s.repo.UpsertPatientProfile(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CaregiverProfile returns a caregiver's practice profile.
func (s *Service) CaregiverProfile(ctx context.Context, userID uuid.UUID) (*CaregiverProfile, error) {
	return s.repo.GetCaregiverProfile(ctx, userID)
}

// SaveCaregiverProfile upserts the acting caregiver's own profile.
func (s *Service) SaveCaregiverProfile(ctx context.Context, p CaregiverProfile) (*CaregiverProfile, error) {
	actor := auth.ActorFromContext(ctx)
	id, err := actorID(actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleCaregiver {
		return nil, fmt.Errorf("%w: only caregivers have practice profiles", ErrForbidden)
	}
	p.UserID = id
	if err := s.repo.UpsertCaregiverProfile(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AssignPatient puts a patient on a caregiver's panel. Caregivers manage
// their own panel; admins manage anyone's.
func (s *Service) AssignPatient(ctx context.Context, caregiverID, patientID uuid.UUID) error {
	if err := s.authorizePanel(ctx, caregiverID); err != nil {
		return err
	}
	cg, err := s.repo.GetByID(ctx, caregiverID)
	if err != nil {
		return err
	}
	if cg.Role != RoleCaregiver {
		return fmt.Errorf("%w: %s is not a caregiver", ErrValidation, caregiverID)
	}
	pt, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	if pt.Role != RolePatient {
		return fmt.Errorf("%w: %s is not a patient", ErrValidation, patientID)
	}
	return s.repo.AssignPatient(ctx, caregiverID, patientID)
}

func (s *Service) UnassignPatient(ctx context.Context, caregiverID, patientID uuid.UUID) error {
	if err := s.authorizePanel(ctx, caregiverID); err != nil {
		return err
	}
	return s.repo.UnassignPatient(ctx, caregiverID, patientID)
}

// AssignedPatients lists a caregiver's panel.
func (s *Service) AssignedPatients(ctx context.Context, caregiverID uuid.UUID) ([]*User, error) {
	if err := s.authorizePanel(ctx, caregiverID); err != nil {
		return nil, err
	}
	return s.repo.ListAssignedPatients(ctx, caregiverID)
}

func (s *Service) authorizePanel(ctx context.Context, caregiverID uuid.UUID) error {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RoleAdmin {
		return nil
	}
	if actor.Role != auth.RoleCaregiver || !actor.IsSelf(caregiverID.String()) {
		return ErrForbidden
	}
	return nil
}

// RoleOf reports a user's stored role. Used by the authenticating middleware
// wiring to resolve roles for externally issued tokens.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}
