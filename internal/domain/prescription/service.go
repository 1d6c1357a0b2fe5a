package prescription

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

type CreateRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	Medication   string    `json:"medication"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"`
	Instructions string    `json:"instructions"`
	Refills      int       `json:"refills"`
}

// Create issues a prescription. The acting caregiver becomes the prescriber.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Prescription, error) {
	caregiverID, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if strings.TrimSpace(req.Medication) == "" {
		return nil, fmt.Errorf("%w: medication is required", ErrValidation)
	}
	if strings.TrimSpace(req.Dosage) == "" {
		return nil, fmt.Errorf("%w: dosage is required", ErrValidation)
	}
	if req.Refills < 0 {
		return nil, fmt.Errorf("%w: refills cannot be negative", ErrValidation)
	}

	p := &Prescription{
		PatientID:    req.PatientID,
		CaregiverID:  caregiverID,
		Medication:   strings.TrimSpace(req.Medication),
		Dosage:       strings.TrimSpace(req.Dosage),
		Frequency:    strings.TrimSpace(req.Frequency),
		Instructions: strings.TrimSpace(req.Instructions),
		Refills:      req.Refills,
		Status:       StatusActive,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one prescription. Patients see their own; caregivers see any.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && !actor.IsSelf(p.PatientID.String()) {
		return nil, ErrForbidden
	}
	return p, nil
}

// ListMine returns the acting user's prescriptions: issued for patients,
// written for caregivers.
func (s *Service) ListMine(ctx context.Context) ([]*Prescription, error) {
	actor := auth.ActorFromContext(ctx)
	id, err := actorID(actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RolePatient {
		return s.repo.ListByPatient(ctx, id)
	}
	return s.repo.ListByCaregiver(ctx, id)
}

// ListForPatient returns a patient's prescriptions.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && !actor.IsSelf(patientID.String()) {
		return nil, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, patientID)
}

type UpdateRequest struct {
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	Instructions *string `json:"instructions"`
	Refills      *int    `json:"refills"`
	Status       *string `json:"status"`
}

// Update changes an issued prescription. Prescribing caregiver or admin only.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role != auth.RoleAdmin && !actor.IsSelf(p.CaregiverID.String()) {
		return nil, ErrForbidden
	}

	if req.Dosage != nil {
		if strings.TrimSpace(*req.Dosage) == "" {
			return nil, fmt.Errorf("%w: dosage is required", ErrValidation)
		}
		p.Dosage = strings.TrimSpace(*req.Dosage)
	}
	if req.Frequency != nil {
		p.Frequency = strings.TrimSpace(*req.Frequency)
	}
	if req.Instructions != nil {
		p.Instructions = strings.TrimSpace(*req.Instructions)
	}
	if req.Refills != nil {
		if *req.Refills < 0 {
			return nil, fmt.Errorf("%w: refills cannot be negative", ErrValidation)
		}
		p.Refills = *req.Refills
	}
	if req.Status != nil {
		st := Status(*req.Status)
		if !validStatuses[st] {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, st)
		}
		p.Status = st
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Refill consumes one refill for the acting patient. The count floors at
// zero; the last refill marks the prescription completed.
func (s *Service) Refill(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && !actor.IsSelf(p.PatientID.String()) {
		return nil, ErrForbidden
	}
	if p.Status != StatusActive {
		return nil, fmt.Errorf("%w: prescription is %s", ErrValidation, p.Status)
	}
	if p.Refills <= 0 {
		return nil, ErrNoRefills
	}

	p.Refills--
	if p.Refills == 0 {
		p.Status = StatusCompleted
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a prescription. Prescribing caregiver or admin only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role != auth.RoleAdmin && !actor.IsSelf(p.CaregiverID.String()) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
