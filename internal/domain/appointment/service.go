package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/platform/auth"
)

// Notifier is told when an appointment lands on a patient's calendar.
// Delivery is best effort.
type Notifier interface {
	AppointmentScheduled(ctx context.Context, a *Appointment)
}

type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) SetNotifier(n Notifier)        { s.notifier = n }
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func actorID(a auth.Actor) (uuid.UUID, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	return id, nil
}

type CreateRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DurationMin int       `json:"duration_min"`
	Reason      string    `json:"reason"`
	Notes       string    `json:"notes"`
}

// Create schedules an appointment. Caregivers schedule; the acting caregiver
// becomes the appointment owner.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	caregiverID, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if req.ScheduledAt.Before(s.now()) {
		return nil, fmt.Errorf("%w: scheduled_at must be in the future", ErrValidation)
	}
	if req.DurationMin <= 0 {
		req.DurationMin = 30
	}

	a := &Appointment{
		PatientID:   req.PatientID,
		CaregiverID: caregiverID,
		ScheduledAt: req.ScheduledAt.UTC(),
		DurationMin: req.DurationMin,
		Reason:      strings.TrimSpace(req.Reason),
		Notes:       strings.TrimSpace(req.Notes),
		Status:      StatusScheduled,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.AppointmentScheduled(ctx, a)
	}
	return a, nil
}

// Get returns one appointment. Patients and caregivers only see their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) authorize(ctx context.Context, a *Appointment) error {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RoleAdmin {
		return nil
	}
	id, err := actorID(actor)
	if err != nil {
		return err
	}
	switch actor.Role {
	case auth.RolePatient:
		if id != a.PatientID {
			return ErrForbidden
		}
	case auth.RoleCaregiver:
		if id != a.CaregiverID {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}
	return nil
}

// When narrows a list to one side of the clock.
type When string

const (
	WhenAll      When = "all"
	WhenUpcoming When = "upcoming"
	WhenPast     When = "past"
)

// ListFilter narrows appointment lists by time. From and To bound
// scheduled_at inclusively when set.
type ListFilter struct {
	When When
	From *time.Time
	To   *time.Time
}

func (f *ListFilter) normalize() error {
	if f.When == "" {
		f.When = WhenAll
	}
	switch f.When {
	case WhenAll, WhenUpcoming, WhenPast:
	default:
		return fmt.Errorf("%w: unknown when filter %q", ErrValidation, f.When)
	}
	return nil
}

func (s *Service) applyFilter(list []*Appointment, f ListFilter) []*Appointment {
	now := s.now()
	out := make([]*Appointment, 0, len(list))
	for _, a := range list {
		switch f.When {
		case WhenUpcoming:
			if a.ScheduledAt.Before(now) {
				continue
			}
		case WhenPast:
			if !a.ScheduledAt.Before(now) {
				continue
			}
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && a.ScheduledAt.After(*f.To) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ListMine returns the acting user's appointments, newest first.
func (s *Service) ListMine(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)
	id, err := actorID(actor)
	if err != nil {
		return nil, err
	}
	var list []*Appointment
	if actor.Role == auth.RolePatient {
		list, err = s.repo.ListByPatient(ctx, id)
	} else {
		list, err = s.repo.ListByCaregiver(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return s.applyFilter(list, f), nil
}

// ListForPatient returns a patient's appointments for caregivers, or for the
// patient themselves.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, f ListFilter) ([]*Appointment, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient && !actor.IsSelf(patientID.String()) {
		return nil, ErrForbidden
	}
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.applyFilter(list, f), nil
}

// ListUpcoming returns scheduled appointments from now on.
func (s *Service) ListUpcoming(ctx context.Context) ([]*Appointment, error) {
	return s.repo.ListUpcoming(ctx, s.now())
}

type UpdateRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	DurationMin *int       `json:"duration_min"`
	Reason      *string    `json:"reason"`
	Notes       *string    `json:"notes"`
	Status      *string    `json:"status"`
}

// Update reschedules or re-statuses an appointment. Only the owning
// caregiver (or an admin) may change it; patients may only cancel their own.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient {
		onlyCancel := req.Status != nil && Status(*req.Status) == StatusCancelled &&
			req.ScheduledAt == nil && req.DurationMin == nil && req.Reason == nil && req.Notes == nil
		if !actor.IsSelf(a.PatientID.String()) || !onlyCancel {
			return nil, fmt.Errorf("%w: patients may only cancel their own appointments", ErrForbidden)
		}
	} else if err := s.authorize(ctx, a); err != nil {
		return nil, err
	}

	if req.ScheduledAt != nil {
		if req.ScheduledAt.Before(s.now()) {
			return nil, fmt.Errorf("%w: scheduled_at must be in the future", ErrValidation)
		}
		a.ScheduledAt = req.ScheduledAt.UTC()
	}
	if req.DurationMin != nil {
		if *req.DurationMin <= 0 {
			return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
		}
		a.DurationMin = *req.DurationMin
	}
	if req.Reason != nil {
		if strings.TrimSpace(*req.Reason) == "" {
			return nil, fmt.Errorf("%w: reason is required", ErrValidation)
		}
		a.Reason = strings.TrimSpace(*req.Reason)
	}
	if req.Notes != nil {
		a.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Status != nil {
		st := Status(*req.Status)
		if !validStatuses[st] {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, st)
		}
		a.Status = st
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an appointment. Owning caregiver or admin only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient {
		return ErrForbidden
	}
	if err := s.authorize(ctx, a); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// PatientIDsWithAppointments reports patients with an upcoming scheduled
// appointment. The triage queue's appointment filter reads this.
func (s *Service) PatientIDsWithAppointments(ctx context.Context) (map[uuid.UUID]bool, error) {
	return s.repo.PatientIDsWithUpcoming(ctx, s.now())
}
