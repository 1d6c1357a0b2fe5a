package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/platform/auth"
)

// PatientInfo is the slice of the user record triage views need.
type PatientInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// PatientDirectory resolves patient identity for triage views. The user
// domain provides the implementation; an adapter is wired in at startup.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
	ListPatients(ctx context.Context) ([]*PatientInfo, error)
}

// AppointmentSource reports which patients have an upcoming appointment.
type AppointmentSource interface {
	PatientIDsWithAppointments(ctx context.Context) (map[uuid.UUID]bool, error)
}

// Hooks receive submission lifecycle events. Delivery is best effort; a
// failing hook never fails the write that triggered it.
type Hooks interface {
	SubmissionCreated(ctx context.Context, s *Submission)
	SubmissionReviewed(ctx context.Context, s *Submission, rv *Review)
}

// TxRunner executes fn inside a transaction carried on the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service implements the triage flow: patients create and manage their own
// submissions, caregivers read prioritized views across all of them.
type Service struct {
	repo         Repository
	patients     PatientDirectory
	appointments AppointmentSource
	hooks        Hooks
	runTx        TxRunner
	now          func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, appointments AppointmentSource) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		appointments: appointments,
		runTx:        func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) },
		now:          time.Now,
	}
}

// SetHooks attaches optional lifecycle hooks (websocket fanout, notifications).
func (s *Service) SetHooks(h Hooks) { s.hooks = h }

// SetTxRunner attaches a transaction runner so review writes are atomic.
func (s *Service) SetTxRunner(run TxRunner) { s.runTx = run }

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func actorID(a auth.Actor) (uuid.UUID, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	return id, nil
}

// CreateRequest carries the patient-supplied fields of a new submission.
type CreateRequest struct {
	Symptoms    string `json:"symptoms"`
	Severity    string `json:"severity"`
	ContactInfo string `json:"contact_info"`
}

func (r CreateRequest) validate() (Severity, error) {
	if strings.TrimSpace(r.Symptoms) == "" {
		return "", fmt.Errorf("%w: symptoms are required", ErrValidation)
	}
	if strings.TrimSpace(r.ContactInfo) == "" {
		return "", fmt.Errorf("%w: contact info is required", ErrValidation)
	}
	return ParseSeverity(r.Severity)
}

// Create records a new symptom submission for the acting patient. The stored
// score is computed once at submit time and only ever reused as an index seed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Submission, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role != auth.RolePatient {
		return nil, fmt.Errorf("%w: only patients submit symptom reports", ErrForbidden)
	}
	patientID, err := actorID(actor)
	if err != nil {
		return nil, err
	}

	severity, err := req.validate()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	score, err := Score(severity, now, now)
	if err != nil {
		return nil, err
	}

	sub := &Submission{
		PatientID:     patientID,
		Symptoms:      strings.TrimSpace(req.Symptoms),
		Severity:      severity,
		ContactInfo:   strings.TrimSpace(req.ContactInfo),
		PriorityScore: score,
		SubmittedAt:   now,
		Status:        StatusPending,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	if s.hooks != nil {
		s.hooks.SubmissionCreated(ctx, sub)
	}
	return sub, nil
}

// Get returns a single submission. Patients only see their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) authorizeRead(ctx context.Context, sub *Submission) error {
	actor := auth.ActorFromContext(ctx)
	if actor.Role != auth.RolePatient {
		return nil
	}
	id, err := actorID(actor)
	if err != nil {
		return err
	}
	if id != sub.PatientID {
		return ErrForbidden
	}
	return nil
}

// ListMine returns the acting patient's submissions, newest first.
func (s *Service) ListMine(ctx context.Context) ([]*Submission, error) {
	patientID, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// ListForPatient returns one patient's submissions for a caregiver, or for
// the patient themselves, newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Submission, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient {
		id, err := actorID(actor)
		if err != nil {
			return nil, err
		}
		if id != patientID {
			return nil, ErrForbidden
		}
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// ListPending returns pending submissions most urgent first, scored against
// the current clock.
func (s *Service) ListPending(ctx context.Context) ([]TriageItem, error) {
	subs, err := s.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	items, err := s.join(ctx, subs)
	if err != nil {
		return nil, err
	}
	return Rank(items, s.now(), RankOptions{SortBy: SortByPriority})
}

// ListReviewed returns reviewed submissions newest first.
func (s *Service) ListReviewed(ctx context.Context) ([]TriageItem, error) {
	subs, err := s.repo.ListByStatus(ctx, StatusReviewed)
	if err != nil {
		return nil, err
	}
	items, err := s.join(ctx, subs)
	if err != nil {
		return nil, err
	}
	return Rank(items, s.now(), RankOptions{SortBy: SortByRecent})
}

// ListQueue returns the full triage queue with caller-selected ordering and
// filters.
func (s *Service) ListQueue(ctx context.Context, opts RankOptions) ([]TriageItem, error) {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.join(ctx, subs)
	if err != nil {
		return nil, err
	}
	return Rank(items, s.now(), opts)
}

// join attaches patient identity and appointment presence to submissions.
// A submission whose patient record is missing still surfaces, unnamed.
func (s *Service) join(ctx context.Context, subs []*Submission) ([]TriageItem, error) {
	if len(subs) == 0 {
		return nil, nil
	}
	withAppt, err := s.appointments.PatientIDsWithAppointments(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]TriageItem, 0, len(subs))
	cache := map[uuid.UUID]*PatientInfo{}
	for _, sub := range subs {
		info, ok := cache[sub.PatientID]
		if !ok {
			info, err = s.patients.GetPatient(ctx, sub.PatientID)
			if err != nil {
				info = nil
			}
			cache[sub.PatientID] = info
		}
		it := TriageItem{Submission: sub, HasAppointment: withAppt[sub.PatientID]}
		if info != nil {
			it.PatientName = info.Name
			it.PatientEmail = info.Email
		}
		items = append(items, it)
	}
	return items, nil
}

// RosterEntry pairs a patient with their most recent submission, if any.
type RosterEntry struct {
	Patient PatientInfo `json:"patient"`
	Latest  *TriageItem `json:"latest,omitempty"`
}

// RosterQuery configures ListRoster. Search matches name or email substrings
// case-insensitively.
type RosterQuery struct {
	Search string
	SortBy SortBy
	Status StatusFilter
}

// ListRoster returns every patient with their latest submission, searchable
// and sortable the same way the queue is. Patients with no submission sort
// last under priority and recency, and are dropped by a status filter.
func (s *Service) ListRoster(ctx context.Context, q RosterQuery) ([]RosterEntry, error) {
	opts := RankOptions{SortBy: q.SortBy, Status: q.Status}
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	patients, err := s.patients.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestPerPatient(ctx)
	if err != nil {
		return nil, err
	}
	withAppt, err := s.appointments.PatientIDsWithAppointments(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var entries []RosterEntry
	var bare []RosterEntry
	var items []TriageItem
	byID := map[uuid.UUID]*PatientInfo{}

	for _, p := range patients {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Email), search) {
			continue
		}
		sub, ok := latest[p.ID]
		if !ok {
			if opts.Status == StatusFilterAll {
				bare = append(bare, RosterEntry{Patient: *p})
			}
			continue
		}
		byID[p.ID] = p
		items = append(items, TriageItem{
			Submission:     sub,
			PatientName:    p.Name,
			PatientEmail:   p.Email,
			HasAppointment: withAppt[p.ID],
		})
	}

	ranked, err := Rank(items, now, opts)
	if err != nil {
		return nil, err
	}
	for _, it := range ranked {
		it := it
		entries = append(entries, RosterEntry{Patient: *byID[it.Submission.PatientID], Latest: &it})
	}

	if opts.SortBy == SortByName {
		// Unnamed-entry ordering comes from the directory; merge by name.
		return mergeRosterByName(entries, bare), nil
	}
	return append(entries, bare...), nil
}

func mergeRosterByName(ranked, bare []RosterEntry) []RosterEntry {
	out := append(ranked, bare...)
	lower := func(e RosterEntry) string { return strings.ToLower(strings.TrimSpace(e.Patient.Name)) }
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := lower(out[j-1]), lower(out[j])
			if a == "" && b != "" || (a != "" && b != "" && b < a) {
				out[j-1], out[j] = out[j], out[j-1]
			} else {
				break
			}
		}
	}
	return out
}

// EditRequest carries the patient-editable fields. Nil fields are left as is.
type EditRequest struct {
	Symptoms    *string `json:"symptoms"`
	Severity    *string `json:"severity"`
	ContactInfo *string `json:"contact_info"`
}

// Edit updates a pending submission. Only the submitting patient may edit,
// and only while the submission is pending. A severity change recomputes the
// stored score against the original submission time, so editing never resets
// a submission's place in the wait queue.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, req EditRequest) (*Submission, error) {
	actor := auth.ActorFromContext(ctx)
	callerID, err := actorID(actor)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RolePatient || callerID != sub.PatientID {
		return nil, ErrForbidden
	}
	if sub.Status != StatusPending {
		return nil, ErrReviewed
	}

	if req.Symptoms != nil {
		if strings.TrimSpace(*req.Symptoms) == "" {
			return nil, fmt.Errorf("%w: symptoms are required", ErrValidation)
		}
		sub.Symptoms = strings.TrimSpace(*req.Symptoms)
	}
	if req.ContactInfo != nil {
		if strings.TrimSpace(*req.ContactInfo) == "" {
			return nil, fmt.Errorf("%w: contact info is required", ErrValidation)
		}
		sub.ContactInfo = strings.TrimSpace(*req.ContactInfo)
	}
	if req.Severity != nil {
		severity, err := ParseSeverity(*req.Severity)
		if err != nil {
			return nil, err
		}
		sub.Severity = severity
	}

	score, err := Score(sub.Severity, sub.SubmittedAt, s.now())
	if err != nil {
		return nil, err
	}
	sub.PriorityScore = score

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ReviewRequest carries the caregiver's review content.
type ReviewRequest struct {
	Note           string `json:"note"`
	Recommendation string `json:"recommendation"`
}

// RecordReview appends a caregiver review and marks the submission reviewed.
// Reviewing an already-reviewed submission appends the note without touching
// the status. The review row and the status flip commit together.
func (s *Service) RecordReview(ctx context.Context, id uuid.UUID, req ReviewRequest) (*Review, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RolePatient {
		return nil, fmt.Errorf("%w: patients cannot review submissions", ErrForbidden)
	}
	caregiverID, err := actorID(actor)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Note) == "" && strings.TrimSpace(req.Recommendation) == "" {
		return nil, fmt.Errorf("%w: a review needs a note or a recommendation", ErrValidation)
	}

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rv := &Review{
		SubmissionID:   sub.ID,
		CaregiverID:    caregiverID,
		Note:           strings.TrimSpace(req.Note),
		Recommendation: strings.TrimSpace(req.Recommendation),
	}
	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.AddReview(ctx, rv); err != nil {
			return err
		}
		return s.repo.MarkReviewed(ctx, sub.ID)
	})
	if err != nil {
		return nil, err
	}

	sub.Status = StatusReviewed
	if s.hooks != nil {
		s.hooks.SubmissionReviewed(ctx, sub, rv)
	}
	return rv, nil
}

// ListReviews returns a submission's reviews, oldest first. Patients only
// see reviews on their own submissions.
func (s *Service) ListReviews(ctx context.Context, id uuid.UUID) ([]*Review, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, sub); err != nil {
		return nil, err
	}
	return s.repo.ListReviews(ctx, sub.ID)
}

// Delete removes a submission. Patients may delete their own; admins may
// delete any.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor := auth.ActorFromContext(ctx)
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleAdmin {
		callerID, err := actorID(actor)
		if err != nil {
			return err
		}
		if actor.Role != auth.RolePatient || callerID != sub.PatientID {
			return ErrForbidden
		}
	}
	return s.repo.Delete(ctx, id)
}

// QueueStats summarizes the triage workload for the caregiver dashboard.
type QueueStats struct {
	Pending             int     `json:"pending"`
	Reviewed            int     `json:"reviewed"`
	SeverePending       int     `json:"severe_pending"`
	AvgPendingWaitHours float64 `json:"avg_pending_wait_hours"`
}

// Stats computes queue counts and the average pending wait in hours.
func (s *Service) Stats(ctx context.Context) (*QueueStats, error) {
	pending, err := s.repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	reviewed, err := s.repo.CountByStatus(ctx, StatusReviewed)
	if err != nil {
		return nil, err
	}
	severe, err := s.repo.CountPendingBySeverity(ctx, SeveritySevere)
	if err != nil {
		return nil, err
	}

	st := &QueueStats{Pending: len(pending), Reviewed: reviewed, SeverePending: severe}
	if len(pending) > 0 {
		now := s.now()
		var total float64
		for _, sub := range pending {
			h := now.Sub(sub.SubmittedAt).Hours()
			if h > 0 {
				total += h
			}
		}
		st.AvgPendingWaitHours = total / float64(len(pending))
	}
	return st, nil
}
