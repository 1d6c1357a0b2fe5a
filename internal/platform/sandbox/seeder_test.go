package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/domain/appointment"
	"github.com/lumivita/portal/internal/domain/message"
	"github.com/lumivita/portal/internal/domain/prescription"
	"github.com/lumivita/portal/internal/domain/submission"
	"github.com/lumivita/portal/internal/domain/user"
)

type capture struct {
	users         []*user.User
	submissions   []*submission.Submission
	reviews       []*submission.Review
	reviewedIDs   []uuid.UUID
	appointments  []*appointment.Appointment
	prescriptions []*prescription.Prescription
	messages      []*message.Message
}

type fakeUsers struct{ c *capture }

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.c.users = append(f.c.users, u)
	return nil
}
func (f *fakeUsers) GetByID(context.Context, uuid.UUID) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUsers) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUsers) Update(context.Context, *user.User) error                    { return nil }
func (f *fakeUsers) Delete(context.Context, uuid.UUID) error                     { return nil }
func (f *fakeUsers) ListByRole(context.Context, string) ([]*user.User, error)    { return nil, nil }
func (f *fakeUsers) ListAll(context.Context) ([]*user.User, error)               { return nil, nil }
func (f *fakeUsers) AssignPatient(context.Context, uuid.UUID, uuid.UUID) error   { return nil }
func (f *fakeUsers) UnassignPatient(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeUsers) ListAssignedPatients(context.Context, uuid.UUID) ([]*user.User, error) {
	return nil, nil
}
func (f *fakeUsers) GetPatientProfile(context.Context, uuid.UUID) (*user.PatientProfile, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUsers) UpsertPatientProfile(context.Context, *user.PatientProfile) error { return nil }
func (f *fakeUsers) GetCaregiverProfile(context.Context, uuid.UUID) (*user.CaregiverProfile, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUsers) UpsertCaregiverProfile(context.Context, *user.CaregiverProfile) error { return nil }

type fakeSubmissions struct{ c *capture }

func (f *fakeSubmissions) Create(_ context.Context, s *submission.Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.c.submissions = append(f.c.submissions, s)
	return nil
}
func (f *fakeSubmissions) GetByID(context.Context, uuid.UUID) (*submission.Submission, error) {
	return nil, submission.ErrNotFound
}
func (f *fakeSubmissions) Update(context.Context, *submission.Submission) error { return nil }
func (f *fakeSubmissions) Delete(context.Context, uuid.UUID) error              { return nil }
func (f *fakeSubmissions) ListByStatus(context.Context, submission.Status) ([]*submission.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissions) ListByPatient(context.Context, uuid.UUID) ([]*submission.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissions) ListAll(context.Context) ([]*submission.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissions) LatestPerPatient(context.Context) (map[uuid.UUID]*submission.Submission, error) {
	return nil, nil
}
func (f *fakeSubmissions) MarkReviewed(_ context.Context, id uuid.UUID) error {
	f.c.reviewedIDs = append(f.c.reviewedIDs, id)
	return nil
}
func (f *fakeSubmissions) AddReview(_ context.Context, rv *submission.Review) error {
	f.c.reviews = append(f.c.reviews, rv)
	return nil
}
func (f *fakeSubmissions) ListReviews(context.Context, uuid.UUID) ([]*submission.Review, error) {
	return nil, nil
}
func (f *fakeSubmissions) CountByStatus(context.Context, submission.Status) (int, error) {
	return 0, nil
}
func (f *fakeSubmissions) CountPendingBySeverity(context.Context, submission.Severity) (int, error) {
	return 0, nil
}

type fakeAppointments struct{ c *capture }

func (f *fakeAppointments) Create(_ context.Context, a *appointment.Appointment) error {
	f.c.appointments = append(f.c.appointments, a)
	return nil
}
func (f *fakeAppointments) GetByID(context.Context, uuid.UUID) (*appointment.Appointment, error) {
	return nil, appointment.ErrNotFound
}
func (f *fakeAppointments) Update(context.Context, *appointment.Appointment) error { return nil }
func (f *fakeAppointments) Delete(context.Context, uuid.UUID) error                { return nil }
func (f *fakeAppointments) ListByPatient(context.Context, uuid.UUID) ([]*appointment.Appointment, error) {
	return nil, nil
}
func (f *fakeAppointments) ListByCaregiver(context.Context, uuid.UUID) ([]*appointment.Appointment, error) {
	return nil, nil
}
func (f *fakeAppointments) ListUpcoming(context.Context, time.Time) ([]*appointment.Appointment, error) {
	return nil, nil
}
func (f *fakeAppointments) PatientIDsWithUpcoming(context.Context, time.Time) (map[uuid.UUID]bool, error) {
	return nil, nil
}

type fakePrescriptions struct{ c *capture }

func (f *fakePrescriptions) Create(_ context.Context, p *prescription.Prescription) error {
	f.c.prescriptions = append(f.c.prescriptions, p)
	return nil
}
func (f *fakePrescriptions) GetByID(context.Context, uuid.UUID) (*prescription.Prescription, error) {
	return nil, prescription.ErrNotFound
}
func (f *fakePrescriptions) Update(context.Context, *prescription.Prescription) error { return nil }
func (f *fakePrescriptions) Delete(context.Context, uuid.UUID) error                  { return nil }
func (f *fakePrescriptions) ListByPatient(context.Context, uuid.UUID) ([]*prescription.Prescription, error) {
	return nil, nil
}
func (f *fakePrescriptions) ListByCaregiver(context.Context, uuid.UUID) ([]*prescription.Prescription, error) {
	return nil, nil
}

type fakeMessages struct{ c *capture }

func (f *fakeMessages) Create(_ context.Context, m *message.Message) error {
	f.c.messages = append(f.c.messages, m)
	return nil
}
func (f *fakeMessages) GetByID(context.Context, uuid.UUID) (*message.Message, error) {
	return nil, message.ErrNotFound
}
func (f *fakeMessages) ListConversation(context.Context, uuid.UUID, uuid.UUID) ([]*message.Message, error) {
	return nil, nil
}
func (f *fakeMessages) ListThreads(context.Context, uuid.UUID) ([]*message.Thread, error) {
	return nil, nil
}
func (f *fakeMessages) MarkRead(context.Context, uuid.UUID, uuid.UUID) (int, error) { return 0, nil }
func (f *fakeMessages) UnreadCount(context.Context, uuid.UUID) (int, error)         { return 0, nil }

func newSeederFixture() (*Seeder, *capture) {
	c := &capture{}
	s := NewSeeder(&fakeUsers{c}, &fakeSubmissions{c}, &fakeAppointments{c},
		&fakePrescriptions{c}, &fakeMessages{c})
	return s, c
}

func TestSeedCounts(t *testing.T) {
	s, c := newSeederFixture()
	cfg := DefaultSeedConfig()

	res, err := s.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Patients != cfg.Patients || res.Caregivers != cfg.Caregivers {
		t.Errorf("result = %+v", res)
	}
	if res.Submissions != cfg.Patients*cfg.SubmissionsPerPatient {
		t.Errorf("submissions = %d", res.Submissions)
	}
	// admin + caregivers + patients
	if len(c.users) != 1+cfg.Caregivers+cfg.Patients {
		t.Errorf("users created = %d", len(c.users))
	}
	if len(c.messages) != 3 {
		t.Errorf("messages = %d", len(c.messages))
	}
}

func TestSeedScoresMatchStoredFields(t *testing.T) {
	s, c := newSeederFixture()
	if _, err := s.Run(context.Background(), DefaultSeedConfig()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, sub := range c.submissions {
		if _, err := submission.ParseSeverity(string(sub.Severity)); err != nil {
			t.Fatalf("seeded submission has invalid severity %q", sub.Severity)
		}
		// mild scores at least 2.0; severe with the capped wait boost tops out at 11.0
		if sub.PriorityScore < 2.0 || sub.PriorityScore > 11.0 {
			t.Errorf("score %v out of range", sub.PriorityScore)
		}
		if sub.SubmittedAt.After(time.Now()) {
			t.Errorf("submission dated in the future: %s", sub.SubmittedAt)
		}
	}
}

func TestSeedReproducible(t *testing.T) {
	s1, c1 := newSeederFixture()
	s2, c2 := newSeederFixture()
	cfg := DefaultSeedConfig()

	if _, err := s1.Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := s2.Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(c1.submissions) != len(c2.submissions) {
		t.Fatalf("submission counts differ")
	}
	for i := range c1.submissions {
		if c1.submissions[i].Severity != c2.submissions[i].Severity ||
			c1.submissions[i].Symptoms != c2.submissions[i].Symptoms {
			t.Errorf("seed not reproducible at index %d", i)
		}
	}
}

func TestSeedReviewsOnlyFlipSeededSubmissions(t *testing.T) {
	s, c := newSeederFixture()
	if _, err := s.Run(context.Background(), DefaultSeedConfig()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ids := map[uuid.UUID]bool{}
	for _, sub := range c.submissions {
		ids[sub.ID] = true
	}
	if len(c.reviews) != len(c.reviewedIDs) {
		t.Errorf("reviews %d != status flips %d", len(c.reviews), len(c.reviewedIDs))
	}
	for _, id := range c.reviewedIDs {
		if !ids[id] {
			t.Errorf("reviewed unknown submission %s", id)
		}
	}
}
