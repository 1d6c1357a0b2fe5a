// Package sandbox seeds reproducible demo data for local development: a few
// accounts, a triage queue with a spread of severities and wait times, plus
// appointments, prescriptions, and a message thread.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lumivita/portal/internal/domain/appointment"
	"github.com/lumivita/portal/internal/domain/message"
	"github.com/lumivita/portal/internal/domain/prescription"
	"github.com/lumivita/portal/internal/domain/submission"
	"github.com/lumivita/portal/internal/domain/user"
)

// SeedConfig controls volume. The same Seed always produces the same data.
type SeedConfig struct {
	Patients              int   `json:"patients"`
	Caregivers            int   `json:"caregivers"`
	SubmissionsPerPatient int   `json:"submissions_per_patient"`
	Seed                  int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Patients:              8,
		Caregivers:            2,
		SubmissionsPerPatient: 2,
		Seed:                  1,
	}
}

// Seeder writes demo rows through the domain repositories.
type Seeder struct {
	users         user.Repository
	submissions   submission.Repository
	appointments  appointment.Repository
	prescriptions prescription.Repository
	messages      message.Repository
}

func NewSeeder(
	users user.Repository,
	submissions submission.Repository,
	appointments appointment.Repository,
	prescriptions prescription.Repository,
	messages message.Repository,
) *Seeder {
	return &Seeder{
		users:         users,
		submissions:   submissions,
		appointments:  appointments,
		prescriptions: prescriptions,
		messages:      messages,
	}
}

var firstNames = []string{
	"Ana", "Bo", "Carmen", "Diego", "Elena", "Farid", "Grace", "Hiro",
	"Ines", "Jonas", "Kira", "Luis", "Mara", "Noah", "Olga", "Priya",
}

var lastNames = []string{
	"Silva", "Chen", "Okafor", "Novak", "Reyes", "Haddad", "Kim", "Moreau",
	"Petrov", "Santos", "Weber", "Yilmaz",
}

var symptomPool = []string{
	"persistent dry cough and mild fever",
	"sharp lower back pain after lifting",
	"recurring headaches in the morning",
	"shortness of breath when climbing stairs",
	"rash on both forearms, itchy at night",
	"dizziness when standing up quickly",
	"stomach cramps after meals",
	"swollen ankle, painful to walk on",
}

var medicationPool = []struct {
	name, dosage, frequency string
}{
	{"amoxicillin", "500mg", "3x daily"},
	{"ibuprofen", "400mg", "as needed"},
	{"loratadine", "10mg", "1x daily"},
	{"omeprazole", "20mg", "before breakfast"},
}

var severities = []submission.Severity{
	submission.SeverityMild, submission.SeverityModerate, submission.SeveritySevere,
}

// Result reports what a seed run created.
type Result struct {
	Patients      int `json:"patients"`
	Caregivers    int `json:"caregivers"`
	Submissions   int `json:"submissions"`
	Appointments  int `json:"appointments"`
	Prescriptions int `json:"prescriptions"`
	Messages      int `json:"messages"`
}

// Run seeds the database. It is not idempotent; run it against empty
// databases only.
func (s *Seeder) Run(ctx context.Context, cfg SeedConfig) (*Result, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	now := time.Now().UTC()
	res := &Result{}

	admin := &user.User{Email: "admin@lumivita.test", Name: "Portal Admin", Role: user.RoleAdmin}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	caregivers := make([]*user.User, 0, cfg.Caregivers)
	for i := 0; i < cfg.Caregivers; i++ {
		cg := &user.User{
			Email: fmt.Sprintf("caregiver%d@lumivita.test", i+1),
			Name:  pick(rng, firstNames) + " " + pick(rng, lastNames),
			Role:  user.RoleCaregiver,
		}
		if err := s.users.Create(ctx, cg); err != nil {
			return nil, fmt.Errorf("seed caregiver: %w", err)
		}
		if err := s.users.UpsertCaregiverProfile(ctx, &user.CaregiverProfile{
			UserID: cg.ID, Specialty: "general practice", Organization: "LumiViTA Clinic",
		}); err != nil {
			return nil, err
		}
		caregivers = append(caregivers, cg)
		res.Caregivers++
	}

	patients := make([]*user.User, 0, cfg.Patients)
	for i := 0; i < cfg.Patients; i++ {
		p := &user.User{
			Email: fmt.Sprintf("patient%d@lumivita.test", i+1),
			Name:  pick(rng, firstNames) + " " + pick(rng, lastNames),
			Role:  user.RolePatient,
		}
		if err := s.users.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		dob := now.AddDate(-20-rng.Intn(60), 0, -rng.Intn(365))
		if err := s.users.UpsertPatientProfile(ctx, &user.PatientProfile{
			UserID: p.ID, DateOfBirth: &dob, Conditions: []string{},
		}); err != nil {
			return nil, err
		}
		cg := caregivers[rng.Intn(len(caregivers))]
		if err := s.users.AssignPatient(ctx, cg.ID, p.ID); err != nil {
			return nil, err
		}
		patients = append(patients, p)
		res.Patients++
	}

	for _, p := range patients {
		for j := 0; j < cfg.SubmissionsPerPatient; j++ {
			severity := severities[rng.Intn(len(severities))]
			submittedAt := now.Add(-time.Duration(rng.Intn(7*24)) * time.Hour)
			score, err := submission.Score(severity, submittedAt, now)
			if err != nil {
				return nil, err
			}
			sub := &submission.Submission{
				PatientID:     p.ID,
				Symptoms:      pick(rng, symptomPool),
				Severity:      severity,
				ContactInfo:   fmt.Sprintf("+1-555-%04d", rng.Intn(10000)),
				PriorityScore: score,
				SubmittedAt:   submittedAt,
				Status:        submission.StatusPending,
			}
			if err := s.submissions.Create(ctx, sub); err != nil {
				return nil, fmt.Errorf("seed submission: %w", err)
			}
			res.Submissions++

			// Review roughly a third so both queues have content.
			if rng.Intn(3) == 0 {
				cg := caregivers[rng.Intn(len(caregivers))]
				if err := s.submissions.AddReview(ctx, &submission.Review{
					SubmissionID: sub.ID,
					CaregiverID:  cg.ID,
					Note:         "Reviewed during seed run.",
				}); err != nil {
					return nil, err
				}
				if err := s.submissions.MarkReviewed(ctx, sub.ID); err != nil {
					return nil, err
				}
			}
		}
	}

	for i, p := range patients {
		if i%2 != 0 {
			continue
		}
		cg := caregivers[rng.Intn(len(caregivers))]
		if err := s.appointments.Create(ctx, &appointment.Appointment{
			PatientID:   p.ID,
			CaregiverID: cg.ID,
			ScheduledAt: now.Add(time.Duration(24+rng.Intn(14*24)) * time.Hour),
			DurationMin: 30,
			Reason:      "follow-up consultation",
			Status:      appointment.StatusScheduled,
		}); err != nil {
			return nil, fmt.Errorf("seed appointment: %w", err)
		}
		res.Appointments++

		med := medicationPool[rng.Intn(len(medicationPool))]
		if err := s.prescriptions.Create(ctx, &prescription.Prescription{
			PatientID:   p.ID,
			CaregiverID: cg.ID,
			Medication:  med.name,
			Dosage:      med.dosage,
			Frequency:   med.frequency,
			Refills:     1 + rng.Intn(3),
			Status:      prescription.StatusActive,
		}); err != nil {
			return nil, fmt.Errorf("seed prescription: %w", err)
		}
		res.Prescriptions++
	}

	if len(patients) > 0 && len(caregivers) > 0 {
		pt, cg := patients[0], caregivers[0]
		thread := []struct {
			from, to uuid.UUID
			body     string
		}{
			{pt.ID, cg.ID, "Hello, I submitted a new symptom report this morning."},
			{cg.ID, pt.ID, "Thanks, I can see it in the queue. I will review it today."},
			{pt.ID, cg.ID, "Great, thank you!"},
		}
		for _, m := range thread {
			if err := s.messages.Create(ctx, &message.Message{
				SenderID: m.from, RecipientID: m.to, Body: m.body,
			}); err != nil {
				return nil, fmt.Errorf("seed message: %w", err)
			}
			res.Messages++
		}
	}

	log.Info().
		Int("patients", res.Patients).
		Int("caregivers", res.Caregivers).
		Int("submissions", res.Submissions).
		Msg("sandbox seed complete")
	return res, nil
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}
