package submission

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func triageItem(severity Severity, submittedAt time.Time, status Status, name string, appt bool) TriageItem {
	return TriageItem{
		Submission: &Submission{
			ID:          uuid.New(),
			PatientID:   uuid.New(),
			Symptoms:    "test",
			Severity:    severity,
			SubmittedAt: submittedAt,
			Status:      status,
		},
		PatientName:    name,
		HasAppointment: appt,
	}
}

func TestRankByPriority(t *testing.T) {
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	staleMild := triageItem(SeverityMild, now.Add(-300*time.Hour), StatusPending, "a", false)
	freshSevere := triageItem(SeveritySevere, now, StatusPending, "b", false)
	dayOldModerate := triageItem(SeverityModerate, now.Add(-24*time.Hour), StatusPending, "c", false)

	got, err := Rank([]TriageItem{staleMild, dayOldModerate, freshSevere}, now, RankOptions{})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	// capped mild = 7.0, fresh severe = 6.0, day-old moderate = 5.0
	wantOrder := []uuid.UUID{staleMild.Submission.ID, freshSevere.Submission.ID, dayOldModerate.Submission.ID}
	for i, want := range wantOrder {
		if got[i].Submission.ID != want {
			t.Errorf("position %d: got %s score %v", i, got[i].Submission.ID, got[i].Score)
		}
	}
}

func TestRankScoresAreFresh(t *testing.T) {
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	it := triageItem(SeverityMild, now.Add(-24*time.Hour), StatusPending, "a", false)
	it.Submission.PriorityScore = 99 // stored seed must be ignored

	got, err := Rank([]TriageItem{it}, now, RankOptions{})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].Score != 3.0 {
		t.Errorf("expected recomputed score 3.0, got %v", got[0].Score)
	}
}

func TestRankTieBreakDeterministic(t *testing.T) {
	now := time.Now().UTC()
	a := triageItem(SeverityModerate, now, StatusPending, "x", false)
	b := triageItem(SeverityModerate, now, StatusPending, "y", false)

	first, err := Rank([]TriageItem{a, b}, now, RankOptions{})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	second, err := Rank([]TriageItem{b, a}, now, RankOptions{})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for i := range first {
		if first[i].Submission.ID != second[i].Submission.ID {
			t.Fatalf("tie ordering depends on input order at position %d", i)
		}
	}
}

func TestRankByRecent(t *testing.T) {
	now := time.Now().UTC()
	old := triageItem(SeveritySevere, now.Add(-48*time.Hour), StatusPending, "a", false)
	fresh := triageItem(SeverityMild, now, StatusPending, "b", false)

	got, err := Rank([]TriageItem{old, fresh}, now, RankOptions{SortBy: SortByRecent})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].Submission.ID != fresh.Submission.ID {
		t.Errorf("expected newest first")
	}
}

func TestRankByNameEmptyLast(t *testing.T) {
	now := time.Now().UTC()
	items := []TriageItem{
		triageItem(SeverityMild, now, StatusPending, "zoe", false),
		triageItem(SeverityMild, now, StatusPending, "", false),
		triageItem(SeverityMild, now, StatusPending, "Adam", false),
	}
	got, err := Rank(items, now, RankOptions{SortBy: SortByName})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got[0].PatientName != "Adam" || got[1].PatientName != "zoe" || got[2].PatientName != "" {
		t.Errorf("unexpected name order: %q %q %q", got[0].PatientName, got[1].PatientName, got[2].PatientName)
	}
}

func TestRankFiltersCompose(t *testing.T) {
	now := time.Now().UTC()
	keep := triageItem(SeveritySevere, now, StatusPending, "a", true)
	items := []TriageItem{
		keep,
		triageItem(SeveritySevere, now, StatusReviewed, "b", true),
		triageItem(SeveritySevere, now, StatusPending, "c", false),
	}
	got, err := Rank(items, now, RankOptions{
		Status:      StatusFilterPending,
		Appointment: AppointmentFilterWith,
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 1 || got[0].Submission.ID != keep.Submission.ID {
		t.Errorf("expected only the pending-with-appointment item, got %d items", len(got))
	}
}

func TestRankLimitAfterFilter(t *testing.T) {
	now := time.Now().UTC()
	var items []TriageItem
	for i := 0; i < 5; i++ {
		items = append(items, triageItem(SeverityMild, now, StatusPending, "p", false))
	}
	items = append(items, triageItem(SeverityMild, now, StatusReviewed, "r", false))

	got, err := Rank(items, now, RankOptions{Status: StatusFilterPending, Limit: 3})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 items, got %d", len(got))
	}
	for _, it := range got {
		if it.Submission.Status != StatusPending {
			t.Errorf("limit applied before status filter")
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	now := time.Now().UTC()
	a := triageItem(SeverityMild, now, StatusPending, "b", false)
	b := triageItem(SeveritySevere, now, StatusPending, "a", false)
	in := []TriageItem{a, b}

	if _, err := Rank(in, now, RankOptions{}); err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if in[0].Submission.ID != a.Submission.ID || in[1].Submission.ID != b.Submission.ID {
		t.Errorf("input slice was reordered")
	}
}

func TestRankRejectsUnknownSelectors(t *testing.T) {
	now := time.Now().UTC()
	if _, err := Rank(nil, now, RankOptions{SortBy: "urgency"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown sort: expected ErrValidation, got %v", err)
	}
	if _, err := Rank(nil, now, RankOptions{Status: "open"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown status filter: expected ErrValidation, got %v", err)
	}
	if _, err := Rank(nil, now, RankOptions{Appointment: "maybe"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown appointment filter: expected ErrValidation, got %v", err)
	}
}
