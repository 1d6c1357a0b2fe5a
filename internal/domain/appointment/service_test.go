package appointment

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/platform/auth"
)

type memRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMemRepo() *memRepo { return &memRepo{appts: map[uuid.UUID]*Appointment{}} }

func (m *memRepo) Create(_ context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out, nil
}

func (m *memRepo) ListByCaregiver(_ context.Context, caregiverID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.CaregiverID == caregiverID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ListUpcoming(_ context.Context, after time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.Status == StatusScheduled && a.ScheduledAt.After(after) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) PatientIDsWithUpcoming(_ context.Context, after time.Time) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for _, a := range m.appts {
		if a.Status == StatusScheduled && a.ScheduledAt.After(after) {
			out[a.PatientID] = true
		}
	}
	return out, nil
}

type recordedNotifier struct{ scheduled []*Appointment }

func (n *recordedNotifier) AppointmentScheduled(_ context.Context, a *Appointment) {
	n.scheduled = append(n.scheduled, a)
}

var apptNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo)
	svc.SetClock(func() time.Time { return apptNow })
	return svc, repo
}

func asCaregiver(id uuid.UUID) context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: id.String(), Role: auth.RoleCaregiver})
}

func asPatient(id uuid.UUID) context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: id.String(), Role: auth.RolePatient})
}

func TestCreateAppointment(t *testing.T) {
	svc, _ := newTestService()
	n := &recordedNotifier{}
	svc.SetNotifier(n)
	cg, pt := uuid.New(), uuid.New()

	a, err := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID:   pt,
		ScheduledAt: apptNow.Add(48 * time.Hour),
		Reason:      "follow-up",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.CaregiverID != cg || a.Status != StatusScheduled {
		t.Errorf("unexpected appointment: %+v", a)
	}
	if a.DurationMin != 30 {
		t.Errorf("default duration = %d, want 30", a.DurationMin)
	}
	if len(n.scheduled) != 1 {
		t.Errorf("expected 1 notification, got %d", len(n.scheduled))
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	cg := uuid.New()

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"missing patient", CreateRequest{ScheduledAt: apptNow.Add(time.Hour), Reason: "x"}},
		{"blank reason", CreateRequest{PatientID: uuid.New(), ScheduledAt: apptNow.Add(time.Hour)}},
		{"in the past", CreateRequest{PatientID: uuid.New(), ScheduledAt: apptNow.Add(-time.Hour), Reason: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(asCaregiver(cg), tc.req); !errors.Is(err, ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestGetOwnership(t *testing.T) {
	svc, _ := newTestService()
	cg, pt := uuid.New(), uuid.New()
	a, _ := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: pt, ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	})

	if _, err := svc.Get(asPatient(pt), a.ID); err != nil {
		t.Errorf("patient read own: %v", err)
	}
	if _, err := svc.Get(asPatient(uuid.New()), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other patient: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(asCaregiver(uuid.New()), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other caregiver: got %v, want ErrForbidden", err)
	}
}

func TestPatientMayOnlyCancel(t *testing.T) {
	svc, repo := newTestService()
	cg, pt := uuid.New(), uuid.New()
	a, _ := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: pt, ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	})

	cancelled := string(StatusCancelled)
	if _, err := svc.Update(asPatient(pt), a.ID, UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatalf("patient cancel: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), a.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	b, _ := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: pt, ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	})
	later := apptNow.Add(72 * time.Hour)
	if _, err := svc.Update(asPatient(pt), b.ID, UpdateRequest{ScheduledAt: &later}); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient reschedule: got %v, want ErrForbidden", err)
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()
	cg := uuid.New()
	a, _ := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: uuid.New(), ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	})

	bad := "rescheduled"
	if _, err := svc.Update(asCaregiver(cg), a.ID, UpdateRequest{Status: &bad}); !errors.Is(err, ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestPatientIDsWithAppointments(t *testing.T) {
	svc, _ := newTestService()
	cg, pt := uuid.New(), uuid.New()
	cancelledPt := uuid.New()

	if _, err := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: pt, ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, _ := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: cancelledPt, ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	})
	cancelled := string(StatusCancelled)
	if _, err := svc.Update(asCaregiver(cg), b.ID, UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	with, err := svc.PatientIDsWithAppointments(context.Background())
	if err != nil {
		t.Fatalf("PatientIDsWithAppointments: %v", err)
	}
	if !with[pt] || with[cancelledPt] {
		t.Errorf("got %v", with)
	}
}

func TestListMineWhenFilter(t *testing.T) {
	svc, repo := newTestService()
	cg, pt := uuid.New(), uuid.New()

	past := &Appointment{
		ID: uuid.New(), PatientID: pt, CaregiverID: cg,
		ScheduledAt: apptNow.Add(-48 * time.Hour), Reason: "x", Status: StatusCompleted,
	}
	if err := repo.Create(context.Background(), past); err != nil {
		t.Fatalf("seed past: %v", err)
	}
	if _, err := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: pt, ScheduledAt: apptNow.Add(24 * time.Hour), Reason: "x",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		when When
		want int
	}{
		{WhenAll, 2},
		{WhenUpcoming, 1},
		{WhenPast, 1},
		{"", 2},
	}
	for _, tc := range cases {
		got, err := svc.ListMine(asPatient(pt), ListFilter{When: tc.when})
		if err != nil {
			t.Fatalf("ListMine(%q): %v", tc.when, err)
		}
		if len(got) != tc.want {
			t.Errorf("ListMine(%q) = %d appointments, want %d", tc.when, len(got), tc.want)
		}
	}

	if _, err := svc.ListMine(asPatient(pt), ListFilter{When: "someday"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown when: got %v, want ErrValidation", err)
	}
}

func TestListForPatientDateRange(t *testing.T) {
	svc, _ := newTestService()
	cg, pt := uuid.New(), uuid.New()

	for _, offset := range []time.Duration{24 * time.Hour, 72 * time.Hour, 240 * time.Hour} {
		if _, err := svc.Create(asCaregiver(cg), CreateRequest{
			PatientID: pt, ScheduledAt: apptNow.Add(offset), Reason: "x",
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	from := apptNow.Add(48 * time.Hour)
	to := apptNow.Add(96 * time.Hour)
	got, err := svc.ListForPatient(asCaregiver(cg), pt, ListFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("ListForPatient: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("in-range appointments = %d, want 1", len(got))
	}
	if !got[0].ScheduledAt.Equal(apptNow.Add(72 * time.Hour)) {
		t.Errorf("wrong appointment in range: %s", got[0].ScheduledAt)
	}
}

func TestDeleteRoleBoundary(t *testing.T) {
	svc, _ := newTestService()
	cg, pt := uuid.New(), uuid.New()
	a, _ := svc.Create(asCaregiver(cg), CreateRequest{
		PatientID: pt, ScheduledAt: apptNow.Add(time.Hour), Reason: "x",
	})

	if err := svc.Delete(asPatient(pt), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("patient delete: got %v, want ErrForbidden", err)
	}
	if err := svc.Delete(asCaregiver(cg), a.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}
