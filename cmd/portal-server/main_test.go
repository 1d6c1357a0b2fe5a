package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/domain/message"
	"github.com/lumivita/portal/internal/domain/submission"
	"github.com/lumivita/portal/internal/domain/user"
	"github.com/lumivita/portal/internal/platform/auth"
	"github.com/lumivita/portal/internal/platform/notification"
	"github.com/lumivita/portal/internal/platform/websocket"
)

type fakeUserRepo struct {
	byID map[uuid.UUID]*user.User
}

func (f *fakeUserRepo) Create(context.Context, *user.User) error { return nil }
func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}
func (f *fakeUserRepo) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUserRepo) Update(context.Context, *user.User) error { return nil }
func (f *fakeUserRepo) Delete(context.Context, uuid.UUID) error  { return nil }
func (f *fakeUserRepo) ListByRole(_ context.Context, role string) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.byID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}
func (f *fakeUserRepo) ListAll(context.Context) ([]*user.User, error)               { return nil, nil }
func (f *fakeUserRepo) AssignPatient(context.Context, uuid.UUID, uuid.UUID) error   { return nil }
func (f *fakeUserRepo) UnassignPatient(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeUserRepo) ListAssignedPatients(context.Context, uuid.UUID) ([]*user.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) GetPatientProfile(context.Context, uuid.UUID) (*user.PatientProfile, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUserRepo) UpsertPatientProfile(context.Context, *user.PatientProfile) error { return nil }
func (f *fakeUserRepo) GetCaregiverProfile(context.Context, uuid.UUID) (*user.CaregiverProfile, error) {
	return nil, user.ErrNotFound
}
func (f *fakeUserRepo) UpsertCaregiverProfile(context.Context, *user.CaregiverProfile) error {
	return nil
}

func TestPatientDirectoryLookup(t *testing.T) {
	id := uuid.New()
	repo := &fakeUserRepo{byID: map[uuid.UUID]*user.User{
		id: {ID: id, Name: "Ada Example", Email: "ada@example.com", Role: user.RolePatient},
	}}
	dir := &patientDirectory{users: repo}

	info, err := dir.GetPatient(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if info.Name != "Ada Example" || info.Email != "ada@example.com" {
		t.Errorf("info = %+v", info)
	}

	if _, err := dir.GetPatient(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown patient")
	}

	list, err := dir.ListPatients(context.Background())
	if err != nil || len(list) != 1 {
		t.Errorf("ListPatients = %v, %v", list, err)
	}
}

func TestNotifierBroadcastsToTriageTopic(t *testing.T) {
	patientID := uuid.New()
	repo := &fakeUserRepo{byID: map[uuid.UUID]*user.User{
		patientID: {ID: patientID, Name: "Ada Example", Email: "ada@example.com", Role: user.RolePatient},
	}}

	hub := websocket.NewHub()
	caregiver := &websocket.Client{
		ID:     "c1",
		UserID: uuid.NewString(),
		Role:   auth.RoleCaregiver,
		Topics: []string{websocket.TopicTriage},
		Send:   make(chan []byte, 4),
	}
	hub.Register(caregiver)

	mgr := notification.NewManager(notification.LogSender{}, notification.LogSender{}, notification.NewTemplateEngine())
	events := &portalNotifier{hub: hub, notifications: mgr, users: repo}

	events.SubmissionCreated(context.Background(), &submission.Submission{
		ID:          uuid.New(),
		PatientID:   patientID,
		Severity:    submission.SeveritySevere,
		SubmittedAt: time.Now(),
	})

	select {
	case raw := <-caregiver.Send:
		var ev websocket.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type != "submission.created" || ev.Topic != websocket.TopicTriage {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("no event delivered to triage subscriber")
	}

	// The patient email got a queued notification as well.
	if got := mgr.ListByRecipient("ada@example.com", 10); len(got) != 1 {
		t.Errorf("notifications for patient = %d", len(got))
	}
}

func TestNotifierMessageGoesToRecipientTopicOnly(t *testing.T) {
	sender := uuid.New()
	recipient := uuid.New()
	repo := &fakeUserRepo{byID: map[uuid.UUID]*user.User{
		recipient: {ID: recipient, Name: "Bea Example", Email: "bea@example.com", Role: user.RoleCaregiver},
	}}

	hub := websocket.NewHub()
	recClient := &websocket.Client{
		ID:     "r1",
		UserID: recipient.String(),
		Role:   auth.RoleCaregiver,
		Topics: []string{websocket.UserTopic(recipient.String())},
		Send:   make(chan []byte, 4),
	}
	sendClient := &websocket.Client{
		ID:     "s1",
		UserID: sender.String(),
		Role:   auth.RolePatient,
		Topics: []string{websocket.UserTopic(sender.String())},
		Send:   make(chan []byte, 4),
	}
	hub.Register(recClient)
	hub.Register(sendClient)

	mgr := notification.NewManager(notification.LogSender{}, notification.LogSender{}, notification.NewTemplateEngine())
	events := &portalNotifier{hub: hub, notifications: mgr, users: repo}

	events.MessageSent(context.Background(), &message.Message{
		ID: uuid.New(), SenderID: sender, RecipientID: recipient, Body: "hello",
	})

	if len(recClient.Send) != 1 {
		t.Errorf("recipient received %d events, want 1", len(recClient.Send))
	}
	if len(sendClient.Send) != 0 {
		t.Errorf("sender received %d events, want 0", len(sendClient.Send))
	}
}
