package message

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lumivita/portal/internal/platform/auth"
)

const maxBodyLen = 4000

// RoleResolver reports the stored role of a user. The user domain provides
// the implementation.
type RoleResolver interface {
	RoleOf(ctx context.Context, id uuid.UUID) (string, error)
}

// Notifier is told about new messages for realtime delivery. Best effort.
type Notifier interface {
	MessageSent(ctx context.Context, m *Message)
}

type Service struct {
	repo     Repository
	roles    RoleResolver
	notifier Notifier
}

func NewService(repo Repository, roles RoleResolver) *Service {
	return &Service{repo: repo, roles: roles}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func actorID(a auth.Actor) (uuid.UUID, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: unknown actor", ErrForbidden)
	}
	return id, nil
}

type SendRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Body        string    `json:"body"`
}

// Send delivers a message. Conversations only run between a patient and a
// caregiver; admins may message anyone.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Message, error) {
	actor := auth.ActorFromContext(ctx)
	senderID, err := actorID(actor)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if len(body) > maxBodyLen {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", ErrValidation, maxBodyLen)
	}
	if req.RecipientID == uuid.Nil {
		return nil, fmt.Errorf("%w: recipient_id is required", ErrValidation)
	}
	if req.RecipientID == senderID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}

	if actor.Role != auth.RoleAdmin {
		recipientRole, err := s.roles.RoleOf(ctx, req.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown recipient", ErrValidation)
		}
		ok := (actor.Role == auth.RolePatient && recipientRole == auth.RoleCaregiver) ||
			(actor.Role == auth.RoleCaregiver && recipientRole == auth.RolePatient)
		if !ok {
			return nil, fmt.Errorf("%w: messages run between a patient and a caregiver", ErrForbidden)
		}
	}

	m := &Message{SenderID: senderID, RecipientID: req.RecipientID, Body: body}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.MessageSent(ctx, m)
	}
	return m, nil
}

// Conversation returns the full exchange between the acting user and a peer,
// oldest first.
func (s *Service) Conversation(ctx context.Context, peerID uuid.UUID) ([]*Message, error) {
	id, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return s.repo.ListConversation(ctx, id, peerID)
}

// Threads returns the acting user's conversations with unread counts.
func (s *Service) Threads(ctx context.Context) ([]*Thread, error) {
	id, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return s.repo.ListThreads(ctx, id)
}

// MarkRead marks the peer's messages to the acting user as read and returns
// how many flipped.
func (s *Service) MarkRead(ctx context.Context, peerID uuid.UUID) (int, error) {
	id, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, id, peerID)
}

// UnreadCount returns the acting user's total unread messages.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	id, err := actorID(auth.ActorFromContext(ctx))
	if err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, id)
}
