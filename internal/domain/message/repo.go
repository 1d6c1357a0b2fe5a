package message

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListConversation returns every message between two users, oldest first.
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]*Message, error)
	// ListThreads returns one summary per peer of the given user, most
	// recent conversation first.
	ListThreads(ctx context.Context, userID uuid.UUID) ([]*Thread, error)
	// MarkRead marks every unread message from peer to the user as read.
	MarkRead(ctx context.Context, userID, peerID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}
