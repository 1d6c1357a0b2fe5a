package message

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("message not found")
	ErrForbidden  = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
)

type Message struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	SenderID    uuid.UUID  `db:"sender_id" json:"sender_id"`
	RecipientID uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	Body        string     `db:"body" json:"body"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Thread summarizes a conversation with one peer.
type Thread struct {
	PeerID      uuid.UUID `json:"peer_id"`
	LastMessage *Message  `json:"last_message"`
	Unread      int       `json:"unread"`
}
