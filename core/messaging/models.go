package messaging

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulesoft/shule/core"
	"github.com/shulesoft/shule/core/account"
)

// Message is a single direct message between two accounts.
// IsRead only ever transitions false→true, exactly once, when the receiver
// views the conversation; ReadAt is set at that transition and never after.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"` // UTC
}

// NewMessage is the payload for sending a message.
type NewMessage struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.ReceiverID = core.CleanString(nm.ReceiverID)
	return validate.Struct(nm)
}

// Contact is a counterpart profile enriched with conversation state.
// A Conversation is not stored; it is derived from the messages between
// the two accounts.
type Contact struct {
	Profile       account.Profile `json:"profile"`
	LastMessage   *Message        `json:"last_message,omitempty"`
	LastMessageAt time.Time       `json:"last_message_at,omitempty"`
	UnreadCount   int             `json:"unread_count"`
	HasMessages   bool            `json:"has_messages"`
}
