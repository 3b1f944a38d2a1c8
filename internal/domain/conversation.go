package domain

import "time"

// Conversation groups a visitor's messages with one bot, keyed by the
// widget-assigned session ID. Created on first message, never deleted by the
// chat engine.
type Conversation struct {
	ID        string
	BotID     string
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRole is the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn in a conversation. Append-only: Truncated marks an
// assistant message whose generation was cut short (disconnect or upstream
// failure); the partial content is kept, not deleted.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Truncated      bool
	CreatedAt      time.Time
}

// ValidateMessage validates a Message instance before persistence.
func ValidateMessage(m *Message) error {
	if m == nil {
		return ErrMissingRequiredField
	}
	if m.ID == "" || m.ConversationID == "" {
		return ErrMissingRequiredField
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return ErrInvalidMessageRole
	}
	if m.Content == "" {
		return ErrMissingRequiredField
	}
	return nil
}
