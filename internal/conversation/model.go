package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Message roles accepted by the ledger.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one continuous chat session for a bot, keyed by the
// caller-supplied session token.
type Conversation struct {
	ID           uuid.UUID
	BotID        uuid.UUID
	SessionID    string
	VisitorInfo  map[string]any
	MessageCount int
	StartedAt    time.Time
	EndedAt      *time.Time
}

// Message is one turn in a conversation. Rows are append-only and ordered
// by creation time.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	Sources        []string
	CreatedAt      time.Time
}

// ValidRole reports whether the ledger accepts the role.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
