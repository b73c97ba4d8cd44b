package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/botforge/chatbot-platform/pkg/logging"
)

var ledgerTracer = otel.Tracer("botforge.internal.conversation.ledger")

// Ledger persists conversations and messages to PostgreSQL.
//
// The core invariant: at most one live (ended_at IS NULL) conversation per
// (bot, session) pair, enforced by a partial unique index rather than
// read-then-insert.
type Ledger struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewLedger creates a conversation ledger.
func NewLedger(db *sql.DB, logger *logging.Logger) *Ledger {
	if db == nil {
		panic("conversation: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{db: db, logger: logger}
}

// Resolve finds the live conversation for (bot, session) or creates one.
// Two concurrent calls for the same pair converge on the same row: the
// insert is ON CONFLICT DO NOTHING against the partial unique index, and the
// loser re-selects.
func (l *Ledger) Resolve(ctx context.Context, botID uuid.UUID, sessionID string, visitorInfo map[string]any) (uuid.UUID, bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "conversation.resolve")
	defer span.End()

	var id uuid.UUID
	err := l.db.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE bot_id = $1 AND session_id = $2 AND ended_at IS NULL
	`, botID, sessionID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, false, fmt.Errorf("conversation: lookup: %w", err)
	}

	if visitorInfo == nil {
		visitorInfo = map[string]any{}
	}
	info, err := json.Marshal(visitorInfo)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("conversation: encode visitor info: %w", err)
	}

	err = l.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id, bot_id, session_id, visitor_info)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bot_id, session_id) WHERE ended_at IS NULL DO NOTHING
		RETURNING id
	`, uuid.New(), botID, sessionID, info).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, false, fmt.Errorf("conversation: create: %w", err)
	}

	// Lost the race: another request inserted the row between our select
	// and insert.
	err = l.db.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE bot_id = $1 AND session_id = $2 AND ended_at IS NULL
	`, botID, sessionID).Scan(&id)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("conversation: lookup after conflict: %w", err)
	}
	return id, false, nil
}

// AppendMessage inserts a message and atomically increments the
// conversation's message counter.
func (l *Ledger) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources []string) error {
	ctx, span := ledgerTracer.Start(ctx, "conversation.append_message")
	defer span.End()

	if !ValidRole(role) {
		return fmt.Errorf("conversation: invalid role %q", role)
	}

	var sourcesJSON any
	if len(sources) > 0 {
		data, err := json.Marshal(sources)
		if err != nil {
			return fmt.Errorf("conversation: encode sources: %w", err)
		}
		sourcesJSON = data
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, sources)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), conversationID, role, content, sourcesJSON)
	if err != nil {
		return fmt.Errorf("conversation: insert message: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		UPDATE conversations SET message_count = message_count + 1 WHERE id = $1
	`, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: increment message count: %w", err)
	}
	return nil
}

// PersistUserTurn stores only a trailing user message from an incoming
// batch. Prior turns are already in the ledger; replaying them must not
// duplicate rows.
func (l *Ledger) PersistUserTurn(ctx context.Context, conversationID uuid.UUID, role, content string) error {
	if role != RoleUser {
		return nil
	}
	return l.AppendMessage(ctx, conversationID, RoleUser, content, nil)
}

// End marks the conversation finished, releasing the (bot, session) slot.
func (l *Ledger) End(ctx context.Context, conversationID uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE conversations SET ended_at = now()
		WHERE id = $1 AND ended_at IS NULL
	`, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: end: %w", err)
	}
	return nil
}

// Get loads a conversation row.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var c Conversation
	var info []byte
	err := l.db.QueryRowContext(ctx, `
		SELECT id, bot_id, session_id, visitor_info, message_count, started_at, ended_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.BotID, &c.SessionID, &info, &c.MessageCount, &c.StartedAt, &c.EndedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get: %w", err)
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &c.VisitorInfo); err != nil {
			return nil, fmt.Errorf("conversation: decode visitor info: %w", err)
		}
	}
	return &c, nil
}
