package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when no bot row matches the lookup.
var ErrNotFound = errors.New("bot: not found")

// Store reads bot configuration from PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a bot store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("bot: db cannot be nil")
	}
	return &Store{db: db}
}

const botColumns = `id, workspace_id, name, COALESCE(description, ''), status,
	COALESCE(system_prompt, ''), COALESCE(welcome_message, ''), COALESCE(model, ''),
	temperature, max_tokens, business_only, allowed_topics, blocked_keywords,
	COALESCE(widget_color, ''), COALESCE(widget_position, ''),
	COALESCE(widget_avatar_url, ''), COALESCE(widget_title, ''),
	created_at, updated_at`

// Get looks up a bot by ID regardless of status.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Bot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1`, id)
	return scanBot(row)
}

// GetActive looks up a bot by ID and requires status = active.
func (s *Store) GetActive(ctx context.Context, id uuid.UUID) (*Bot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1 AND status = $2`, id, StatusActive)
	return scanBot(row)
}

// IncrementUsage bumps the bot's rollup counters after a completed chat turn.
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID, newConversation bool, messages int) error {
	convDelta := 0
	if newConversation {
		convDelta = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bots SET
			total_conversations = total_conversations + $1,
			total_messages = total_messages + $2,
			updated_at = now()
		WHERE id = $3
	`, convDelta, messages, id)
	if err != nil {
		return fmt.Errorf("bot: increment usage: %w", err)
	}
	return nil
}

func scanBot(row *sql.Row) (*Bot, error) {
	var b Bot
	var temperature sql.NullFloat64
	var maxTokens sql.NullInt32
	err := row.Scan(
		&b.ID, &b.WorkspaceID, &b.Name, &b.Description, &b.Status,
		&b.SystemPrompt, &b.WelcomeMessage, &b.Model,
		&temperature, &maxTokens, &b.BusinessOnly,
		pq.Array(&b.AllowedTopics), pq.Array(&b.BlockedKeywords),
		&b.WidgetColor, &b.WidgetPosition, &b.WidgetAvatarURL, &b.WidgetTitle,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bot: scan: %w", err)
	}
	if temperature.Valid {
		t := float32(temperature.Float64)
		b.Temperature = &t
	}
	if maxTokens.Valid {
		m := maxTokens.Int32
		b.MaxTokens = &m
	}
	return &b, nil
}
