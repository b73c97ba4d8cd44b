package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no knowledge row matches the lookup.
var ErrNotFound = errors.New("knowledge: not found")

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists knowledge items in PostgreSQL.
type Store struct {
	db Querier
}

// NewStore creates a knowledge store.
func NewStore(db Querier) *Store {
	if db == nil {
		panic("knowledge: db cannot be nil")
	}
	return &Store{db: db}
}

// ListProcessed returns title/content pairs for every processed item of the
// bot, oldest first. Unprocessed items are never returned.
func (s *Store) ListProcessed(ctx context.Context, botID uuid.UUID) ([]Snippet, error) {
	rows, err := s.db.Query(ctx, `
		SELECT title, COALESCE(content, '')
		FROM knowledge_base
		WHERE bot_id = $1 AND is_processed
		ORDER BY created_at
	`, botID)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list processed: %w", err)
	}
	defer rows.Close()

	var out []Snippet
	for rows.Next() {
		var s Snippet
		if err := rows.Scan(&s.Title, &s.Content); err != nil {
			return nil, fmt.Errorf("knowledge: scan snippet: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads a single item.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	var it Item
	var metadata []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, bot_id, source_type, title, COALESCE(content, ''),
		       COALESCE(url, ''), COALESCE(chunks_count, 0), is_processed,
		       metadata, created_at, updated_at
		FROM knowledge_base WHERE id = $1
	`, id).Scan(
		&it.ID, &it.BotID, &it.SourceType, &it.Title, &it.Content,
		&it.URL, &it.ChunksCount, &it.IsProcessed,
		&metadata, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: get: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &it.Metadata); err != nil {
			return nil, fmt.Errorf("knowledge: decode metadata: %w", err)
		}
	}
	return &it, nil
}

// MarkCrawling flips the item into the in-flight state so concurrent reads
// observe the crawl. Content fields are left untouched.
func (s *Store) MarkCrawling(ctx context.Context, id uuid.UUID) error {
	return s.setMetadata(ctx, id, map[string]any{"status": StatusCrawling})
}

// MarkFailed records a crawl failure. Only metadata changes: a failed
// recrawl must not corrupt previously processed content.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return s.setMetadata(ctx, id, map[string]any{
		"status": StatusFailed,
		"error":  cause,
	})
}

// CompleteCrawl stores the extraction result and marks the item processed.
// This is the only path that overwrites content.
func (s *Store) CompleteCrawl(ctx context.Context, id uuid.UUID, title, content string) error {
	metadata, err := json.Marshal(map[string]any{
		"status":         StatusProcessed,
		"crawled_at":     time.Now().UTC().Format(time.RFC3339),
		"content_length": len(content),
	})
	if err != nil {
		return fmt.Errorf("knowledge: encode metadata: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE knowledge_base SET
			title = $1,
			content = $2,
			chunks_count = $3,
			is_processed = TRUE,
			metadata = $4,
			updated_at = now()
		WHERE id = $5
	`, title, content, ChunkCount(content), metadata, id)
	if err != nil {
		return fmt.Errorf("knowledge: complete crawl: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) setMetadata(ctx context.Context, id uuid.UUID, meta map[string]any) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("knowledge: encode metadata: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE knowledge_base SET metadata = $1, updated_at = now() WHERE id = $2
	`, payload, id)
	if err != nil {
		return fmt.Errorf("knowledge: update metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
