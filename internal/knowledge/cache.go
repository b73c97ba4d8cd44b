package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ContextCache is a read-through Redis cache of a bot's processed snippets.
// The chat path hits it on every turn; ingestion invalidates after a crawl so
// new knowledge shows up within one request rather than one TTL.
type ContextCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContextCache creates a snippet cache. A zero ttl stores entries without
// expiry; ingestion invalidation is then the only eviction path.
func NewContextCache(client *redis.Client, ttl time.Duration) *ContextCache {
	if client == nil {
		panic("knowledge: redis client cannot be nil")
	}
	return &ContextCache{client: client, ttl: ttl}
}

// Get returns the cached snippets for the bot, or ok=false on a miss.
func (c *ContextCache) Get(ctx context.Context, botID uuid.UUID) ([]Snippet, bool, error) {
	data, err := c.client.Get(ctx, contextKey(botID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("knowledge: cache get: %w", err)
	}
	var snippets []Snippet
	if err := json.Unmarshal(data, &snippets); err != nil {
		return nil, false, fmt.Errorf("knowledge: cache decode: %w", err)
	}
	return snippets, true, nil
}

// Set stores the bot's snippets for the configured TTL.
func (c *ContextCache) Set(ctx context.Context, botID uuid.UUID, snippets []Snippet) error {
	data, err := json.Marshal(snippets)
	if err != nil {
		return fmt.Errorf("knowledge: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, contextKey(botID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("knowledge: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the bot's cached snippets after an ingestion write.
func (c *ContextCache) Invalidate(ctx context.Context, botID uuid.UUID) error {
	if err := c.client.Del(ctx, contextKey(botID)).Err(); err != nil {
		return fmt.Errorf("knowledge: cache invalidate: %w", err)
	}
	return nil
}

func contextKey(botID uuid.UUID) string {
	return fmt.Sprintf("kb:ctx:%s", botID)
}
