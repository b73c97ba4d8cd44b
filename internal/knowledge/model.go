package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Source types for knowledge items.
const (
	SourceFile = "file"
	SourceURL  = "url"
	SourceText = "text"
	SourceAPI  = "api"
)

// Ingestion status values recorded in item metadata.
const (
	StatusPending   = "pending"
	StatusCrawling  = "crawling"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// ChunkSize is the fixed chunk length used to derive chunks_count.
const ChunkSize = 500

// Item is one unit of retrievable context attached to a bot.
type Item struct {
	ID          uuid.UUID
	BotID       uuid.UUID
	SourceType  string
	Title       string
	Content     string
	URL         string
	ChunksCount int
	IsProcessed bool
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snippet is the projection of a processed item used for prompt grounding
// and source attribution.
type Snippet struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ChunkCount returns ceil(len(content)/ChunkSize).
func ChunkCount(content string) int {
	return (len(content) + ChunkSize - 1) / ChunkSize
}
