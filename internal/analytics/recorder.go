// Package analytics records product events emitted by the chat and
// ingestion pipelines. Recording is best effort: failures are logged
// and never surfaced to the request path.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/botforge/chatbot-platform/pkg/logging"
)

// Event types emitted by the platform.
const (
	EventMessageSent   = "message_sent"
	EventWidgetLoaded  = "widget_loaded"
	EventCrawlFinished = "crawl_finished"
)

const recordTimeout = 5 * time.Second

// Execer is the subset of pgxpool.Pool the recorder needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes analytics events. Safe for concurrent use.
type Recorder struct {
	db     Execer
	logger *logging.Logger
	now    func() time.Time
}

// NewRecorder builds a Recorder. Panics on nil dependencies.
func NewRecorder(db Execer, logger *logging.Logger) *Recorder {
	if db == nil {
		panic("analytics: db is required")
	}
	if logger == nil {
		panic("analytics: logger is required")
	}
	return &Recorder{db: db, logger: logger, now: time.Now}
}

// Record inserts one event synchronously. An empty sessionID and nil
// payload maps are stored as NULL. Errors are logged and swallowed so
// a broken analytics table never breaks a chat turn.
func (r *Recorder) Record(ctx context.Context, botID uuid.UUID, eventType, sessionID string, data, visitorInfo map[string]any) {
	eventData, err := jsonColumn(data)
	if err != nil {
		r.logger.Error("analytics: marshal event data", "event_type", eventType, "error", err)
		return
	}
	visitor, err := jsonColumn(visitorInfo)
	if err != nil {
		r.logger.Error("analytics: marshal visitor info", "event_type", eventType, "error", err)
		return
	}
	var sid any
	if sessionID != "" {
		sid = sessionID
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO analytics_events (id, bot_id, event_type, session_id, event_data, visitor_info, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), botID, eventType, sid, eventData, visitor, r.now().UTC())
	if err != nil {
		r.logger.Error("analytics: record event", "event_type", eventType, "bot_id", botID, "error", err)
	}
}

// RecordAsync records on a detached context so the event outlives the
// request that produced it.
func (r *Recorder) RecordAsync(botID uuid.UUID, eventType, sessionID string, data, visitorInfo map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		r.Record(ctx, botID, eventType, sessionID, data, visitorInfo)
	}()
}

func jsonColumn(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
