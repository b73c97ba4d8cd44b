// Package ingest orchestrates turning a source URL into processed
// knowledge: fetch, extract, persist, invalidate caches.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/botforge/chatbot-platform/internal/analytics"
	"github.com/botforge/chatbot-platform/internal/extractor"
	"github.com/botforge/chatbot-platform/internal/knowledge"
	"github.com/botforge/chatbot-platform/internal/observability/metrics"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

var ingestTracer = otel.Tracer("botforge.internal.ingest")

// Result summarizes a completed crawl.
type Result struct {
	Title         string
	ContentLength int
	Chunks        int
}

// Service runs the crawl pipeline for one knowledge item at a time.
// Concurrent recrawls of the same item are not serialized; the slower
// write wins, same as reprocessing the item twice.
type Service struct {
	store   *knowledge.Store
	crawler *extractor.Crawler
	cache   *knowledge.ContextCache
	events  *analytics.Recorder
	metrics *metrics.IngestMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService builds the crawl pipeline. cache, events and metrics may
// be nil; store, crawler and logger are required.
func NewService(store *knowledge.Store, crawler *extractor.Crawler, cache *knowledge.ContextCache, events *analytics.Recorder, m *metrics.IngestMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("ingest: store is required")
	}
	if crawler == nil {
		panic("ingest: crawler is required")
	}
	if logger == nil {
		panic("ingest: logger is required")
	}
	return &Service{
		store:   store,
		crawler: crawler,
		cache:   cache,
		events:  events,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Crawl fetches url, extracts its text and stores the result on the
// knowledge item. Fetch and extraction failures are recorded on the
// item as status failed before being returned.
func (s *Service) Crawl(ctx context.Context, botID, knowledgeID uuid.UUID, url string) (Result, error) {
	ctx, span := ingestTracer.Start(ctx, "ingest.Crawl")
	defer span.End()
	span.SetAttributes(
		attribute.String("bot.id", botID.String()),
		attribute.String("knowledge.id", knowledgeID.String()),
	)

	start := s.now()

	if err := s.store.MarkCrawling(ctx, knowledgeID); err != nil {
		return Result{}, fmt.Errorf("ingest: mark crawling: %w", err)
	}

	page, err := s.crawler.Fetch(ctx, url)
	if err != nil {
		s.fail(ctx, knowledgeID, err)
		s.metrics.ObserveCrawl(knowledge.StatusFailed, s.now().Sub(start).Seconds())
		return Result{}, fmt.Errorf("ingest: fetch %s: %w", url, err)
	}

	title := page.Title
	if title == "" {
		title = extractor.Hostname(url)
	}

	if err := s.store.CompleteCrawl(ctx, knowledgeID, title, page.Content); err != nil {
		s.fail(ctx, knowledgeID, err)
		s.metrics.ObserveCrawl(knowledge.StatusFailed, s.now().Sub(start).Seconds())
		return Result{}, fmt.Errorf("ingest: complete crawl: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, botID); err != nil {
			s.logger.Warn("ingest: invalidate context cache", "bot_id", botID, "error", err)
		}
	}

	res := Result{
		Title:         title,
		ContentLength: len(page.Content),
		Chunks:        knowledge.ChunkCount(page.Content),
	}

	s.metrics.ObserveCrawl(knowledge.StatusProcessed, s.now().Sub(start).Seconds())
	s.metrics.ObserveContentLength(res.ContentLength)
	if s.events != nil {
		s.events.RecordAsync(botID, analytics.EventCrawlFinished, "", map[string]any{
			"knowledge_id":   knowledgeID.String(),
			"url":            url,
			"content_length": res.ContentLength,
			"chunks":         res.Chunks,
		}, nil)
	}

	s.logger.Info("ingest: crawl complete",
		"knowledge_id", knowledgeID, "url", url,
		"content_length", res.ContentLength, "chunks", res.Chunks)
	return res, nil
}

func (s *Service) fail(ctx context.Context, knowledgeID uuid.UUID, cause error) {
	if err := s.store.MarkFailed(ctx, knowledgeID, cause.Error()); err != nil {
		s.logger.Error("ingest: mark failed", "knowledge_id", knowledgeID, "error", err)
	}
}
