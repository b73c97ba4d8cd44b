// Package chat implements the streaming chat turn: resolve the
// conversation, compose the prompt from bot config plus processed
// knowledge, relay the gateway token stream to the caller and persist
// the finished exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/botforge/chatbot-platform/internal/analytics"
	"github.com/botforge/chatbot-platform/internal/bot"
	"github.com/botforge/chatbot-platform/internal/conversation"
	"github.com/botforge/chatbot-platform/internal/gateway"
	"github.com/botforge/chatbot-platform/internal/knowledge"
	"github.com/botforge/chatbot-platform/internal/observability/metrics"
	"github.com/botforge/chatbot-platform/internal/prompt"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

var chatTracer = otel.Tracer("botforge.internal.chat")

const persistTimeout = 10 * time.Second

// CompletionStreamer issues a streaming completion request. Satisfied
// by *gateway.Client.
type CompletionStreamer interface {
	StreamChatCompletion(ctx context.Context, req gateway.StreamRequest) (io.ReadCloser, error)
}

// Handler serves POST /v1/chat.
type Handler struct {
	bots      *bot.Store
	ledger    *conversation.Ledger
	knowledge *knowledge.Store
	cache     *knowledge.ContextCache
	gateway   CompletionStreamer
	events    *analytics.Recorder
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger
}

// NewHandler wires the chat pipeline. cache, events and metrics may be
// nil; the rest are required.
func NewHandler(bots *bot.Store, ledger *conversation.Ledger, ks *knowledge.Store, cache *knowledge.ContextCache, gw CompletionStreamer, events *analytics.Recorder, m *metrics.ChatMetrics, logger *logging.Logger) *Handler {
	if bots == nil || ledger == nil || ks == nil || gw == nil {
		panic("chat: bots, ledger, knowledge store and gateway are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		bots:      bots,
		ledger:    ledger,
		knowledge: ks,
		cache:     cache,
		gateway:   gw,
		events:    events,
		metrics:   m,
		logger:    logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage  `json:"messages"`
	BotID       string         `json:"botId"`
	SessionID   string         `json:"sessionId"`
	VisitorInfo map[string]any `json:"visitorInfo"`
}

// ServeChat handles one chat turn.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	ctx, span := chatTracer.Start(r.Context(), "chat.ServeChat")
	defer span.End()

	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body", start)
		return
	}
	botID, err := uuid.Parse(strings.TrimSpace(req.BotID))
	if err != nil {
		h.fail(w, http.StatusBadRequest, "invalid botId", start)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		h.fail(w, http.StatusBadRequest, "sessionId required", start)
		return
	}
	if len(req.Messages) == 0 {
		h.fail(w, http.StatusBadRequest, "messages required", start)
		return
	}
	span.SetAttributes(
		attribute.String("bot.id", botID.String()),
		attribute.Int("chat.history_len", len(req.Messages)),
	)

	b, err := h.bots.GetActive(ctx, botID)
	if errors.Is(err, bot.ErrNotFound) {
		h.fail(w, http.StatusNotFound, "Bot not found", start)
		return
	}
	if err != nil {
		h.logger.Error("chat: load bot", "bot_id", botID, "error", err)
		h.fail(w, http.StatusInternalServerError, "Internal server error", start)
		return
	}

	convID, created, err := h.ledger.Resolve(ctx, botID, sessionID, req.VisitorInfo)
	if err != nil {
		h.logger.Error("chat: resolve conversation", "bot_id", botID, "error", err)
		h.fail(w, http.StatusInternalServerError, "Internal server error", start)
		return
	}

	// Only the trailing user message is new; earlier entries are
	// replayed history already persisted on previous turns.
	last := req.Messages[len(req.Messages)-1]
	persisted := 0
	if err := h.ledger.PersistUserTurn(ctx, convID, last.Role, last.Content); err != nil {
		h.logger.Error("chat: persist user turn", "conversation_id", convID, "error", err)
		h.fail(w, http.StatusInternalServerError, "Internal server error", start)
		return
	}
	if last.Role == conversation.RoleUser {
		persisted++
	}

	// Logged before the completion call so failed turns still count.
	if h.events != nil {
		visitor := req.VisitorInfo
		if visitor == nil {
			visitor = map[string]any{}
		}
		h.events.RecordAsync(botID, analytics.EventMessageSent, sessionID, nil, visitor)
	}

	snippets := h.loadContext(ctx, botID)
	h.metrics.ObserveContextSize(len(snippets))

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt.Compose(b, snippets),
	})
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	upstream, err := h.gateway.StreamChatCompletion(ctx, gateway.StreamRequest{
		Model:       b.GenerationModel(),
		Messages:    messages,
		Temperature: b.GenerationTemperature(),
		MaxTokens:   b.GenerationMaxTokens(),
	})
	if err != nil {
		h.failUpstream(w, err, start)
		return
	}
	defer upstream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	reply, done := relay(w, upstream)
	span.SetAttributes(
		attribute.Bool("chat.stream_done", done),
		attribute.Int("chat.reply_len", len(reply)),
	)

	if reply != "" {
		persisted += h.persistReply(convID, last.Content, reply, snippets)
	}

	pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.bots.IncrementUsage(pctx, botID, created, persisted); err != nil {
		h.logger.Error("chat: increment usage", "bot_id", botID, "error", err)
	}
	h.metrics.ObserveRequest("ok", time.Since(start).Seconds())
}

// loadContext returns the bot's processed knowledge, via the Redis
// cache when available. Retrieval failures degrade to an empty
// context rather than failing the turn.
func (h *Handler) loadContext(ctx context.Context, botID uuid.UUID) []knowledge.Snippet {
	if h.cache != nil {
		if snippets, ok, err := h.cache.Get(ctx, botID); err != nil {
			h.logger.Warn("chat: context cache read", "bot_id", botID, "error", err)
		} else if ok {
			return snippets
		}
	}

	snippets, err := h.knowledge.ListProcessed(ctx, botID)
	if err != nil {
		h.logger.Error("chat: load knowledge", "bot_id", botID, "error", err)
		return nil
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, botID, snippets); err != nil {
			h.logger.Warn("chat: context cache write", "bot_id", botID, "error", err)
		}
	}
	return snippets
}

// persistReply stores the assistant message on a detached context so a
// client disconnect after stream end cannot lose it. Returns how many
// rows were written; failures are logged and swallowed.
func (h *Handler) persistReply(convID uuid.UUID, userMessage, reply string, snippets []knowledge.Snippet) int {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	sources := attributeSources(userMessage, snippets)
	if err := h.ledger.AppendMessage(ctx, convID, conversation.RoleAssistant, reply, sources); err != nil {
		h.logger.Error("chat: persist assistant message", "conversation_id", convID, "error", err)
		return 0
	}
	return 1
}

func (h *Handler) failUpstream(w http.ResponseWriter, err error, start time.Time) {
	switch {
	case errors.Is(err, gateway.ErrRateLimited):
		h.metrics.ObserveUpstreamError("rate_limited")
		h.fail(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", start)
	case errors.Is(err, gateway.ErrQuotaExhausted):
		h.metrics.ObserveUpstreamError("quota_exhausted")
		h.fail(w, http.StatusPaymentRequired, "AI credits exhausted. Please add more credits.", start)
	default:
		h.metrics.ObserveUpstreamError("upstream")
		h.logger.Error("chat: gateway request", "error", err)
		h.fail(w, http.StatusInternalServerError, "AI service error", start)
	}
}

func (h *Handler) fail(w http.ResponseWriter, status int, message string, start time.Time) {
	h.metrics.ObserveRequest(statusLabel(status), time.Since(start).Seconds())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func statusLabel(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusPaymentRequired:
		return "quota_exhausted"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "error"
	}
}
