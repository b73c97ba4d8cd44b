// Package widget serves the public embed surface: the bot config
// projection the embed script boots from, and the script itself.
package widget

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/botforge/chatbot-platform/internal/analytics"
	"github.com/botforge/chatbot-platform/internal/bot"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

//go:embed embed.js
var embedScript []byte

// Handler serves the widget endpoints.
type Handler struct {
	bots   *bot.Store
	events *analytics.Recorder
	logger *logging.Logger
}

// NewHandler creates the widget handler. events may be nil.
func NewHandler(bots *bot.Store, events *analytics.Recorder, logger *logging.Logger) *Handler {
	if bots == nil {
		panic("widget: bot store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{bots: bots, events: events, logger: logger}
}

// Config handles GET /v1/widget/config?botId=...
// Only active bots are exposed; anything else is indistinguishable
// from absent.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("botId"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "botId is required"})
		return
	}
	botID, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Bot not found or inactive"})
		return
	}

	b, err := h.bots.GetActive(r.Context(), botID)
	if errors.Is(err, bot.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Bot not found or inactive"})
		return
	}
	if err != nil {
		h.logger.Error("widget: load bot", "bot_id", botID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	if h.events != nil {
		source := r.Header.Get("Referer")
		if source == "" {
			source = "unknown"
		}
		h.events.RecordAsync(botID, analytics.EventWidgetLoaded, "", map[string]any{"source": source}, nil)
	}

	writeJSON(w, http.StatusOK, b.WidgetConfig())
}

// EmbedScript handles GET /embed.js.
func (h *Handler) EmbedScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(embedScript)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
