package ingest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/botforge/chatbot-platform/internal/knowledge"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

// Handler exposes the crawl pipeline over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the ingestion handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("ingest: service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type crawlRequest struct {
	URL         string `json:"url"`
	BotID       string `json:"botId"`
	KnowledgeID string `json:"knowledgeId"`
}

type crawlResponse struct {
	Success       bool   `json:"success"`
	Title         string `json:"title"`
	ContentLength int    `json:"contentLength"`
	Chunks        int    `json:"chunks"`
}

// Crawl handles POST /v1/knowledge/crawl.
func (h *Handler) Crawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	botID, err := uuid.Parse(strings.TrimSpace(req.BotID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid botId"})
		return
	}
	knowledgeID, err := uuid.Parse(strings.TrimSpace(req.KnowledgeID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid knowledgeId"})
		return
	}
	target := strings.TrimSpace(req.URL)
	if parsed, err := url.Parse(target); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid url"})
		return
	}

	result, err := h.service.Crawl(r.Context(), botID, knowledgeID, target)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Knowledge item not found"})
			return
		}
		h.logger.Error("ingest: crawl failed", "knowledge_id", knowledgeID, "url", target, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, crawlResponse{
		Success:       true,
		Title:         result.Title,
		ContentLength: result.ContentLength,
		Chunks:        result.Chunks,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
