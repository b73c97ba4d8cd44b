// Package router assembles the HTTP surface: the chat stream, the
// crawl trigger, and the public widget endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/botforge/chatbot-platform/internal/chat"
	httpmiddleware "github.com/botforge/chatbot-platform/internal/http/middleware"
	"github.com/botforge/chatbot-platform/internal/ingest"
	"github.com/botforge/chatbot-platform/internal/widget"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *chat.Handler
	IngestHandler      *ingest.Handler
	WidgetHandler      *widget.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-IP request rate for the chat endpoint; zero disables limiting.
	ChatRatePerSecond float64
	ChatBurst         int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WidgetHandler != nil {
		r.Get("/embed.js", cfg.WidgetHandler.EmbedScript)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.ChatHandler != nil {
			chatRoute := v1.With()
			if cfg.ChatRatePerSecond > 0 {
				chatRoute = v1.With(httpmiddleware.RateLimit(cfg.ChatRatePerSecond, cfg.ChatBurst))
			}
			chatRoute.Post("/chat", cfg.ChatHandler.ServeChat)
		}
		if cfg.IngestHandler != nil {
			v1.Post("/knowledge/crawl", cfg.IngestHandler.Crawl)
		}
		if cfg.WidgetHandler != nil {
			v1.Get("/widget/config", cfg.WidgetHandler.Config)
		}
	})

	return r
}
