package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/botforge/chatbot-platform/internal/analytics"
	"github.com/botforge/chatbot-platform/internal/api/router"
	"github.com/botforge/chatbot-platform/internal/bot"
	"github.com/botforge/chatbot-platform/internal/chat"
	appconfig "github.com/botforge/chatbot-platform/internal/config"
	"github.com/botforge/chatbot-platform/internal/conversation"
	"github.com/botforge/chatbot-platform/internal/extractor"
	"github.com/botforge/chatbot-platform/internal/gateway"
	"github.com/botforge/chatbot-platform/internal/ingest"
	"github.com/botforge/chatbot-platform/internal/knowledge"
	"github.com/botforge/chatbot-platform/internal/observability/metrics"
	"github.com/botforge/chatbot-platform/internal/widget"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatbot-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.GatewayAPIKey == "" {
		logger.Error("AI_GATEWAY_API_KEY is required")
		os.Exit(1)
	}

	ctx := context.Background()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var cache *knowledge.ContextCache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, knowledge cache disabled", "error", err)
		} else {
			cache = knowledge.NewContextCache(redisClient, cfg.KnowledgeCacheTTL)
		}
	}

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.GatewayBaseURL,
		APIKey:  cfg.GatewayAPIKey,
		Timeout: cfg.GatewayTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to create gateway client", "error", err)
		os.Exit(1)
	}

	bots := bot.NewStore(sqlDB)
	ledger := conversation.NewLedger(sqlDB, logger)
	knowledgeStore := knowledge.NewStore(pool)
	recorder := analytics.NewRecorder(pool, logger)

	chatMetrics := metrics.NewChatMetrics(nil)
	ingestMetrics := metrics.NewIngestMetrics(nil)

	crawler := extractor.NewCrawler(
		extractor.WithHTTPClient(&http.Client{Timeout: cfg.CrawlTimeout}),
		extractor.WithMaxBodyBytes(cfg.CrawlMaxBodyBytes),
	)
	ingestService := ingest.NewService(knowledgeStore, crawler, cache, recorder, ingestMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        chat.NewHandler(bots, ledger, knowledgeStore, cache, gatewayClient, recorder, chatMetrics, logger),
		IngestHandler:      ingest.NewHandler(ingestService, logger),
		WidgetHandler:      widget.NewHandler(bots, recorder, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRatePerSecond:  float64(cfg.ChatRateRPS),
		ChatBurst:          cfg.ChatRateBurst,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: chat responses stream for the lifetime of
		// the upstream token stream.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
