package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://ai.gateway.lovable.dev/v1", cfg.GatewayBaseURL)
	assert.Equal(t, 120*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 15*time.Second, cfg.CrawlTimeout)
	assert.Equal(t, int64(3<<20), cfg.CrawlMaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("AI_GATEWAY_URL", "http://localhost:4000/v1")
	t.Setenv("AI_GATEWAY_TIMEOUT", "30s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "http://localhost:4000/v1", cfg.GatewayBaseURL)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestGetEnvAsDurationInvalid(t *testing.T) {
	t.Setenv("AI_GATEWAY_TIMEOUT", "not-a-duration")
	cfg := Load()
	assert.Equal(t, 120*time.Second, cfg.GatewayTimeout)
}
