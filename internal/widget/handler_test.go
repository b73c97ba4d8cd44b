package widget

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/chatbot-platform/internal/bot"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

func newWidgetFixture(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHandler(bot.NewStore(db), nil, logging.New("error")), mock
}

func widgetBotRow(id uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "workspace_id", "name", "description", "status",
		"system_prompt", "welcome_message", "model",
		"temperature", "max_tokens", "business_only",
		"allowed_topics", "blocked_keywords",
		"widget_color", "widget_position", "widget_avatar_url", "widget_title",
		"created_at", "updated_at",
	}).AddRow(
		id, uuid.New(), "Support Bot", "", bot.StatusActive,
		"internal system prompt", "Welcome!", "google/gemini-2.5-flash",
		nil, nil, true,
		pq.Array([]string{"billing"}), pq.Array([]string{"secret"}),
		"#6366f1", "bottom-right", "", "Support",
		now, now,
	)
}

func TestConfigReturnsPublicProjection(t *testing.T) {
	h, mock := newWidgetFixture(t)
	botID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM bots WHERE id = \$1 AND status = \$2`).
		WithArgs(botID, bot.StatusActive).
		WillReturnRows(widgetBotRow(botID))

	req := httptest.NewRequest(http.MethodGet, "/v1/widget/config?botId="+botID.String(), nil)
	rec := httptest.NewRecorder()
	h.Config(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, botID.String(), resp["id"])
	assert.Equal(t, "Support Bot", resp["name"])
	assert.Equal(t, "Welcome!", resp["welcome_message"])
	assert.Equal(t, "#6366f1", resp["widget_color"])
	assert.Equal(t, "active", resp["status"])

	// Policy and prompt fields never leak to the public surface.
	assert.NotContains(t, rec.Body.String(), "internal system prompt")
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestConfigInactiveBotReturns404(t *testing.T) {
	h, mock := newWidgetFixture(t)
	botID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM bots WHERE id = \$1 AND status = \$2`).
		WithArgs(botID, bot.StatusActive).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/v1/widget/config?botId="+botID.String(), nil)
	rec := httptest.NewRecorder()
	h.Config(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bot not found or inactive", resp["error"])
}

func TestConfigMissingBotID(t *testing.T) {
	h, _ := newWidgetFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/widget/config", nil)
	rec := httptest.NewRecorder()
	h.Config(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigMalformedBotIDLooksAbsent(t *testing.T) {
	h, _ := newWidgetFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/widget/config?botId=not-a-uuid", nil)
	rec := httptest.NewRecorder()
	h.Config(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmbedScriptServed(t *testing.T) {
	h, _ := newWidgetFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/embed.js", nil)
	rec := httptest.NewRecorder()
	h.EmbedScript(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "data-bot-id")
}
