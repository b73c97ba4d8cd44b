package bot

import (
	"time"

	"github.com/google/uuid"
)

// Bot lifecycle status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDraft    = "draft"
)

// Generation defaults applied when a bot leaves a parameter unset.
const (
	DefaultModel       = "google/gemini-2.5-flash"
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = 1024
)

// Bot is a configured chatbot: persona, policy, and generation parameters.
// Identity is immutable; configuration is mutated through the dashboard,
// which is outside this service.
type Bot struct {
	ID              uuid.UUID
	WorkspaceID     uuid.UUID
	Name            string
	Description     string
	Status          string
	SystemPrompt    string
	WelcomeMessage  string
	Model           string
	Temperature     *float32
	MaxTokens       *int32
	BusinessOnly    bool
	AllowedTopics   []string
	BlockedKeywords []string
	WidgetColor     string
	WidgetPosition  string
	WidgetAvatarURL string
	WidgetTitle     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GenerationModel returns the configured model or the platform default.
func (b *Bot) GenerationModel() string {
	if b.Model == "" {
		return DefaultModel
	}
	return b.Model
}

// GenerationTemperature returns the configured temperature clamped to [0,1],
// or the default when unset or out of range.
func (b *Bot) GenerationTemperature() float32 {
	if b.Temperature == nil {
		return DefaultTemperature
	}
	t := *b.Temperature
	if t < 0 || t > 1 {
		return DefaultTemperature
	}
	return t
}

// GenerationMaxTokens returns the configured token budget or the default.
func (b *Bot) GenerationMaxTokens() int32 {
	if b.MaxTokens == nil || *b.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return *b.MaxTokens
}

// IsActive reports whether the bot accepts traffic.
func (b *Bot) IsActive() bool {
	return b.Status == StatusActive
}

// WidgetConfig is the reduced public projection served to the embed script.
type WidgetConfig struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	WelcomeMessage  string    `json:"welcome_message,omitempty"`
	WidgetColor     string    `json:"widget_color,omitempty"`
	WidgetPosition  string    `json:"widget_position,omitempty"`
	WidgetAvatarURL string    `json:"widget_avatar_url,omitempty"`
	WidgetTitle     string    `json:"widget_title,omitempty"`
	Status          string    `json:"status"`
}

// WidgetConfig projects the bot fields that are safe to expose publicly.
func (b *Bot) WidgetConfig() WidgetConfig {
	return WidgetConfig{
		ID:              b.ID,
		Name:            b.Name,
		WelcomeMessage:  b.WelcomeMessage,
		WidgetColor:     b.WidgetColor,
		WidgetPosition:  b.WidgetPosition,
		WidgetAvatarURL: b.WidgetAvatarURL,
		WidgetTitle:     b.WidgetTitle,
		Status:          b.Status,
	}
}
