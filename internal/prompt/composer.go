// Package prompt assembles the model-facing system instruction from bot
// persona, retrieved knowledge, and policy constraints.
package prompt

import (
	"strings"

	"github.com/botforge/chatbot-platform/internal/bot"
	"github.com/botforge/chatbot-platform/internal/knowledge"
)

const defaultPersona = "You are a helpful AI assistant."

// Compose builds the system instruction. Policy layers are additive
// instructions to the model, not enforced constraints; this is a soft
// boundary and documented as such.
func Compose(b *bot.Bot, snippets []knowledge.Snippet) string {
	var sb strings.Builder

	persona := strings.TrimSpace(b.SystemPrompt)
	if persona == "" {
		persona = defaultPersona
	}
	sb.WriteString(persona)

	if len(snippets) > 0 {
		pairs := make([]string, 0, len(snippets))
		for _, s := range snippets {
			pairs = append(pairs, s.Title+": "+s.Content)
		}
		sb.WriteString("\n\nUse the following knowledge base to answer questions:\n")
		sb.WriteString(strings.Join(pairs, "\n\n"))
	}

	if b.BusinessOnly {
		sb.WriteString("\n\nIMPORTANT: Only respond to questions related to business topics. Politely decline to answer personal, off-topic, or inappropriate questions.")
	}

	if len(b.AllowedTopics) > 0 {
		sb.WriteString("\n\nOnly discuss these topics: ")
		sb.WriteString(strings.Join(b.AllowedTopics, ", "))
		sb.WriteString(". For other topics, politely redirect the conversation.")
	}

	if len(b.BlockedKeywords) > 0 {
		sb.WriteString("\n\nDo not discuss or mention anything related to: ")
		sb.WriteString(strings.Join(b.BlockedKeywords, ", "))
		sb.WriteString(".")
	}

	return sb.String()
}
