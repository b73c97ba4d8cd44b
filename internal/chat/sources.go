package chat

import (
	"strings"

	"github.com/botforge/chatbot-platform/internal/knowledge"
)

const maxSources = 3

// attributeSources picks up to three knowledge titles whose content
// shares a word with the user message. Best effort: a cosmetic hint
// for the widget, not a citation mechanism.
func attributeSources(userMessage string, snippets []knowledge.Snippet) []string {
	words := strings.Fields(strings.ToLower(userMessage))
	if len(words) == 0 {
		return nil
	}

	var titles []string
	for _, s := range snippets {
		content := strings.ToLower(s.Content)
		for _, w := range words {
			if len(w) < 3 {
				continue
			}
			if strings.Contains(content, w) {
				titles = append(titles, s.Title)
				break
			}
		}
		if len(titles) == maxSources {
			break
		}
	}
	return titles
}
