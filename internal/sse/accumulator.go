package sse

import (
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Accumulator folds streamed completion payloads into the full
// assistant reply. Malformed payloads are skipped, matching how
// browser clients tolerate partial provider glitches.
type Accumulator struct {
	sb      strings.Builder
	skipped int
}

// Consume parses one data payload and appends its delta content.
func (a *Accumulator) Consume(payload string) {
	var resp openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		a.skipped++
		return
	}
	if len(resp.Choices) == 0 {
		return
	}
	a.sb.WriteString(resp.Choices[0].Delta.Content)
}

// Text returns the accumulated assistant reply so far.
func (a *Accumulator) Text() string { return a.sb.String() }

// Skipped reports how many payloads failed to parse.
func (a *Accumulator) Skipped() int { return a.skipped }
