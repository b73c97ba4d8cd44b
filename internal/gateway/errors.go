package gateway

import (
	"errors"
	"fmt"
)

// Classified upstream failures. The chat handler maps these to HTTP statuses
// and user-facing strings; raw upstream bodies are logged, never surfaced.
var (
	ErrRateLimited    = errors.New("gateway: upstream rate limited")
	ErrQuotaExhausted = errors.New("gateway: upstream quota exhausted")
)

// UpstreamError covers any other non-2xx gateway response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway: upstream returned status %d", e.Status)
}
