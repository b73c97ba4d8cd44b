// Package gateway is the client for the upstream chat-completion API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/botforge/chatbot-platform/pkg/logging"
)

var gatewayTracer = otel.Tracer("botforge.internal.gateway")

const errorBodyLimit = 4 << 10

// Config describes how to reach the completion gateway.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client issues streaming chat-completion requests. The bearer credential is
// injected server-side and never reaches the widget.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway: base URL required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gateway: API key required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	// The timeout bounds the wait for response headers only. A client-wide
	// timeout would also cover the body and cut long token streams mid-flight;
	// the body read is bounded by the request context instead.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Transport: transport},
		logger:  logger,
	}, nil
}

// StreamRequest is the composed payload for one chat turn.
type StreamRequest struct {
	Model       string
	Messages    []openai.ChatCompletionMessage
	Temperature float32
	MaxTokens   int32
}

// completionRequest is the wire shape. go-openai's request type omits a zero
// temperature, so the body is built here; message and delta types still come
// from the library.
type completionRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Stream      bool                           `json:"stream"`
	Temperature float32                        `json:"temperature"`
	MaxTokens   int32                          `json:"max_tokens"`
}

// StreamChatCompletion issues the streaming request and returns the raw SSE
// body on success. The caller owns the returned reader and must close it.
func (c *Client) StreamChatCompletion(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	ctx, span := gatewayTracer.Start(ctx, "gateway.stream_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("botforge.model", req.Model),
		attribute.Int("botforge.messages", len(req.Messages)),
	)

	body, err := json.Marshal(completionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		c.logger.Error("gateway error response",
			"status", resp.StatusCode,
			"body", string(raw),
			"model", req.Model,
		)
		return nil, classifyStatus(resp.StatusCode, string(raw))
	}

	return resp.Body, nil
}

func classifyStatus(status int, body string) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted
	default:
		return &UpstreamError{Status: status, Body: body}
	}
}
