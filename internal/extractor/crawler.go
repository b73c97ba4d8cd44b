package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	crawlUserAgent = "Mozilla/5.0 (compatible; ChatbotCrawler/1.0)"
	acceptHeader   = "text/html,application/xhtml+xml"

	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 3 << 20
)

// FetchError is a classified ingestion fetch failure. Its message is stored
// on the knowledge item so the dashboard can show why a crawl failed.
type FetchError struct {
	URL    string
	Status int // zero when the request never got a response
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to fetch URL: %d", e.Status)
	}
	return fmt.Sprintf("failed to fetch URL: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Crawler fetches web pages and extracts their text content.
type Crawler struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) CrawlerOption {
	return func(c *Crawler) {
		c.httpClient = client
	}
}

// WithMaxBodyBytes bounds how much of a response body is read.
func WithMaxBodyBytes(n int64) CrawlerOption {
	return func(c *Crawler) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// NewCrawler creates a page crawler.
func NewCrawler(opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the page and runs Extract over its body. Network failures
// and non-2xx statuses come back as *FetchError.
func (c *Crawler) Fetch(ctx context.Context, target string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", crawlUserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &FetchError{URL: target, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return Result{}, &FetchError{URL: target, Err: err}
	}

	return Extract(string(body)), nil
}

// Hostname returns the host of a URL for use as a title fallback.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if host := parsed.Hostname(); host != "" {
		return host
	}
	return rawURL
}
