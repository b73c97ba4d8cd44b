package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat pipeline.
type ChatMetrics struct {
	requestsTotal  *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	contextItems   prometheus.Histogram
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total chat completion requests",
		}, []string{"status"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "chat",
			Name:      "upstream_errors_total",
			Help:      "Total gateway errors by class",
		}, []string{"class"}),
		streamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "chat",
			Name:      "stream_duration_seconds",
			Help:      "Wall time from request start until stream end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		contextItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "chat",
			Name:      "context_snippets",
			Help:      "Knowledge snippets injected per request",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.upstreamErrors, m.streamDuration, m.contextItems)
	return m
}

func (m *ChatMetrics) ObserveRequest(status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(status).Inc()
	m.streamDuration.WithLabelValues(status).Observe(seconds)
}

func (m *ChatMetrics) ObserveUpstreamError(class string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(class).Inc()
}

func (m *ChatMetrics) ObserveContextSize(snippets int) {
	if m == nil {
		return
	}
	m.contextItems.Observe(float64(snippets))
}

// IngestMetrics exposes counters/histograms for the crawl pipeline.
type IngestMetrics struct {
	crawlsTotal   *prometheus.CounterVec
	crawlDuration prometheus.Histogram
	contentBytes  prometheus.Histogram
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		crawlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botforge",
			Subsystem: "ingest",
			Name:      "crawls_total",
			Help:      "Total crawl attempts",
		}, []string{"status"}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "ingest",
			Name:      "crawl_duration_seconds",
			Help:      "Time spent fetching and extracting a page",
			Buckets:   prometheus.DefBuckets,
		}),
		contentBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "botforge",
			Subsystem: "ingest",
			Name:      "content_chars",
			Help:      "Extracted content length per crawl",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.crawlsTotal, m.crawlDuration, m.contentBytes)
	return m
}

func (m *IngestMetrics) ObserveCrawl(status string, seconds float64) {
	if m == nil {
		return
	}
	m.crawlsTotal.WithLabelValues(status).Inc()
	m.crawlDuration.Observe(seconds)
}

func (m *IngestMetrics) ObserveContentLength(chars int) {
	if m == nil {
		return
	}
	m.contentBytes.Observe(float64(chars))
}
