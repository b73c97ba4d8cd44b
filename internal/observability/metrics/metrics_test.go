package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestChatMetricsGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)

	m.ObserveRequest("ok", 1.2)
	m.ObserveRequest("ok", 0.4)
	m.ObserveRequest("rate_limited", 0.1)
	m.ObserveUpstreamError("rate_limited")
	m.ObserveContextSize(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	req := findFamily(t, families, "botforge_chat_requests_total")
	var okCount float64
	for _, metric := range req.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "status" && label.GetValue() == "ok" {
				okCount = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), okCount)

	dur := findFamily(t, families, "botforge_chat_stream_duration_seconds")
	assert.Equal(t, dto.MetricType_HISTOGRAM, dur.GetType())

	snips := findFamily(t, families, "botforge_chat_context_snippets")
	assert.Equal(t, uint64(1), snips.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestIngestMetricsGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngestMetrics(reg)

	m.ObserveCrawl("processed", 0.8)
	m.ObserveCrawl("failed", 0.2)
	m.ObserveContentLength(50000)

	families, err := reg.Gather()
	require.NoError(t, err)

	crawls := findFamily(t, families, "botforge_ingest_crawls_total")
	assert.Len(t, crawls.GetMetric(), 2)

	chars := findFamily(t, families, "botforge_ingest_content_chars")
	assert.Equal(t, float64(50000), chars.GetMetric()[0].GetHistogram().GetSampleSum())
}

func TestMetricsNilSafe(t *testing.T) {
	var c *ChatMetrics
	c.ObserveRequest("ok", 0.1)
	c.ObserveUpstreamError("quota")
	c.ObserveContextSize(1)

	var i *IngestMetrics
	i.ObserveCrawl("processed", 0.1)
	i.ObserveContentLength(10)
}
