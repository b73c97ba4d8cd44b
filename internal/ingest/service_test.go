package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/chatbot-platform/internal/extractor"
	"github.com/botforge/chatbot-platform/internal/knowledge"
	"github.com/botforge/chatbot-platform/pkg/logging"
)

type serviceFixture struct {
	service *Service
	mock    pgxmock.PgxPoolIface
	redis   *miniredis.Miniredis
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := knowledge.NewContextCache(client, 0)

	svc := NewService(
		knowledge.NewStore(mock),
		extractor.NewCrawler(),
		cache,
		nil, nil,
		logging.New("error"),
	)
	return &serviceFixture{service: svc, mock: mock, redis: mr}
}

func TestCrawlHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Pricing</title></head><body><p>Plans start at $10.</p></body></html>"))
	}))
	defer srv.Close()

	f := newServiceFixture(t)
	botID, knowledgeID := uuid.New(), uuid.New()

	// Cached context for the bot must be dropped after the crawl.
	require.NoError(t, f.redis.Set("kb:ctx:"+botID.String(), `[{"title":"old","content":"x"}]`))

	f.mock.ExpectExec("UPDATE knowledge_base SET metadata").
		WithArgs([]byte(`{"status":"crawling"}`), knowledgeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec("UPDATE knowledge_base SET").
		WithArgs("Pricing", "Plans start at $10.", 1, pgxmock.AnyArg(), knowledgeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := f.service.Crawl(context.Background(), botID, knowledgeID, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Pricing", res.Title)
	assert.Equal(t, len("Plans start at $10."), res.ContentLength)
	assert.Equal(t, 1, res.Chunks)

	assert.False(t, f.redis.Exists("kb:ctx:"+botID.String()))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCrawlTitleFallsBackToHostname(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no title here</body></html>"))
	}))
	defer srv.Close()

	f := newServiceFixture(t)
	botID, knowledgeID := uuid.New(), uuid.New()

	f.mock.ExpectExec("UPDATE knowledge_base SET metadata").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec("UPDATE knowledge_base SET").
		WithArgs("127.0.0.1", "no title here", 1, pgxmock.AnyArg(), knowledgeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := f.service.Crawl(context.Background(), botID, knowledgeID, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", res.Title)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCrawlFetchFailureRecordedOnItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := newServiceFixture(t)
	botID, knowledgeID := uuid.New(), uuid.New()

	f.mock.ExpectExec("UPDATE knowledge_base SET metadata").
		WithArgs([]byte(`{"status":"crawling"}`), knowledgeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec("UPDATE knowledge_base SET metadata").
		WithArgs(pgxmock.AnyArg(), knowledgeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := f.service.Crawl(context.Background(), botID, knowledgeID, srv.URL)
	require.Error(t, err)

	var fetchErr *extractor.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusGone, fetchErr.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCrawlUnknownItemReturnsNotFound(t *testing.T) {
	f := newServiceFixture(t)
	knowledgeID := uuid.New()

	f.mock.ExpectExec("UPDATE knowledge_base SET metadata").
		WithArgs(pgxmock.AnyArg(), knowledgeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := f.service.Crawl(context.Background(), uuid.New(), knowledgeID, "http://example.com")
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}

func TestCrawlIdempotentForStableContent(t *testing.T) {
	body := "<html><head><title>Docs</title></head><body>" + strings.Repeat("word ", 200) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newServiceFixture(t)
	botID, knowledgeID := uuid.New(), uuid.New()

	var results []Result
	for i := 0; i < 2; i++ {
		f.mock.ExpectExec("UPDATE knowledge_base SET metadata").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		f.mock.ExpectExec("UPDATE knowledge_base SET").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		res, err := f.service.Crawl(context.Background(), botID, knowledgeID, srv.URL)
		require.NoError(t, err)
		results = append(results, res)
	}

	assert.Equal(t, results[0].ContentLength, results[1].ContentLength)
	assert.Equal(t, results[0].Chunks, results[1].Chunks)
}
