package brave

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/grounding"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "web": {
    "results": [
      {"title": "First", "url": "https://reuters.com/a", "description": "one", "age": "3 hours ago", "page_age": "2024-01-03T05:00:00"},
      {"title": "Second", "url": "https://apnews.com/b", "description": "two", "age": "1 day ago"}
    ]
  }
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Search(t *testing.T) {
	var gotQuery, gotCount, gotFreshness, gotToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCount = r.URL.Query().Get("count")
		gotFreshness = r.URL.Query().Get("freshness")
		gotToken = r.Header.Get("X-Subscription-Token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Logger: discardLogger()})

	results, err := c.Search(context.Background(), grounding.SearchRequest{
		APIKey:    "secret",
		Query:     "markets today",
		Count:     5,
		Freshness: grounding.FreshnessWeek,
	})
	require.NoError(t, err)

	assert.Equal(t, "markets today", gotQuery)
	assert.Equal(t, "5", gotCount)
	assert.Equal(t, "pw", gotFreshness)
	assert.Equal(t, "secret", gotToken)

	require.Len(t, results, 2)
	assert.Equal(t, grounding.SearchResult{
		Title:       "First",
		URL:         "https://reuters.com/a",
		Description: "one",
		Age:         "2024-01-03T05:00:00",
	}, results[0])
	assert.Equal(t, "1 day ago", results[1].Age)
}

func TestClient_Search_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Logger: discardLogger()})

	_, err := c.Search(context.Background(), grounding.SearchRequest{APIKey: "k", Query: "q", Count: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContextFetch)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Search_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Logger: discardLogger()})

	_, err := c.Search(context.Background(), grounding.SearchRequest{APIKey: "k", Query: "q", Count: 5})
	assert.ErrorIs(t, err, domain.ErrContextFetch)
}

func TestClient_Search_CachesResults(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewClient(Config{
		BaseURL:  srv.URL,
		Cache:    NewRedisCache(rdb),
		CacheTTL: time.Minute,
		Logger:   discardLogger(),
	})

	req := grounding.SearchRequest{APIKey: "k", Query: "Markets", Count: 5, Freshness: grounding.FreshnessDay}

	first, err := c.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists(CacheKey(req)))

	mr.FastForward(2 * time.Minute)
	_, err = c.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Search_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1, Logger: discardLogger()})
	req := grounding.SearchRequest{APIKey: "k", Query: "q", Count: 1}

	_, err := c.Search(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Search(ctx, req)
	assert.ErrorIs(t, err, domain.ErrContextFetch)
}

func TestCacheKey(t *testing.T) {
	base := grounding.SearchRequest{APIKey: "a", Query: "Query", Count: 5, Freshness: grounding.FreshnessDay}

	sameButKey := base
	sameButKey.APIKey = "b"
	sameButKey.Query = "  query "
	assert.Equal(t, CacheKey(base), CacheKey(sameButKey))

	otherCount := base
	otherCount.Count = 6
	assert.NotEqual(t, CacheKey(base), CacheKey(otherCount))

	otherFreshness := base
	otherFreshness.Freshness = grounding.FreshnessYear
	assert.NotEqual(t, CacheKey(base), CacheKey(otherFreshness))
}
