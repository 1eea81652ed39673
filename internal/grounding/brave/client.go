// Package brave implements live web search against the Brave Search API.
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/grounding"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Brave web search endpoint
	DefaultBaseURL = "https://api.search.brave.com/res/v1/web/search"

	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

var freshnessParam = map[grounding.Freshness]string{
	grounding.FreshnessDay:   "pd",
	grounding.FreshnessWeek:  "pw",
	grounding.FreshnessMonth: "pm",
	grounding.FreshnessYear:  "py",
}

// Config holds search client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Cache             Cache
	CacheTTL          time.Duration
	Logger            *slog.Logger
}

// Client queries Brave Search. It is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

var _ grounding.SearchProvider = (*Client)(nil)

// NewClient creates a search client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     cfg.HTTPClient,
		limiter:  rate.NewLimiter(limit, burst),
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
	}
}

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs req and returns results in provider rank order
func (c *Client) Search(ctx context.Context, req grounding.SearchRequest) ([]grounding.SearchResult, error) {
	key := CacheKey(req)

	if c.cache != nil {
		cached, hit, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Search cache read failed", slog.String("error", err.Error()))
		} else if hit {
			c.logger.Debug("Search cache hit", slog.String("query", req.Query))
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrContextFetch, err)
	}

	results, err := c.doSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, results, c.cacheTTL); err != nil {
			c.logger.Warn("Search cache write failed", slog.String("error", err.Error()))
		}
	}

	return results, nil
}

func (c *Client) doSearch(ctx context.Context, req grounding.SearchRequest) ([]grounding.SearchResult, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("count", strconv.Itoa(req.Count))
	if f, ok := freshnessParam[req.Freshness]; ok {
		params.Set("freshness", f)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build search request: %v", domain.ErrContextFetch, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", req.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %v", domain.ErrContextFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read search response: %v", domain.ErrContextFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: search returned %d: %s", domain.ErrContextFetch, resp.StatusCode, snippet(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", domain.ErrContextFetch, err)
	}

	results := make([]grounding.SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		age := r.PageAge
		if age == "" {
			age = r.Age
		}
		results = append(results, grounding.SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Age:         age,
		})
	}

	return results, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
