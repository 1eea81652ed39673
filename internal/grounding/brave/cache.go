package brave

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/cron-agent/internal/grounding"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "cron-agent:search:"

// Cache stores search results between identical queries
type Cache interface {
	Get(ctx context.Context, key string) ([]grounding.SearchResult, bool, error)
	Set(ctx context.Context, key string, results []grounding.SearchResult, ttl time.Duration) error
}

// CacheKey derives a stable key from the request fields that affect results.
// The API key is excluded.
func CacheKey(req grounding.SearchRequest) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		strings.ToLower(strings.TrimSpace(req.Query)),
		strconv.Itoa(req.Count),
		string(req.Freshness),
	}, "|")))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// RedisCache is a Cache backed by Redis
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps a Redis client
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns cached results for key, if any
func (c *RedisCache) Get(ctx context.Context, key string) ([]grounding.SearchResult, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var results []grounding.SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return results, true, nil
}

// Set stores results under key with ttl
func (c *RedisCache) Set(ctx context.Context, key string, results []grounding.SearchResult, ttl time.Duration) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
