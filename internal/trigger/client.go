// Package trigger fires the batch endpoint of the API service on a cron
// cadence, standing in for an external cron provider.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/cron-agent/internal/worker"
)

// Client calls the batch endpoint with the shared bearer secret
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a trigger client for the given endpoint URL
func NewClient(url, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fire runs one batch and returns the decoded response
func (c *Client) Fire(ctx context.Context) (*worker.BatchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call batch endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("batch endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var result worker.BatchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}

	return &result, nil
}
