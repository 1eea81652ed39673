// Package delivery posts job output to a Discord-style webhook.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
)

// MaxBodyChars is the most output characters sent in one message
const MaxBodyChars = 1800

const maxErrorBody = 512

// Config holds webhook delivery settings
type Config struct {
	Timeout           time.Duration
	RetryAttempts     int
	RetryInterval     time.Duration
	BackoffMultiplier float64
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client delivers messages to webhooks
type Client struct {
	http        *http.Client
	retries     int
	baseDelay   time.Duration
	backoffMult float64
	logger      *slog.Logger
}

// NewClient creates a webhook client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		http:        cfg.HTTPClient,
		retries:     cfg.RetryAttempts,
		baseDelay:   cfg.RetryInterval,
		backoffMult: cfg.BackoffMultiplier,
		logger:      cfg.Logger,
	}
}

// FormatMessage renders the message content: bold title, blank line, body
// cut to MaxBodyChars characters
func FormatMessage(title, body string) string {
	return "**" + title + "**\n\n" + truncate(body, MaxBodyChars)
}

// Deliver posts the formatted message to target. Rate-limited and server
// errors are retried with exponential backoff.
func (c *Client) Deliver(ctx context.Context, target, title, body string) error {
	payload, err := json.Marshal(map[string]string{"content": FormatMessage(title, body)})
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", domain.ErrDelivery, err)
	}

	var lastErr error
	delay := c.baseDelay

	for attempt := 0; attempt <= c.retries; attempt++ {
		lastErr = c.post(ctx, target, payload)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Delivered message after retry", slog.Int("attempt", attempt+1))
			}
			return nil
		}

		if !domain.IsRetryable(lastErr) || attempt == c.retries {
			break
		}

		c.logger.Warn("Webhook delivery failed, retrying...",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.retries),
			slog.Duration("retry_after", delay),
			slog.Any("error", lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrDelivery, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * c.backoffMult)
	}

	return lastErr
}

func (c *Client) post(ctx context.Context, target string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	failure := fmt.Errorf("%w: webhook returned %d: %s", domain.ErrDelivery, resp.StatusCode, strings.TrimSpace(string(body)))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.NewRetryableError(failure)
	}
	return failure
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
