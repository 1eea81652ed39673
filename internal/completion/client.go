// Package completion calls an OpenAI-compatible chat completions endpoint.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/settings"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.2
	defaultTitle       = "Cron Agent Scheduler"
	maxErrorBody       = 512
)

// Config holds completion client settings
type Config struct {
	Referer     string
	Title       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client sends a single-message chat completion request
type Client struct {
	http        *http.Client
	referer     string
	title       string
	temperature float64
}

// NewClient creates a completion client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}

	return &Client{
		http:        cfg.HTTPClient,
		referer:     cfg.Referer,
		title:       cfg.Title,
		temperature: cfg.Temperature,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content messageContent `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a user message and returns the trimmed reply
func (c *Client) Complete(ctx context.Context, creds settings.Completion, prompt string) (string, error) {
	if creds.APIKey == "" {
		return "", fmt.Errorf("%w: model API key has not been configured", domain.ErrUpstream)
	}

	payload, err := json.Marshal(chatRequest{
		Model:       creds.Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	endpoint := strings.TrimSuffix(creds.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("X-Title", c.title)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: model returned %d: %s", domain.ErrUpstream, resp.StatusCode, snippet(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrUpstream, err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", domain.ErrUpstream)
	}

	content := parsed.Choices[0].Message.Content.Text()
	if content == "" {
		return "", fmt.Errorf("%w: model returned empty content", domain.ErrUpstream)
	}

	return content, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
