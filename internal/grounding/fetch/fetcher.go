// Package fetch retrieves context documents for URL-grounded jobs.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/grounding"
)

const (
	defaultTimeout = 20 * time.Second
	// larger bodies are rejected before any parsing
	maxBodyBytes = 4 << 20
	maxErrorBody = 512
)

var acceptHeader = map[grounding.AcceptKind]string{
	grounding.AcceptJSON:     "application/json",
	grounding.AcceptMarkdown: "text/markdown,text/plain",
}

// Fetcher is an HTTP URL fetcher
type Fetcher struct {
	http *http.Client
}

var _ grounding.URLFetcher = (*Fetcher)(nil)

// New creates a fetcher. A nil client gets a default with timeout.
func New(client *http.Client, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{http: client}
}

// Fetch performs a GET against url and returns its text.
// JSON is re-indented with two spaces. HTML served to a markdown job is
// reduced to its visible text.
func (f *Fetcher) Fetch(ctx context.Context, url string, kind grounding.AcceptKind) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrContextFetch, err)
	}
	req.Header.Set("Accept", acceptHeader[kind])

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: GET %s: %v", domain.ErrContextFetch, url, err)
	}
	defer resp.Body.Close()

	// one extra byte tells a body of exactly the limit from a larger one
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrContextFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: GET %s returned %d: %s", domain.ErrContextFetch, url, resp.StatusCode, snippet(body))
	}

	if len(body) > maxBodyBytes {
		return "", fmt.Errorf("%w: GET %s response too large (over %d bytes)", domain.ErrContextFetch, url, maxBodyBytes)
	}

	switch kind {
	case grounding.AcceptJSON:
		return prettyJSON(body)
	default:
		if isHTML(resp.Header.Get("Content-Type")) {
			return htmlText(body)
		}
		return string(body), nil
	}
}

func prettyJSON(body []byte) (string, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(body), "", "  "); err != nil {
		return "", fmt.Errorf("%w: response is not valid JSON: %v", domain.ErrContextFetch, err)
	}
	return out.String(), nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func htmlText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", domain.ErrContextFetch, err)
	}

	doc.Find("script, style, noscript").Remove()

	lines := make([]string, 0)
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
