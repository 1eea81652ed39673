// Package grounding builds the optional context a job's prompt is answered from.
package grounding

import "context"

// Freshness is a coarse age bucket for search results
type Freshness string

// Freshness buckets
const (
	FreshnessDay   Freshness = "day"
	FreshnessWeek  Freshness = "week"
	FreshnessMonth Freshness = "month"
	FreshnessYear  Freshness = "year"
)

// FreshnessForHours maps a freshness window in hours to its bucket
func FreshnessForHours(hours int) Freshness {
	switch {
	case hours <= 24:
		return FreshnessDay
	case hours <= 24*7:
		return FreshnessWeek
	case hours <= 24*31:
		return FreshnessMonth
	default:
		return FreshnessYear
	}
}

// SearchRequest is one live-search query
type SearchRequest struct {
	APIKey           string
	Query            string
	Count            int
	Freshness        Freshness
	PreferredDomains []string
}

// SearchResult is one ranked search hit
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
}

// SearchProvider runs a live web search
type SearchProvider interface {
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
}

// AcceptKind is the representation requested from a context URL
type AcceptKind string

// Accept kinds
const (
	AcceptJSON     AcceptKind = "json"
	AcceptMarkdown AcceptKind = "markdown"
)

// URLFetcher retrieves a context document as text.
// JSON documents come back pretty-printed.
type URLFetcher interface {
	Fetch(ctx context.Context, url string, kind AcceptKind) (string, error)
}
