package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/settings"
)

// MaxContextChars caps fetched URL context, counted in characters
const MaxContextChars = 20000

// Builder dispatches on a job's grounding mode
type Builder struct {
	search  SearchProvider
	fetcher URLFetcher
	logger  *slog.Logger
}

// NewBuilder creates a context builder.
// Either collaborator may be nil if the corresponding modes are never used.
func NewBuilder(search SearchProvider, fetcher URLFetcher, logger *slog.Logger) *Builder {
	return &Builder{
		search:  search,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Build returns the grounding text for job. ok is false when the job has no
// context, in which case the raw prompt is used.
func (b *Builder) Build(ctx context.Context, job *domain.Job, creds *settings.Credentials) (text string, ok bool, err error) {
	switch job.ContextSource {
	case domain.GroundingNone, "":
		return "", false, nil

	case domain.GroundingLiveSearch:
		return b.buildSearchContext(ctx, job, creds)

	case domain.GroundingURLJSON:
		return b.buildURLContext(ctx, job, AcceptJSON)

	case domain.GroundingURLMarkdown:
		return b.buildURLContext(ctx, job, AcceptMarkdown)
	}

	return "", false, fmt.Errorf("%w: unknown grounding mode %q", domain.ErrGroundingUnavailable, job.ContextSource)
}

func (b *Builder) buildSearchContext(ctx context.Context, job *domain.Job, creds *settings.Credentials) (string, bool, error) {
	if creds == nil || creds.SearchAPIKey == "" {
		return "", false, fmt.Errorf("%w: search API key is not configured", domain.ErrGroundingUnavailable)
	}
	if b.search == nil {
		return "", false, fmt.Errorf("%w: no search provider", domain.ErrGroundingUnavailable)
	}

	query := job.Prompt
	if job.WebSearchQuery != nil && strings.TrimSpace(*job.WebSearchQuery) != "" {
		query = *job.WebSearchQuery
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false, nil
	}

	count := clamp(job.WebResultCount, domain.MinResultCount, domain.MaxResultCount, domain.DefaultResultCount)
	hours := clamp(job.WebFreshnessHours, domain.MinFreshnessHours, domain.MaxFreshnessHours, domain.DefaultFreshnessHours)
	domains := NormalizeDomains(job.PreferredDomains)

	results, err := b.search.Search(ctx, SearchRequest{
		APIKey:           creds.SearchAPIKey,
		Query:            query,
		Count:            count,
		Freshness:        FreshnessForHours(hours),
		PreferredDomains: domains,
	})
	if err != nil {
		return "", false, err
	}

	kept := FilterResults(results, domains, count)

	b.logger.Debug("Built search context",
		slog.String("job_id", job.ID),
		slog.Int("results", len(results)),
		slog.Int("kept", len(kept)),
	)

	return FormatResults(kept), true, nil
}

func (b *Builder) buildURLContext(ctx context.Context, job *domain.Job, kind AcceptKind) (string, bool, error) {
	if job.ContextURL == nil || strings.TrimSpace(*job.ContextURL) == "" {
		return "", false, fmt.Errorf("%w: context URL is required for %s", domain.ErrGroundingUnavailable, job.ContextSource)
	}
	if b.fetcher == nil {
		return "", false, fmt.Errorf("%w: no URL fetcher", domain.ErrGroundingUnavailable)
	}

	text, err := b.fetcher.Fetch(ctx, *job.ContextURL, kind)
	if err != nil {
		return "", false, err
	}

	return TruncateChars(text, MaxContextChars), true, nil
}

// TruncateChars cuts s to at most n characters without splitting a rune
func TruncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func clamp(v, lo, hi, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
