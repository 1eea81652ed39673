package grounding

import (
	"fmt"
	"net/url"
	"strings"
)

// NoResultsText is used as context when search filtering leaves nothing,
// so the prompt still says that nothing was found.
const NoResultsText = "No live web results matched the filters."

// NormalizeDomains lower-cases, trims, and deduplicates domains, keeping order
func NormalizeDomains(domains []string) []string {
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))

	for _, d := range domains {
		d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	return out
}

// ParseDomainsCSV splits a comma-separated domain list
func ParseDomainsCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return NormalizeDomains(strings.Split(csv, ","))
}

// MatchesDomain reports whether rawURL is hosted at one of domains or a
// subdomain of one. An empty domain list matches everything. Malformed URLs
// never match a non-empty list.
func MatchesDomain(rawURL string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}

	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

// FilterResults keeps results matching the preferred domains, capped to limit
func FilterResults(results []SearchResult, domains []string, limit int) []SearchResult {
	filtered := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if !MatchesDomain(r.URL, domains) {
			continue
		}
		filtered = append(filtered, r)
		if limit > 0 && len(filtered) == limit {
			break
		}
	}
	return filtered
}

// FormatResults renders results as a numbered title/URL/age/snippet block
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return NoResultsText
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		age := r.Age
		if age == "" {
			age = "unknown"
		}

		blocks[i] = fmt.Sprintf("%d. %s\nURL: %s\nPublished/age: %s\nSnippet: %s", i+1, title, r.URL, age, r.Description)
	}

	return strings.Join(blocks, "\n\n")
}
