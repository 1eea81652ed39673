package grounding

import (
	"strings"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ComposeGroundedPrompt wraps basePrompt with the context block and the
// instructions to answer only from it. now is stamped in UTC.
func ComposeGroundedPrompt(basePrompt, context string, now time.Time) string {
	return strings.Join([]string{
		"Current UTC timestamp: " + now.UTC().Format(timestampLayout),
		"You must answer using only the provided live web context below.",
		"If a requested fact is missing from context, say it is unavailable.",
		"Include source URLs in your answer.",
		"",
		"LIVE WEB CONTEXT:",
		context,
		"",
		"USER REQUEST:",
		basePrompt,
	}, "\n")
}
