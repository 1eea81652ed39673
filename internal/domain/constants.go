package domain

// Status is the runtime state of a job
type Status string

// Job status constants
const (
	StatusActive    Status = "active"
	StatusRunning   Status = "running" // claimed by an invocation, lease in claimed_until
	StatusPaused    Status = "paused"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRunning, StatusPaused, StatusError, StatusCompleted:
		return true
	}
	return false
}

// Editable reports whether s can be set through the API.
// running is owned by the scheduler.
func (s Status) Editable() bool {
	return s.Valid() && s != StatusRunning
}

// GroundingMode selects where a job's context comes from
type GroundingMode string

// Grounding modes
const (
	GroundingNone        GroundingMode = "none"
	GroundingLiveSearch  GroundingMode = "live_search"
	GroundingURLJSON     GroundingMode = "url_json"
	GroundingURLMarkdown GroundingMode = "url_markdown"
)

// Valid reports whether m is a known grounding mode
func (m GroundingMode) Valid() bool {
	switch m {
	case GroundingNone, GroundingLiveSearch, GroundingURLJSON, GroundingURLMarkdown:
		return true
	}
	return false
}

// NeedsURL reports whether the mode reads from a context URL
func (m GroundingMode) NeedsURL() bool {
	return m == GroundingURLJSON || m == GroundingURLMarkdown
}

// Grounding defaults and bounds
const (
	DefaultResultCount    = 5
	MinResultCount        = 1
	MaxResultCount        = 10
	DefaultFreshnessHours = 72
	MinFreshnessHours     = 1
	MaxFreshnessHours     = 720
)

// Outcome is the result of one job pipeline run
type Outcome string

// Outcomes
const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)
