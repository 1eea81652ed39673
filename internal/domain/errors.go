package domain

import (
	"errors"

	"github.com/cuongbtq/cron-agent/internal/schedule"
)

// InvalidScheduleError is raised at intake when a schedule spec is unusable
type InvalidScheduleError = schedule.InvalidScheduleError

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when a job is not active or is already claimed
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in active status")

	// ErrGroundingUnavailable is returned when grounding is configured but cannot run,
	// for example because no search credential is configured
	ErrGroundingUnavailable = errors.New("grounding unavailable")

	// ErrContextFetch is returned when search or URL context retrieval fails
	ErrContextFetch = errors.New("context fetch failed")

	// ErrUpstream is returned when the completion engine fails or returns nothing
	ErrUpstream = errors.New("completion request failed")

	// ErrDelivery is returned when the output cannot be delivered
	ErrDelivery = errors.New("delivery failed")

	// ErrPersistence is returned when the job store is unreachable or rejects a write
	ErrPersistence = errors.New("persistence failed")

	// ErrInterrupted is returned when the caller cancels a run before it
	// finished; the job's claim has been released
	ErrInterrupted = errors.New("job interrupted")
)

// RetryableError wraps transient errors that may succeed on another attempt
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is marked retryable
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// Stage names the pipeline step an error belongs to
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrGroundingUnavailable), errors.Is(err, ErrContextFetch):
		return "context"
	case errors.Is(err, ErrUpstream):
		return "completion"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	}

	var scheduleErr *InvalidScheduleError
	if errors.As(err, &scheduleErr) {
		return "schedule"
	}
	return "unknown"
}
