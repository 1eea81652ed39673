package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/cron-agent/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "grounding", err: fmt.Errorf("%w: no key", ErrGroundingUnavailable), expected: "context"},
		{name: "context fetch", err: fmt.Errorf("%w: 404", ErrContextFetch), expected: "context"},
		{name: "upstream", err: fmt.Errorf("%w: 500", ErrUpstream), expected: "completion"},
		{name: "delivery", err: NewRetryableError(fmt.Errorf("%w: 429", ErrDelivery)), expected: "delivery"},
		{name: "persistence", err: fmt.Errorf("%w: conn refused", ErrPersistence), expected: "persistence"},
		{name: "interrupted", err: NewRetryableError(fmt.Errorf("%w: context canceled", ErrInterrupted)), expected: "interrupted"},
		{name: "schedule", err: fmt.Errorf("recompute: %w", &InvalidScheduleError{Reason: "x"}), expected: "schedule"},
		{name: "unknown", err: errors.New("boom"), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stage(tt.err))
		})
	}
}

func TestRetryableError(t *testing.T) {
	base := fmt.Errorf("%w: 503", ErrDelivery)
	err := NewRetryableError(base)

	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, ErrDelivery))
	assert.Equal(t, "retryable error: delivery failed: 503", err.Error())
	assert.False(t, IsRetryable(base))
}

func TestJob_ScheduleRoundTrip(t *testing.T) {
	weekday := 4
	in := schedule.Schedule{
		Recurring:  true,
		Recurrence: schedule.Weekly,
		TimeOfDay:  "08:15",
		Weekday:    &weekday,
	}

	var job Job
	job.SetSchedule(in)

	require.NotNil(t, job.Recurrence)
	assert.Equal(t, "weekly", *job.Recurrence)
	assert.Equal(t, in, job.Schedule())

	runAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job.SetSchedule(schedule.Schedule{RunAt: &runAt})
	assert.Nil(t, job.Recurrence)
	assert.Nil(t, job.RecurringTime)
	assert.False(t, job.IsRecurring)
	assert.Equal(t, &runAt, job.RunAt)
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusActive.Editable())
	assert.False(t, StatusRunning.Editable())
	assert.False(t, Status("queued").Valid())
	assert.True(t, GroundingURLJSON.NeedsURL())
	assert.False(t, GroundingLiveSearch.NeedsURL())
}
