package domain

import (
	"time"

	"github.com/cuongbtq/cron-agent/internal/schedule"
	"github.com/lib/pq"
)

// Job is a scheduled prompt as stored in the cron_jobs table
type Job struct {
	ID     string `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Prompt string `db:"prompt" json:"prompt"`

	// Schedule
	IsRecurring      bool       `db:"is_recurring" json:"is_recurring"`
	Recurrence       *string    `db:"recurrence" json:"recurrence"`
	RecurringTime    *string    `db:"recurring_time" json:"recurring_time"`
	RecurringWeekday *int       `db:"recurring_weekday" json:"recurring_weekday"`
	RunAt            *time.Time `db:"run_at" json:"run_at"`

	// Grounding
	ContextSource     GroundingMode  `db:"context_source" json:"context_source"`
	WebSearchQuery    *string        `db:"web_search_query" json:"web_search_query"`
	WebResultCount    int            `db:"web_result_count" json:"web_result_count"`
	WebFreshnessHours int            `db:"web_freshness_hours" json:"web_freshness_hours"`
	PreferredDomains  pq.StringArray `db:"preferred_domains" json:"preferred_domains"`
	ContextURL        *string        `db:"context_url" json:"context_url"`

	// Delivery
	WebhookURL string `db:"discord_webhook_url" json:"discord_webhook_url"`

	// Runtime state
	Status       Status     `db:"status" json:"status"`
	NextRun      *time.Time `db:"next_run" json:"next_run"`
	LastRunAt    *time.Time `db:"last_run_at" json:"last_run_at"`
	LastOutput   *string    `db:"last_output" json:"last_output"`
	ClaimedUntil *time.Time `db:"claimed_until" json:"-"`
	Version      int64      `db:"version" json:"version"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Schedule returns the job's schedule spec
func (j *Job) Schedule() schedule.Schedule {
	s := schedule.Schedule{
		Recurring: j.IsRecurring,
		Weekday:   j.RecurringWeekday,
		RunAt:     j.RunAt,
	}
	if j.Recurrence != nil {
		s.Recurrence = schedule.Recurrence(*j.Recurrence)
	}
	if j.RecurringTime != nil {
		s.TimeOfDay = *j.RecurringTime
	}
	return s
}

// SetSchedule copies a schedule spec onto the job's columns
func (j *Job) SetSchedule(s schedule.Schedule) {
	j.IsRecurring = s.Recurring
	j.Recurrence = nil
	j.RecurringTime = nil
	j.RecurringWeekday = s.Weekday
	j.RunAt = s.RunAt

	if s.Recurrence != "" {
		rec := string(s.Recurrence)
		j.Recurrence = &rec
	}
	if s.TimeOfDay != "" {
		tod := s.TimeOfDay
		j.RecurringTime = &tod
	}
}

// OutcomeUpdate is the state the orchestrator persists after one execution
type OutcomeUpdate struct {
	Status     Status
	NextRun    *time.Time
	LastRunAt  *time.Time
	LastOutput string
}
