package dto

import (
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
)

// JobRequest is the body of job create and full update requests
type JobRequest struct {
	Title  string `json:"title" binding:"required,max=200"`
	Prompt string `json:"prompt" binding:"required"`

	IsRecurring      bool       `json:"is_recurring"`
	Recurrence       string     `json:"recurrence"`
	RecurringTime    string     `json:"recurring_time"`
	RecurringWeekday *int       `json:"recurring_weekday" binding:"omitempty,min=0,max=6"`
	RunAt            *time.Time `json:"run_at"`

	ContextSource       string   `json:"context_source" binding:"omitempty,oneof=none live_search url_json url_markdown"`
	WebSearchQuery      string   `json:"web_search_query"`
	WebResultCount      *int     `json:"web_result_count" binding:"omitempty,min=1,max=10"`
	WebFreshnessHours   *int     `json:"web_freshness_hours" binding:"omitempty,min=1,max=720"`
	PreferredDomains    []string `json:"preferred_domains"`
	PreferredDomainsCSV string   `json:"preferred_domains_csv"`
	ContextURL          string   `json:"context_url" binding:"omitempty,url"`

	DiscordWebhookURL string `json:"discord_webhook_url" binding:"required,url"`

	// Only honoured on update; new jobs always start active
	Status string `json:"status" binding:"omitempty,oneof=active paused error completed"`
}

// ListJobsRequest holds job listing query parameters
type ListJobsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=active running paused error completed"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is one page of jobs
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the API representation of a job
type JobDTO struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`

	IsRecurring      bool    `json:"is_recurring"`
	Recurrence       *string `json:"recurrence"`
	RecurringTime    *string `json:"recurring_time"`
	RecurringWeekday *int    `json:"recurring_weekday"`
	RunAt            *string `json:"run_at"`

	ContextSource     string   `json:"context_source"`
	WebSearchQuery    *string  `json:"web_search_query"`
	WebResultCount    int      `json:"web_result_count"`
	WebFreshnessHours int      `json:"web_freshness_hours"`
	PreferredDomains  []string `json:"preferred_domains"`
	ContextURL        *string  `json:"context_url"`

	DiscordWebhookURL string `json:"discord_webhook_url"`

	Status     string  `json:"status"`
	NextRun    *string `json:"next_run"`
	LastRunAt  *string `json:"last_run_at"`
	LastOutput *string `json:"last_output"`
	Version    int64   `json:"version"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// NewJobDTO converts a stored job to its API form
func NewJobDTO(job *domain.Job) JobDTO {
	domains := []string(job.PreferredDomains)
	if domains == nil {
		domains = []string{}
	}

	return JobDTO{
		ID:                job.ID,
		Title:             job.Title,
		Prompt:            job.Prompt,
		IsRecurring:       job.IsRecurring,
		Recurrence:        job.Recurrence,
		RecurringTime:     job.RecurringTime,
		RecurringWeekday:  job.RecurringWeekday,
		RunAt:             formatTime(job.RunAt),
		ContextSource:     string(job.ContextSource),
		WebSearchQuery:    job.WebSearchQuery,
		WebResultCount:    job.WebResultCount,
		WebFreshnessHours: job.WebFreshnessHours,
		PreferredDomains:  domains,
		ContextURL:        job.ContextURL,
		DiscordWebhookURL: job.WebhookURL,
		Status:            string(job.Status),
		NextRun:           formatTime(job.NextRun),
		LastRunAt:         formatTime(job.LastRunAt),
		LastOutput:        job.LastOutput,
		Version:           job.Version,
		CreatedAt:         job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// SettingsRequest updates completion settings and optionally the API keys.
// Omitted keys keep their stored value.
type SettingsRequest struct {
	ModelBaseURL string  `json:"model_base_url" binding:"required,url"`
	ModelName    string  `json:"model_name" binding:"required"`
	ModelAPIKey  *string `json:"model_api_key" binding:"omitempty,min=1"`
	BraveAPIKey  *string `json:"brave_api_key" binding:"omitempty,min=1"`
}
