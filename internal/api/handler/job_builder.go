package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/cron-agent/internal/api/dto"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/grounding"
	"github.com/cuongbtq/cron-agent/internal/schedule"
)

// errInvalidJob marks request errors that are not schedule errors
var errInvalidJob = errors.New("invalid job")

// applyJobRequest validates req and writes it onto job, computing next_run
// from now. Schedule problems come back as *schedule.InvalidScheduleError.
func applyJobRequest(job *domain.Job, req *dto.JobRequest, now time.Time) error {
	title := strings.TrimSpace(req.Title)
	prompt := strings.TrimSpace(req.Prompt)
	if title == "" || prompt == "" {
		return fmt.Errorf("%w: title and prompt must not be blank", errInvalidJob)
	}

	mode := domain.GroundingMode(req.ContextSource)
	if mode == "" {
		mode = domain.GroundingNone
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: unsupported context_source %q", errInvalidJob, req.ContextSource)
	}

	contextURL := strings.TrimSpace(req.ContextURL)
	if mode.NeedsURL() && contextURL == "" {
		return fmt.Errorf("%w: context_url is required for %s", errInvalidJob, mode)
	}

	sched := schedule.Schedule{
		Recurring:  req.IsRecurring,
		Recurrence: schedule.Recurrence(strings.TrimSpace(req.Recurrence)),
		TimeOfDay:  strings.TrimSpace(req.RecurringTime),
		Weekday:    req.RecurringWeekday,
		RunAt:      req.RunAt,
	}.Normalize()

	nextRun, err := schedule.InitialNextRun(sched, now)
	if err != nil {
		return err
	}

	domains := req.PreferredDomains
	if len(domains) == 0 && req.PreferredDomainsCSV != "" {
		domains = grounding.ParseDomainsCSV(req.PreferredDomainsCSV)
	}

	job.Title = title
	job.Prompt = prompt
	job.SetSchedule(sched)
	if job.RunAt != nil {
		runAt := job.RunAt.UTC()
		job.RunAt = &runAt
	}

	job.ContextSource = mode
	job.WebSearchQuery = optionalString(req.WebSearchQuery)
	job.WebResultCount = intOrDefault(req.WebResultCount, domain.DefaultResultCount)
	job.WebFreshnessHours = intOrDefault(req.WebFreshnessHours, domain.DefaultFreshnessHours)
	job.PreferredDomains = grounding.NormalizeDomains(domains)
	job.ContextURL = nil
	if mode.NeedsURL() {
		job.ContextURL = &contextURL
	}

	job.WebhookURL = strings.TrimSpace(req.DiscordWebhookURL)
	job.NextRun = &nextRun

	return nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func intOrDefault(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
