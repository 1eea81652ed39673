package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/cron-agent/internal/api/storage"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/settings"
	"github.com/cuongbtq/cron-agent/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
)

// JobStore is the job persistence used by the API
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	UpdateJob(ctx context.Context, job *domain.Job) error
	DeleteJob(ctx context.Context, jobID string) error
}

// Publisher sends run-now requests to the worker queue
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// SettingsStore persists completion settings
type SettingsStore interface {
	Save(ctx context.Context, u settings.Update) error
}

// BatchRunner runs one batch of due jobs
type BatchRunner interface {
	RunBatch(ctx context.Context) (*worker.BatchResult, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Jobs      JobStore
	Publisher Publisher // nil disables run-now
	Settings  SettingsStore
	Cipher    *settings.Cipher // nil rejects API key updates
	Batch     BatchRunner

	// TriggerSecret guards the batch trigger endpoint
	TriggerSecret string
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
	// HealthCheck reports database reachability for /health
	HealthCheck func(ctx context.Context) error

	Now func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	jobs      JobStore
	publisher Publisher
	now       func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		jobs:      deps.Jobs,
		publisher: deps.Publisher,
		now:       deps.now,
	}
}
