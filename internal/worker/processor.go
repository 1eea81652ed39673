package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/grounding"
	"github.com/cuongbtq/cron-agent/internal/settings"
)

// JobOutcome is the per-job entry of a batch response
type JobOutcome struct {
	ID     string         `json:"id"`
	Status domain.Outcome `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// processJob runs one claimed job and persists its new state.
// Pipeline failures are recorded on the job and reported in the outcome.
// The returned error is either a persistence failure or, when ctx was
// canceled before the pipeline finished, a retryable domain.ErrInterrupted
// after the claim has been released.
func (w *Worker) processJob(ctx context.Context, job *domain.Job, creds *settings.Credentials) (JobOutcome, error) {
	start := time.Now()
	defer w.metrics.JobStarted()()

	logger := w.logger.With(slog.String("job_id", job.ID))
	logger.Info("Processing job", slog.String("title", job.Title))

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	output, runErr := w.runPipeline(jobCtx, job, creds)
	cancel()

	if runErr != nil && ctx.Err() != nil {
		return JobOutcome{}, w.releaseInterrupted(ctx, job, logger, runErr)
	}

	now := w.now()
	update := domain.OutcomeUpdate{}

	if runErr == nil {
		status, next, err := Transition(job.Status, job.Schedule(), job.NextRun, domain.OutcomeOK, now)
		if err != nil {
			runErr = fmt.Errorf("failed to compute next run: %w", err)
		} else {
			update.Status = status
			update.NextRun = next
			update.LastRunAt = &now
			update.LastOutput = output
		}
	}

	if runErr != nil {
		status, next, _ := Transition(job.Status, job.Schedule(), job.NextRun, domain.OutcomeError, now)
		update.Status = status
		update.NextRun = next
		update.LastOutput = runErr.Error()
	}

	storeCtx, storeCancel := w.storeContext(ctx)
	applied, err := w.store.UpdateJobOutcome(storeCtx, job.ID, job.Version, update)
	storeCancel()
	if err != nil {
		logger.Error("Failed to persist job outcome", slog.Any("error", err))
		w.metrics.ObserveJob(string(domain.OutcomeError), domain.Stage(err), time.Since(start))
		return JobOutcome{}, err
	}
	if !applied {
		logger.Warn("Job changed during execution, outcome not stored",
			slog.Int64("claim_version", job.Version),
		)
	}

	if runErr != nil {
		stage := domain.Stage(runErr)
		logger.Error("Job execution failed",
			slog.String("stage", stage),
			slog.Any("error", runErr),
		)
		w.metrics.ObserveJob(string(domain.OutcomeError), stage, time.Since(start))
		return JobOutcome{ID: job.ID, Status: domain.OutcomeError, Error: runErr.Error()}, nil
	}

	logger.Info("Job completed successfully",
		slog.String("status", string(update.Status)),
		slog.Duration("duration", time.Since(start)),
	)
	w.metrics.ObserveJob(string(domain.OutcomeOK), "", time.Since(start))
	return JobOutcome{ID: job.ID, Status: domain.OutcomeOK}, nil
}

// releaseInterrupted hands a job whose run was cut short by ctx back to
// active so the next invocation picks it up without waiting for the lease
func (w *Worker) releaseInterrupted(ctx context.Context, job *domain.Job, logger *slog.Logger, runErr error) error {
	logger.Warn("Job interrupted before completion, releasing claim",
		slog.Any("cause", context.Cause(ctx)),
		slog.Any("error", runErr),
	)

	if err := w.releaseClaim(ctx, job); err != nil {
		return err
	}
	return domain.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrInterrupted, context.Cause(ctx)))
}

// releaseClaim returns a claimed job to active. It is a no-op when the job
// was edited since the claim.
func (w *Worker) releaseClaim(ctx context.Context, job *domain.Job) error {
	storeCtx, cancel := w.storeContext(ctx)
	defer cancel()

	released, err := w.store.ReleaseJob(storeCtx, job.ID, job.Version)
	if err != nil {
		w.logger.Error("Failed to release job claim",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return err
	}
	if !released {
		w.logger.Debug("Claim not released, job changed since claim",
			slog.String("job_id", job.ID),
		)
	}
	return nil
}

// runPipeline builds context, composes the prompt, completes it and
// delivers the result. A panic is turned into an error for this job only.
func (w *Worker) runPipeline(ctx context.Context, job *domain.Job, creds *settings.Credentials) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Recovered from panic in job pipeline",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			output = ""
			err = fmt.Errorf("job pipeline panicked: %v", r)
		}
	}()

	if creds == nil {
		creds = &settings.Credentials{}
	}

	groundingText, hasContext, err := w.builder.Build(ctx, job, creds)
	if err != nil {
		return "", err
	}

	prompt := job.Prompt
	if hasContext {
		prompt = grounding.ComposeGroundedPrompt(job.Prompt, groundingText, w.now())
	}

	output, err = w.completion.Complete(ctx, creds.Completion, prompt)
	if err != nil {
		return "", err
	}

	if err := w.delivery.Deliver(ctx, job.WebhookURL, job.Title, output); err != nil {
		return "", err
	}

	return output, nil
}
