package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/jmoiron/sqlx"
)

// JobColumns is the column list scanned into domain.Job
const JobColumns = `id, title, prompt, is_recurring, recurrence, recurring_time, recurring_weekday, run_at,
	context_source, web_search_query, web_result_count, web_freshness_hours, preferred_domains, context_url,
	discord_webhook_url, status, next_run, last_run_at, last_output, claimed_until, version, created_at, updated_at`

// Storage handles all database operations for the scheduler
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimDueJobs moves up to limit due jobs to running and leases them for
// lease. A job is due when it is active with next_run in the past, or
// running with an expired lease. Rows locked by a concurrent claim are
// skipped. Returned jobs are ordered by next_run, then creation order.
func (s *Storage) ClaimDueJobs(ctx context.Context, limit int, lease time.Duration) ([]domain.Job, error) {
	query := `
		UPDATE cron_jobs AS j
		SET status = $1,
		    claimed_until = NOW() + ($2 * INTERVAL '1 millisecond'),
		    version = j.version + 1,
		    updated_at = NOW()
		FROM (
			SELECT id AS due_id
			FROM cron_jobs
			WHERE (status = $3 AND next_run <= NOW())
			   OR (status = $1 AND claimed_until < NOW())
			ORDER BY next_run ASC, created_at ASC, id ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AS due
		WHERE j.id = due.due_id
		RETURNING ` + JobColumns

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query,
		domain.StatusRunning,
		lease.Milliseconds(),
		domain.StatusActive,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to claim due jobs: %v", domain.ErrPersistence, err)
	}

	// RETURNING order is unspecified
	sort.SliceStable(jobs, func(a, b int) bool {
		return lessDue(&jobs[a], &jobs[b])
	})

	if len(jobs) > 0 {
		s.logger.Info("Claimed due jobs",
			slog.Int("count", len(jobs)),
			slog.Duration("lease", lease),
		)
	}

	return jobs, nil
}

// ClaimJob claims a single job regardless of next_run, as long as it is
// active or its previous lease has expired
func (s *Storage) ClaimJob(ctx context.Context, jobID string, lease time.Duration) (*domain.Job, error) {
	query := `
		UPDATE cron_jobs
		SET status = $1,
		    claimed_until = NOW() + ($2 * INTERVAL '1 millisecond'),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3
		  AND (status = $4 OR (status = $1 AND claimed_until < NOW()))
		RETURNING ` + JobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.StatusRunning, lease.Milliseconds(), jobID, domain.StatusActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - not active or already claimed",
				slog.String("job_id", jobID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("%w: failed to claim job: %v", domain.ErrPersistence, err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.Int64("version", job.Version),
	)

	return &job, nil
}

// UpdateJobOutcome writes the result of one execution and releases the
// claim. The write only applies while the row still carries version; it
// reports false when an edit has landed since the claim.
func (s *Storage) UpdateJobOutcome(ctx context.Context, jobID string, version int64, u domain.OutcomeUpdate) (bool, error) {
	query := `
		UPDATE cron_jobs
		SET status = $1,
		    next_run = $2,
		    last_run_at = COALESCE($3, last_run_at),
		    last_output = $4,
		    claimed_until = NULL,
		    updated_at = NOW()
		WHERE id = $5
		  AND version = $6
	`

	result, err := s.db.ExecContext(ctx, query, u.Status, u.NextRun, u.LastRunAt, u.LastOutput, jobID, version)
	if err != nil {
		return false, fmt.Errorf("%w: failed to update job outcome: %v", domain.ErrPersistence, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to get rows affected: %v", domain.ErrPersistence, err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job outcome discarded - job was edited or deleted during execution",
			slog.String("job_id", jobID),
			slog.Int64("version", version),
		)
		return false, nil
	}

	s.logger.Info("Job outcome stored",
		slog.String("job_id", jobID),
		slog.String("status", string(u.Status)),
	)

	return true, nil
}

// ReleaseJob hands a claimed job back to active without recording a run.
// It reports false when the row no longer carries version or is no longer
// running.
func (s *Storage) ReleaseJob(ctx context.Context, jobID string, version int64) (bool, error) {
	query := `
		UPDATE cron_jobs
		SET status = $1,
		    claimed_until = NULL,
		    updated_at = NOW()
		WHERE id = $2
		  AND version = $3
		  AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, domain.StatusActive, jobID, version, domain.StatusRunning)
	if err != nil {
		return false, fmt.Errorf("%w: failed to release job: %v", domain.ErrPersistence, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to get rows affected: %v", domain.ErrPersistence, err)
	}

	if rowsAffected > 0 {
		s.logger.Info("Job claim released", slog.String("job_id", jobID))
	}

	return rowsAffected > 0, nil
}

func lessDue(a, b *domain.Job) bool {
	switch {
	case a.NextRun == nil && b.NextRun != nil:
		return false
	case a.NextRun != nil && b.NextRun == nil:
		return true
	case a.NextRun != nil && b.NextRun != nil && !a.NextRun.Equal(*b.NextRun):
		return a.NextRun.Before(*b.NextRun)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
