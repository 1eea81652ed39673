package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	workerstorage "github.com/cuongbtq/cron-agent/internal/worker/storage"
	"github.com/jmoiron/sqlx"
)

// Storage handles job CRUD for the HTTP API
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// CreateJob inserts a new job at version 1
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO cron_jobs (
			id, title, prompt, is_recurring, recurrence, recurring_time, recurring_weekday, run_at,
			context_source, web_search_query, web_result_count, web_freshness_hours, preferred_domains, context_url,
			discord_webhook_url, status, next_run, version, created_at, updated_at
		) VALUES (
			:id, :title, :prompt, :is_recurring, :recurrence, :recurring_time, :recurring_weekday, :run_at,
			:context_source, :web_search_query, :web_result_count, :web_freshness_hours, :preferred_domains, :context_url,
			:discord_webhook_url, :status, :next_run, :version, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("%w: failed to create job: %v", domain.ErrPersistence, err)
	}

	return nil
}

// GetJobByID returns one job or domain.ErrJobNotFound
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + workerstorage.JobColumns + ` FROM cron_jobs WHERE id = $1`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("%w: failed to get job: %v", domain.ErrPersistence, err)
	}

	return &job, nil
}

// JobFilter narrows a job listing
type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor marks the last row of the previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns jobs newest first. One row more than PageSize is
// fetched so callers can tell whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + workerstorage.JobColumns + ` FROM cron_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("%w: failed to list jobs: %v", domain.ErrPersistence, err)
	}

	return jobs, nil
}

// UpdateJob replaces a job's definition, status and next run. It releases
// any claim and bumps the version so an in-flight execution cannot
// overwrite the edit. The stored version and timestamp are written back
// into job.
func (s *Storage) UpdateJob(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE cron_jobs
		SET title = :title,
		    prompt = :prompt,
		    is_recurring = :is_recurring,
		    recurrence = :recurrence,
		    recurring_time = :recurring_time,
		    recurring_weekday = :recurring_weekday,
		    run_at = :run_at,
		    context_source = :context_source,
		    web_search_query = :web_search_query,
		    web_result_count = :web_result_count,
		    web_freshness_hours = :web_freshness_hours,
		    preferred_domains = :preferred_domains,
		    context_url = :context_url,
		    discord_webhook_url = :discord_webhook_url,
		    status = :status,
		    next_run = :next_run,
		    claimed_until = NULL,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = :id
		RETURNING version, updated_at
	`

	rows, err := s.db.NamedQueryContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("%w: failed to update job: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: failed to update job: %v", domain.ErrPersistence, err)
		}
		return domain.ErrJobNotFound
	}

	if err := rows.Scan(&job.Version, &job.UpdatedAt); err != nil {
		return fmt.Errorf("%w: failed to read updated job: %v", domain.ErrPersistence, err)
	}

	return nil
}

// DeleteJob removes a job. It returns domain.ErrJobNotFound when no row matched.
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cron_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete job: %v", domain.ErrPersistence, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %v", domain.ErrPersistence, err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}
