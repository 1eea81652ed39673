package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/cron-agent/internal/domain"
	workerstorage "github.com/cuongbtq/cron-agent/internal/worker/storage"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStorage(sqlx.NewDb(db, "postgres")), mock
}

func jobRows(ids ...string) *sqlmock.Rows {
	cols := strings.Split(workerstorage.JobColumns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(cols)
	for _, id := range ids {
		rows.AddRow(
			id, "Title", "Prompt", false, nil, nil, nil, created.Add(time.Hour),
			"live_search", "gold price", 5, 72, "{}", nil,
			"https://discord.example/webhook", "active", created.Add(time.Hour), nil, nil, nil, 1, created, created,
		)
	}
	return rows
}

func TestStorage_CreateJob(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO cron_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CreateJob(context.Background(), &domain.Job{
		ID:               "job-1",
		Title:            "t",
		Prompt:           "p",
		RunAt:            &now,
		ContextSource:    domain.GroundingNone,
		PreferredDomains: []string{},
		Status:           domain.StatusActive,
		NextRun:          &now,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_GetJobByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT .+ FROM cron_jobs WHERE id = \$1`).
			WithArgs("job-1").
			WillReturnRows(jobRows("job-1"))

		job, err := s.GetJobByID(context.Background(), "job-1")
		require.NoError(t, err)

		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, domain.GroundingLiveSearch, job.ContextSource)
		require.NotNil(t, job.WebSearchQuery)
		assert.Equal(t, "gold price", *job.WebSearchQuery)
		assert.Empty(t, job.PreferredDomains)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT .+ FROM cron_jobs`).
			WithArgs("job-2").
			WillReturnRows(jobRows())

		_, err := s.GetJobByID(context.Background(), "job-2")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`SELECT .+ FROM cron_jobs`).
			WillReturnError(errors.New("connection reset"))

		_, err := s.GetJobByID(context.Background(), "job-3")
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})
}

func TestStorage_ListJobs(t *testing.T) {
	s, mock := newMockStorage(t)
	cursorAt := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND status = \$1 AND \(created_at, id\) < \(\$2, \$3\) ORDER BY created_at DESC, id DESC LIMIT \$4`).
		WithArgs("paused", cursorAt, "job-9", 3).
		WillReturnRows(jobRows("job-8", "job-7"))

	jobs, err := s.ListJobs(context.Background(), JobFilter{
		Status:   "paused",
		PageSize: 2,
		Cursor:   &JobCursor{CreatedAt: cursorAt, JobID: "job-9"},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-8", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpdateJob(t *testing.T) {
	t.Run("bumps version", func(t *testing.T) {
		s, mock := newMockStorage(t)
		updatedAt := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`UPDATE cron_jobs\s+SET .+claimed_until = NULL,\s+version = version \+ 1`).
			WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(5, updatedAt))

		job := &domain.Job{ID: "job-1", Version: 4, PreferredDomains: []string{}}
		require.NoError(t, s.UpdateJob(context.Background(), job))

		assert.Equal(t, int64(5), job.Version)
		assert.Equal(t, updatedAt, job.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStorage(t)
		mock.ExpectQuery(`UPDATE cron_jobs`).
			WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}))

		err := s.UpdateJob(context.Background(), &domain.Job{ID: "job-2"})
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}

func TestStorage_DeleteJob(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec(`DELETE FROM cron_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM cron_jobs WHERE id = \$1`).
		WithArgs("job-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DeleteJob(context.Background(), "job-1"))
	assert.ErrorIs(t, s.DeleteJob(context.Background(), "job-2"), domain.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
