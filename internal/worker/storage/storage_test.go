package storage

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStorage(sqlx.NewDb(db, "postgres"), logger), mock
}

func jobColumnNames() []string {
	cols := strings.Split(JobColumns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func addJobRow(rows *sqlmock.Rows, id string, nextRun, createdAt time.Time, version int64) *sqlmock.Rows {
	return rows.AddRow(
		id, "Title "+id, "Prompt", true, "hourly_1", "14:30", nil, nil,
		"none", nil, 5, 72, "{reuters.com,apnews.com}", nil,
		"https://discord.example/webhook", "running", nextRun, nil, nil, nextRun.Add(10*time.Minute), version, createdAt, createdAt,
	)
}

func TestStorage_ClaimDueJobs(t *testing.T) {
	s, mock := newMockStorage(t)

	early := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	created := early.Add(-24 * time.Hour)

	rows := sqlmock.NewRows(jobColumnNames())
	addJobRow(rows, "b", late, created, 4)
	addJobRow(rows, "c", early, created.Add(time.Minute), 2)
	addJobRow(rows, "a", early, created, 7)

	mock.ExpectQuery(`UPDATE cron_jobs AS j`).
		WithArgs(domain.StatusRunning, int64(600000), domain.StatusActive, 20).
		WillReturnRows(rows)

	jobs, err := s.ClaimDueJobs(context.Background(), 20, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, []string{"a", "c", "b"}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
	assert.Equal(t, int64(7), jobs[0].Version)
	assert.Equal(t, domain.StatusRunning, jobs[0].Status)
	assert.Equal(t, domain.GroundingNone, jobs[0].ContextSource)
	assert.Equal(t, []string{"reuters.com", "apnews.com"}, []string(jobs[0].PreferredDomains))
	require.NotNil(t, jobs[0].RecurringTime)
	assert.Equal(t, "14:30", *jobs[0].RecurringTime)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ClaimDueJobs_Error(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`UPDATE cron_jobs AS j`).WillReturnError(errors.New("connection refused"))

	_, err := s.ClaimDueJobs(context.Background(), 20, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestStorage_ClaimJob(t *testing.T) {
	t.Run("claimed", func(t *testing.T) {
		s, mock := newMockStorage(t)

		now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
		rows := addJobRow(sqlmock.NewRows(jobColumnNames()), "job-1", now, now, 3)

		mock.ExpectQuery(`UPDATE cron_jobs`).
			WithArgs(domain.StatusRunning, int64(60000), "job-1", domain.StatusActive).
			WillReturnRows(rows)

		job, err := s.ClaimJob(context.Background(), "job-1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, int64(3), job.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not claimable", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(`UPDATE cron_jobs`).WillReturnError(sql.ErrNoRows)

		_, err := s.ClaimJob(context.Background(), "job-1", time.Minute)
		assert.ErrorIs(t, err, domain.ErrJobAlreadyClaimed)
	})

	t.Run("database error", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery(`UPDATE cron_jobs`).WillReturnError(errors.New("timeout"))

		_, err := s.ClaimJob(context.Background(), "job-1", time.Minute)
		assert.ErrorIs(t, err, domain.ErrPersistence)
	})
}

func TestStorage_UpdateJobOutcome(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 5, 0, time.UTC)
	next := now.Add(time.Hour)
	update := domain.OutcomeUpdate{
		Status:     domain.StatusActive,
		NextRun:    &next,
		LastRunAt:  &now,
		LastOutput: "done",
	}

	tests := []struct {
		name        string
		result      sql.Result
		execErr     error
		wantApplied bool
		wantErr     error
	}{
		{name: "applied", result: sqlmock.NewResult(0, 1), wantApplied: true},
		{name: "version mismatch", result: sqlmock.NewResult(0, 0), wantApplied: false},
		{name: "database error", execErr: errors.New("broken pipe"), wantErr: domain.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			exp := mock.ExpectExec(`UPDATE cron_jobs`).
				WithArgs(domain.StatusActive, &next, &now, "done", "job-1", int64(5))
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			applied, err := s.UpdateJobOutcome(context.Background(), "job-1", 5, update)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantApplied, applied)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_ReleaseJob(t *testing.T) {
	tests := []struct {
		name         string
		result       sql.Result
		execErr      error
		wantReleased bool
		wantErr      error
	}{
		{name: "released", result: sqlmock.NewResult(0, 1), wantReleased: true},
		{name: "edited since claim", result: sqlmock.NewResult(0, 0), wantReleased: false},
		{name: "database error", execErr: errors.New("broken pipe"), wantErr: domain.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)

			exp := mock.ExpectExec(`UPDATE cron_jobs\s+SET status = \$1,\s+claimed_until = NULL`).
				WithArgs(domain.StatusActive, "job-1", int64(7), domain.StatusRunning)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			released, err := s.ReleaseJob(context.Background(), "job-1", 7)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReleased, released)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
