package postgresql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "full config",
			cfg: Config{
				Host: "db", Port: 5432, User: "cron", Password: "secret",
				Database: "cron_agent", SSLMode: "disable", ApplicationName: "cron-agent-api",
			},
			want: "host='db' port='5432' user='cron' password='secret' dbname='cron_agent' sslmode='disable' application_name='cron-agent-api' connect_timeout='5'",
		},
		{
			name: "empty values skipped and quotes escaped",
			cfg:  Config{Host: "localhost", Port: 5432, Password: `it's a pass`},
			want: `host='localhost' port='5432' password='it\'s a pass' connect_timeout='5'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Client{
		db:     sqlx.NewDb(db, "postgres"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, mock
}

func TestClient_HealthCheck(t *testing.T) {
	const query = `SELECT to_regclass\('public.cron_jobs'\) IS NOT NULL`

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr string
	}{
		{
			name: "healthy",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
		},
		{
			name: "table missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: "run migrations",
		},
		{
			name: "query fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WillReturnError(errors.New("connection refused"))
			},
			wantErr: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockClient(t)
			tt.setup(mock)

			err := client.HealthCheck(context.Background())

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
