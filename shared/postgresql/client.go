// Package postgresql opens the job database and runs its migrations
package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	connectTimeout     = 5 * time.Second
	healthCheckTimeout = 2 * time.Second
)

// Config holds PostgreSQL connection configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the config as a lib/pq keyword/value connection string.
// Values are single-quoted so passwords may contain spaces or quotes.
func (c *Config) DSN() string {
	pairs := []struct{ key, value string }{
		{"host", c.Host},
		{"port", fmt.Sprint(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", c.SSLMode},
		{"application_name", c.ApplicationName},
		{"connect_timeout", fmt.Sprint(int(connectTimeout.Seconds()))},
	}

	var b strings.Builder
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.key)
		b.WriteString("='")
		b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(p.value))
		b.WriteByte('\'')
	}
	return b.String()
}

// Client wraps the sqlx pool shared by the job and settings stores
type Client struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewClient connects, applies pool limits and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	logger.Info("Connecting to PostgreSQL",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.String("database", config.Database),
	)

	db, err := sqlx.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		slog.Int("max_open_conns", config.MaxOpenConns),
		slog.Int("max_idle_conns", config.MaxIdleConns),
	)

	return &Client{db: db, logger: logger}, nil
}

// GetDB returns the underlying pool
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Close closes the pool
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}
	c.logger.Info("PostgreSQL connection closed")
	return nil
}

// HealthCheck verifies the pool can run a query and that the job table exists
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var exists bool
	if err := c.db.GetContext(ctx, &exists, `SELECT to_regclass('public.cron_jobs') IS NOT NULL`); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("database health check failed: cron_jobs table missing, run migrations")
	}
	return nil
}
