package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/cron-agent/internal/completion"
	"github.com/cuongbtq/cron-agent/internal/config"
	"github.com/cuongbtq/cron-agent/internal/delivery"
	"github.com/cuongbtq/cron-agent/internal/grounding"
	"github.com/cuongbtq/cron-agent/internal/grounding/brave"
	"github.com/cuongbtq/cron-agent/internal/grounding/fetch"
	"github.com/cuongbtq/cron-agent/internal/metrics"
	"github.com/cuongbtq/cron-agent/internal/settings"
	"github.com/cuongbtq/cron-agent/internal/worker"
	"github.com/cuongbtq/cron-agent/internal/worker/storage"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Pipeline holds the execution collaborators shared by the API and worker services
type Pipeline struct {
	Worker        *worker.Worker
	SettingsStore *settings.Store
	// Cipher is nil when no encryption key is configured
	Cipher *settings.Cipher
}

// PipelineDeps are the connections a pipeline is built on
type PipelineDeps struct {
	DB      *sqlx.DB
	Redis   redis.UniversalClient // optional
	Queue   worker.Queue          // optional, only needed to consume run-now requests
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewPipeline builds the job execution pipeline from configuration
func NewPipeline(cfg *config.Config, deps PipelineDeps) (*Pipeline, error) {
	logger := deps.Logger

	var cipher *settings.Cipher
	if cfg.Security.EncryptionKey != "" {
		c, err := settings.NewCipher(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		cipher = c
	} else {
		logger.Warn("Encryption key not configured, stored API keys are ignored")
	}

	settingsStore := settings.NewStore(deps.DB)
	credentials := settings.NewStoreProvider(settingsStore, cipher, settings.Credentials{
		Completion: settings.Completion{
			BaseURL: cfg.Completion.BaseURL,
			Model:   cfg.Completion.Model,
			APIKey:  cfg.Completion.APIKey,
		},
		SearchAPIKey: cfg.Search.APIKey,
	}, logger.With(slog.String("component", "settings")))

	searchCfg := brave.Config{
		BaseURL:           cfg.Search.BaseURL,
		Timeout:           cfg.Search.Timeout,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
		Burst:             cfg.Search.Burst,
		CacheTTL:          cfg.Search.CacheTTL,
		Logger:            logger.With(slog.String("component", "search")),
	}
	if deps.Redis != nil {
		searchCfg.Cache = brave.NewRedisCache(deps.Redis)
	}

	builder := grounding.NewBuilder(
		brave.NewClient(searchCfg),
		fetch.New(nil, cfg.Fetch.Timeout),
		logger.With(slog.String("component", "grounding")),
	)

	w := worker.NewWorker(&worker.Config{
		Logger:  logger,
		Store:   storage.NewStorage(deps.DB, logger.With(slog.String("component", "storage"))),
		Builder: builder,
		Completion: completion.NewClient(completion.Config{
			Referer:     cfg.Completion.Referer,
			Title:       cfg.Completion.Title,
			Temperature: cfg.Completion.Temperature,
			Timeout:     cfg.Completion.Timeout,
		}),
		Delivery: delivery.NewClient(delivery.Config{
			Timeout:           cfg.Delivery.Timeout,
			RetryAttempts:     cfg.Delivery.RetryAttempts,
			RetryInterval:     cfg.Delivery.RetryInterval,
			BackoffMultiplier: cfg.Delivery.BackoffMultiplier,
			Logger:            logger.With(slog.String("component", "delivery")),
		}),
		Credentials:   credentials,
		Metrics:       deps.Metrics,
		Queue:         deps.Queue,
		BatchSize:     cfg.Scheduler.BatchSize,
		Concurrency:   cfg.Scheduler.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		ClaimLease:    cfg.Scheduler.ClaimLease,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		WriteTimeout:  cfg.Scheduler.WriteTimeout,
	})

	return &Pipeline{
		Worker:        w,
		SettingsStore: settingsStore,
		Cipher:        cipher,
	}, nil
}
