// Package bootstrap wires configuration into the clients and services
// shared by the cmd binaries
package bootstrap

import (
	"log/slog"
	"time"

	"github.com/cuongbtq/cron-agent/internal/config"
	"github.com/cuongbtq/cron-agent/shared/logger"
	"github.com/cuongbtq/cron-agent/shared/postgresql"
	"github.com/cuongbtq/cron-agent/shared/rabbitmq"
	sharedredis "github.com/cuongbtq/cron-agent/shared/redis"
	"github.com/redis/go-redis/v9"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// InitPostgreSQL initializes the PostgreSQL database client. appName is
// reported to the server as application_name.
func InitPostgreSQL(cfg *config.DatabaseConfig, appName string, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		ApplicationName: appName,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// InitRabbitMQ initializes the RabbitMQ client
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// InitRedis connects the search cache. It returns nil when no address is
// configured or Redis is unreachable; searches then go uncached.
func InitRedis(cfg *config.RedisConfig, logger *slog.Logger) redis.UniversalClient {
	if cfg.Address == "" {
		logger.Info("Redis not configured, search cache disabled")
		return nil
	}

	client, err := sharedredis.NewClient(sharedredis.Config{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
	if err != nil {
		logger.Warn("Redis not available, search cache disabled",
			slog.Any("error", err),
		)
		return nil
	}

	return client
}
