package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/cron-agent/internal/bootstrap"
	"github.com/cuongbtq/cron-agent/internal/config"
	"github.com/cuongbtq/cron-agent/internal/trigger"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("TRIGGER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/trigger-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateTriggerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting trigger service",
		slog.String("app", cfg.App.Name),
		slog.String("url", cfg.Trigger.URL),
		slog.String("schedule", cfg.Trigger.Schedule),
	)

	client := trigger.NewClient(cfg.Trigger.URL, cfg.Security.CronSecret, cfg.Trigger.Timeout, appLogger.Logger)

	scheduler, err := trigger.NewScheduler(cfg.Trigger.Schedule, client, appLogger.Logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)
	scheduler.Stop()

	appLogger.Info("Trigger service shutdown complete")
	return nil
}
