package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/cuongbtq/cron-agent/internal/bootstrap"
	"github.com/cuongbtq/cron-agent/internal/config"
	"github.com/cuongbtq/cron-agent/migrations"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	steps := flag.Int("steps", 1, "Number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-config path] [-steps n] <up|down|version>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected exactly one command")
	}
	command := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateMigrateConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, cfg.App.Name, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	migrator, err := dbClient.NewMigrator(migrations.FS)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down(*steps)
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		appLogger.Info("Migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
