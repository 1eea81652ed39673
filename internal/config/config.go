package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// MaxBatchSize caps how many due jobs one batch may claim
	MaxBatchSize = 20

	// ClaimLeaseMargin is added on top of the batch's worst-case run time
	ClaimLeaseMargin = time.Minute
)

// Environment variables that override secrets in the config file
const (
	EnvCronSecret       = "CRON_SECRET"
	EnvEncryptionKey    = "ENCRYPTION_KEY"
	EnvModelAPIKey      = "MODEL_API_KEY"
	EnvBraveAPIKey      = "BRAVE_API_KEY"
	EnvDatabasePassword = "DATABASE_PASSWORD"
	EnvRabbitMQPassword = "RABBITMQ_PASSWORD"
	EnvRedisPassword    = "REDIS_PASSWORD"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Completion CompletionConfig `yaml:"completion"`
	Search     SearchConfig     `yaml:"search"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Security   SecurityConfig   `yaml:"security"`
	Trigger    TriggerConfig    `yaml:"trigger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig holds the search cache connection. An empty address disables caching.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// SchedulerConfig controls batch execution
type SchedulerConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	Concurrency     int           `yaml:"concurrency"`
	ClaimLease      time.Duration `yaml:"claim_lease"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MinClaimLease is the shortest claim lease that covers the last job of a
// full batch. Jobs past the first concurrency wait for a free slot, and each
// round may use its whole job and write timeouts.
func (s SchedulerConfig) MinClaimLease() time.Duration {
	concurrency := max(s.Concurrency, 1)
	rounds := (s.BatchSize + concurrency - 1) / concurrency
	return time.Duration(rounds)*(s.JobTimeout+s.WriteTimeout) + ClaimLeaseMargin
}

// CompletionConfig holds the default model settings. Values stored through
// the settings API take precedence.
type CompletionConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Referer     string        `yaml:"referer"`
	Title       string        `yaml:"title"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SearchConfig holds Brave Search settings
type SearchConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// FetchConfig holds URL grounding settings
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DeliveryConfig holds webhook delivery settings
type DeliveryConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// SecurityConfig holds shared secrets
type SecurityConfig struct {
	CronSecret    string `yaml:"cron_secret"`
	EncryptionKey string `yaml:"encryption_key"`
}

// TriggerConfig holds the trigger service settings
type TriggerConfig struct {
	URL      string        `yaml:"url"`
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Load reads and parses the configuration file, then applies environment
// overrides for secrets
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		EnvCronSecret:       &c.Security.CronSecret,
		EnvEncryptionKey:    &c.Security.EncryptionKey,
		EnvModelAPIKey:      &c.Completion.APIKey,
		EnvBraveAPIKey:      &c.Search.APIKey,
		EnvDatabasePassword: &c.Database.Password,
		EnvRabbitMQPassword: &c.RabbitMQ.Password,
		EnvRedisPassword:    &c.Redis.Password,
	}

	for env, target := range overrides {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Scheduler.BatchSize <= 0 || c.Scheduler.BatchSize > MaxBatchSize {
		c.Scheduler.BatchSize = MaxBatchSize
	}
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 4
	}
	if c.Scheduler.JobTimeout <= 0 {
		c.Scheduler.JobTimeout = 3 * time.Minute
	}
	if c.Scheduler.WriteTimeout <= 0 {
		c.Scheduler.WriteTimeout = 10 * time.Second
	}
	if c.Scheduler.ClaimLease <= 0 {
		c.Scheduler.ClaimLease = c.Scheduler.MinClaimLease()
	}
	if c.Scheduler.ShutdownTimeout <= 0 {
		c.Scheduler.ShutdownTimeout = 30 * time.Second
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = 10 * time.Minute
	}
	if c.Trigger.Schedule == "" {
		c.Trigger.Schedule = "* * * * *"
	}
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Security.CronSecret == "" {
		return fmt.Errorf("cron secret is required (set %s)", EnvCronSecret)
	}

	return c.validateExecution()
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.RabbitMQ.Consumer.PrefetchCount < 0 {
		return fmt.Errorf("rabbitmq prefetch_count must not be negative")
	}

	return c.validateExecution()
}

// ValidateTriggerConfig checks the settings the trigger service needs
func (c *Config) ValidateTriggerConfig() error {
	if c.Trigger.URL == "" {
		return fmt.Errorf("trigger url is required")
	}

	if c.Security.CronSecret == "" {
		return fmt.Errorf("cron secret is required (set %s)", EnvCronSecret)
	}

	return nil
}

// ValidateMigrateConfig checks the settings the migrate command needs
func (c *Config) ValidateMigrateConfig() error {
	return c.validateDatabase()
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler

	if s.Concurrency <= 0 {
		return fmt.Errorf("scheduler concurrency must be positive")
	}

	if s.JobTimeout <= 0 {
		return fmt.Errorf("scheduler job_timeout must be positive")
	}

	if minLease := s.MinClaimLease(); s.ClaimLease < minLease {
		return fmt.Errorf("scheduler claim_lease %s is shorter than %s, the time a batch of %d jobs needs at concurrency %d with job_timeout %s and write_timeout %s",
			s.ClaimLease, minLease, s.BatchSize, s.Concurrency, s.JobTimeout, s.WriteTimeout)
	}

	return nil
}

func (c *Config) validateExecution() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}

	if c.Completion.BaseURL == "" {
		return fmt.Errorf("completion base_url is required")
	}

	if c.Completion.Model == "" {
		return fmt.Errorf("completion model is required")
	}

	if c.Search.BaseURL == "" {
		return fmt.Errorf("search base_url is required")
	}

	if c.Search.RequestsPerSecond < 0 {
		return fmt.Errorf("search requests_per_second must not be negative")
	}

	if c.Delivery.RetryAttempts < 0 {
		return fmt.Errorf("delivery retry_attempts must not be negative")
	}

	return nil
}
