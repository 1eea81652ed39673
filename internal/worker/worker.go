// Package worker executes scheduled prompt jobs.
//
// A batch run claims due jobs and pushes each one through the pipeline
// context, prompt, completion, delivery and state transition. The same
// pipeline serves run-now requests consumed from RabbitMQ.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/metrics"
	"github.com/cuongbtq/cron-agent/internal/settings"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxBatchSize is the most jobs claimed by one batch
const MaxBatchSize = 20

const (
	defaultConcurrency  = 4
	defaultJobTimeout   = 3 * time.Minute
	defaultWriteTimeout = 10 * time.Second
	claimLeaseMargin    = time.Minute
)

// minClaimLease is the shortest lease that still covers the last job of a
// full batch: every round of concurrency jobs may use its whole job and
// write timeouts before the next round starts.
func minClaimLease(batchSize, concurrency int, jobTimeout, writeTimeout time.Duration) time.Duration {
	if concurrency <= 0 {
		concurrency = 1
	}
	rounds := (batchSize + concurrency - 1) / concurrency
	return time.Duration(rounds)*(jobTimeout+writeTimeout) + claimLeaseMargin
}

// JobStore is the persistence the worker needs
type JobStore interface {
	ClaimDueJobs(ctx context.Context, limit int, lease time.Duration) ([]domain.Job, error)
	ClaimJob(ctx context.Context, jobID string, lease time.Duration) (*domain.Job, error)
	UpdateJobOutcome(ctx context.Context, jobID string, version int64, u domain.OutcomeUpdate) (bool, error)
	ReleaseJob(ctx context.Context, jobID string, version int64) (bool, error)
}

// ContextBuilder produces a job's grounding text
type ContextBuilder interface {
	Build(ctx context.Context, job *domain.Job, creds *settings.Credentials) (string, bool, error)
}

// Completer runs a prompt against the completion engine
type Completer interface {
	Complete(ctx context.Context, creds settings.Completion, prompt string) (string, error)
}

// Deliverer sends output to a job's webhook
type Deliverer interface {
	Deliver(ctx context.Context, target, title, body string) error
}

// Queue is the run-now message source
type Queue interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Store       JobStore
	Builder     ContextBuilder
	Completion  Completer
	Delivery    Deliverer
	Credentials settings.Provider
	Metrics     *metrics.Metrics
	Queue       Queue

	BatchSize     int
	Concurrency   int
	PrefetchCount int
	ClaimLease    time.Duration
	JobTimeout    time.Duration
	// WriteTimeout bounds outcome and release writes, which run detached
	// from the caller's cancellation
	WriteTimeout time.Duration

	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// Worker runs job batches and consumes run-now requests
type Worker struct {
	logger      *slog.Logger
	store       JobStore
	builder     ContextBuilder
	completion  Completer
	delivery    Deliverer
	credentials settings.Provider
	metrics     *metrics.Metrics
	queue       Queue

	workerID      string
	batchSize     int
	concurrency   int
	prefetchCount int
	claimLease    time.Duration
	jobTimeout    time.Duration
	writeTimeout  time.Duration
	now           func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	jobsChan chan *runRequest
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	lease := cfg.ClaimLease
	if lease <= 0 {
		lease = minClaimLease(batchSize, concurrency, timeout, writeTimeout)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	workerID := "worker-" + uuid.NewString()[:8]

	return &Worker{
		logger:        cfg.Logger.With(slog.String("worker_id", workerID)),
		store:         cfg.Store,
		builder:       cfg.Builder,
		completion:    cfg.Completion,
		delivery:      cfg.Delivery,
		credentials:   cfg.Credentials,
		metrics:       cfg.Metrics,
		queue:         cfg.Queue,
		workerID:      workerID,
		batchSize:     batchSize,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		claimLease:    lease,
		jobTimeout:    timeout,
		writeTimeout:  writeTimeout,
		now:           func() time.Time { return now().UTC() },
		stopChan:      make(chan struct{}),
		jobsChan:      make(chan *runRequest),
	}
}

// Start consumes run-now requests until ctx is canceled or Stop is called
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Duration("claim_lease", w.claimLease),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher stopped, waiting for in-flight jobs")
	return nil
}

// storeContext returns a context for store writes that survives the
// cancellation of ctx and is bounded by the write timeout
func (w *Worker) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
		w.wg.Wait()
		w.logger.Info("Worker stopped")
	})
}
