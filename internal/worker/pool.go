package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/cron-agent/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// runRequest is a run-now message handed from the dispatcher to the pool
type runRequest struct {
	JobID    string
	Delivery amqp.Delivery
}

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case req := <-w.jobsChan:
			w.logger.Info("Worker received run request",
				slog.String("worker_name", workerName),
				slog.String("job_id", req.JobID),
			)
			w.handleRunRequest(ctx, req)
		}
	}
}

// handleRunRequest runs one job and acknowledges its message
func (w *Worker) handleRunRequest(ctx context.Context, req *runRequest) {
	err := w.runNow(ctx, req.JobID)

	if err != nil {
		requeue := shouldRequeue(err)
		if nackErr := req.Delivery.Nack(false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("job_id", req.JobID),
				slog.Any("error", nackErr),
			)
			return
		}
		w.logger.Info("Message NACKed",
			slog.String("job_id", req.JobID),
			slog.Bool("requeue", requeue),
			slog.Any("reason", err),
		)
		return
	}

	if ackErr := req.Delivery.Ack(false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("job_id", req.JobID),
			slog.Any("error", ackErr),
		)
	}
}

// runNow claims a job outside its schedule and executes it once.
// A job that runs but fails is still a handled message.
func (w *Worker) runNow(ctx context.Context, jobID string) error {
	creds, err := w.credentials.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials: %w", err)
	}

	job, err := w.store.ClaimJob(ctx, jobID, w.claimLease)
	if err != nil {
		return err
	}

	_, err = w.processJob(ctx, job, creds)
	return err
}

// shouldRequeue decides whether a failed run request goes back on the queue
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrJobNotFound) {
		return false
	}
	if errors.Is(err, domain.ErrPersistence) {
		return true
	}
	return domain.IsRetryable(err)
}
