package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
)

// BatchResult is the response of one batch invocation
type BatchResult struct {
	OK        bool         `json:"ok"`
	Processed []JobOutcome `json:"processed"`
}

// RunBatch claims up to the batch size of due jobs and runs them through
// the pipeline with bounded concurrency. Each job's failure is isolated to
// its own outcome. A persistence failure or a canceled ctx aborts the
// batch: no further jobs are started, jobs already stored keep their state
// and claimed jobs that did not finish are released back to active.
func (w *Worker) RunBatch(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	creds, err := w.credentials.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}

	jobs, err := w.store.ClaimDueJobs(ctx, w.batchSize, w.claimLease)
	if err != nil {
		return nil, err
	}

	w.logger.Info("Running batch", slog.Int("jobs", len(jobs)))

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]JobOutcome, len(jobs))
	started := make([]bool, len(jobs))
	indexes := make(chan int)

	var (
		wg       sync.WaitGroup
		fatalErr error
		once     sync.Once
	)

	workers := w.concurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				if batchCtx.Err() != nil {
					continue
				}
				started[idx] = true
				outcome, err := w.processJob(batchCtx, &jobs[idx], creds)
				if errors.Is(err, domain.ErrInterrupted) {
					continue
				}
				if err != nil {
					once.Do(func() {
						fatalErr = err
						cancel()
					})
					continue
				}
				outcomes[idx] = outcome
			}
		}()
	}

dispatch:
	for i := range jobs {
		select {
		case indexes <- i:
		case <-batchCtx.Done():
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	for i := range jobs {
		if !started[i] {
			// best effort, the lease covers a failed release
			_ = w.releaseClaim(ctx, &jobs[i])
		}
	}

	w.metrics.ObserveBatch(len(jobs), time.Since(start))

	if fatalErr != nil {
		w.logger.Error("Batch aborted", slog.Any("error", fatalErr))
		return nil, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}

	w.logger.Info("Batch finished",
		slog.Int("jobs", len(jobs)),
		slog.Duration("duration", time.Since(start)),
	)

	return &BatchResult{OK: true, Processed: outcomes}, nil
}
