package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/worker"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule fires once a minute
const DefaultSchedule = "* * * * *"

// Firer runs one batch
type Firer interface {
	Fire(ctx context.Context) (*worker.BatchResult, error)
}

// Scheduler fires the batch endpoint on a cron expression. A fire that is
// still running when the next one is due causes that one to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	firer  Firer
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five-field syntax or a descriptor such
// as @every 30s) and prepares the schedule
func NewScheduler(spec string, firer Firer, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}

	cl := &cronLogger{logger: logger}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		firer:  firer,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(spec, s.fire); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid trigger schedule %q: %w", spec, err)
	}

	return s, nil
}

// Start begins firing in the background
func (s *Scheduler) Start() {
	s.logger.Info("Trigger scheduler started", slog.Int("entries", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop cancels an in-flight fire and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Trigger scheduler stopped")
}

func (s *Scheduler) fire() {
	start := time.Now()

	result, err := s.firer.Fire(s.ctx)
	if err != nil {
		s.logger.Error("Batch trigger failed",
			slog.Any("error", err),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}

	failed := 0
	for _, p := range result.Processed {
		if p.Status != domain.OutcomeOK {
			failed++
		}
	}

	s.logger.Info("Batch trigger completed",
		slog.Int("processed", len(result.Processed)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
