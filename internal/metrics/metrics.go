// Package metrics exposes Prometheus metrics for job execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all metrics
	Namespace = "cron_agent"

	// Subsystem is the subsystem for scheduler metrics
	Subsystem = "scheduler"
)

// Metrics holds scheduler metrics
type Metrics struct {
	JobsExecutedTotal  *prometheus.CounterVec
	StageFailuresTotal *prometheus.CounterVec
	JobDuration        prometheus.Histogram
	BatchDuration      prometheus.Histogram
	BatchSize          prometheus.Histogram
	JobsRunning        prometheus.Gauge
}

// NewMetrics creates and registers the metrics on reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsExecutedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "jobs_executed_total",
				Help:      "Total number of jobs executed, by outcome",
			},
			[]string{"outcome"},
		),
		StageFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "stage_failures_total",
				Help:      "Total number of job failures, by pipeline stage",
			},
			[]string{"stage"},
		),
		JobDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "job_duration_seconds",
				Help:      "Duration of a single job execution in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "batch_duration_seconds",
				Help:      "Duration of a batch invocation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		BatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "batch_size",
				Help:      "Number of jobs claimed per batch",
				Buckets:   prometheus.LinearBuckets(0, 5, 5),
			},
		),
		JobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "jobs_running",
				Help:      "Number of jobs currently executing in this process",
			},
		),
	}
}

// ObserveJob records one finished job. stage is empty on success.
func (m *Metrics) ObserveJob(outcome, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsExecutedTotal.WithLabelValues(outcome).Inc()
	if stage != "" {
		m.StageFailuresTotal.WithLabelValues(stage).Inc()
	}
	m.JobDuration.Observe(d.Seconds())
}

// ObserveBatch records one finished batch
func (m *Metrics) ObserveBatch(size int, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
	m.BatchDuration.Observe(d.Seconds())
}

// JobStarted increments the running gauge and returns its decrement
func (m *Metrics) JobStarted() func() {
	if m == nil {
		return func() {}
	}
	m.JobsRunning.Inc()
	return m.JobsRunning.Dec
}
