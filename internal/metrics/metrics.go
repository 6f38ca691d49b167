// Package metrics exposes Prometheus instrumentation for the evaluation
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesTotal counts evaluated batches by outcome
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfguard_batches_total",
		Help: "Total evaluation batches by outcome",
	}, []string{"outcome"})

	// BatchSize tracks the number of snapshots per batch
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perfguard_batch_snapshots",
		Help:    "Number of snapshots per evaluation batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})

	// EvaluateDuration tracks the worker round trip per batch
	EvaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perfguard_evaluate_duration_seconds",
		Help:    "Worker round trip per batch in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	})

	// IssuesTotal counts emitted issues by rule and severity
	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfguard_issues_total",
		Help: "Total issues emitted by rule and severity",
	}, []string{"rule_id", "severity"})

	// TransitionsTotal counts lifecycle transitions by target status
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfguard_lifecycle_transitions_total",
		Help: "Total lifecycle transitions by status",
	}, []string{"status"})

	// TrackedIssues is the number of fingerprints under tracking
	TrackedIssues = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfguard_tracked_issues",
		Help: "Number of issue fingerprints currently tracked",
	})

	// WorkerErrors counts worker transport failures
	WorkerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfguard_worker_errors_total",
		Help: "Total worker transport errors",
	})

	// WorkerRestarts counts worker recreations
	WorkerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfguard_worker_restarts_total",
		Help: "Total worker recreations after failure",
	})

	// IngestedSamples counts accepted samples by kind
	IngestedSamples = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perfguard_ingested_total",
		Help: "Total ingested render samples and snapshots",
	}, []string{"kind"})

	// HTTPRequestDuration tracks API latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perfguard_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Outcomes for BatchesTotal
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ObserveEvaluate records one batch round trip
func ObserveEvaluate(size int, elapsed time.Duration, err error) {
	BatchSize.Observe(float64(size))
	EvaluateDuration.Observe(elapsed.Seconds())
	if err != nil {
		BatchesTotal.WithLabelValues(OutcomeError).Inc()
		WorkerErrors.Inc()
		return
	}
	BatchesTotal.WithLabelValues(OutcomeOK).Inc()
}
