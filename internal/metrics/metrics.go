// Package metrics exports Prometheus metrics for ingest and matching runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all grant-matcher Prometheus metrics.
type Metrics struct {
	// Ingest metrics
	GrantsIngested *prometheus.CounterVec
	IngestBatches  *prometheus.CounterVec
	IngestDuration *prometheus.HistogramVec
	BatchSize      prometheus.Histogram

	// Matching metrics
	MatchRuns     prometheus.Counter
	GrantsScored  *prometheus.CounterVec
	MatchScore    prometheus.Histogram
	ScoreDuration prometheus.Histogram

	// Model API metrics
	ThrottleEvents prometheus.Counter
}

// New registers and returns the metric set.
func New() *Metrics {
	return &Metrics{
		GrantsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grantmatcher_grants_ingested_total",
			Help: "Total grant records processed, by source and action (created, updated, skipped)",
		}, []string{"source", "action"}),

		IngestBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grantmatcher_ingest_batches_total",
			Help: "Total ingest batches, by source and outcome",
		}, []string{"source", "status"}),

		IngestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grantmatcher_ingest_duration_seconds",
			Help:    "Time to apply one ingest batch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"source"}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "grantmatcher_ingest_batch_size",
			Help:    "Number of records per ingest batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500},
		}),

		MatchRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grantmatcher_match_runs_total",
			Help: "Total matching runs started",
		}),

		GrantsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grantmatcher_grants_scored_total",
			Help: "Total grants scored, by outcome (scored, failed, cancelled)",
		}, []string{"outcome"}),

		MatchScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "grantmatcher_match_score",
			Help:    "Distribution of overall match scores",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}),

		ScoreDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "grantmatcher_match_run_duration_seconds",
			Help:    "Wall time of a full matching run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		ThrottleEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grantmatcher_throttle_events_total",
			Help: "Rate limit responses observed from the model API",
		}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordIngest records one completed ingest batch.
func (m *Metrics) RecordIngest(source, status string, created, updated, skipped int, duration time.Duration) {
	m.IngestBatches.WithLabelValues(source, status).Inc()
	m.IngestDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.BatchSize.Observe(float64(created + updated + skipped))
	m.GrantsIngested.WithLabelValues(source, "created").Add(float64(created))
	m.GrantsIngested.WithLabelValues(source, "updated").Add(float64(updated))
	m.GrantsIngested.WithLabelValues(source, "skipped").Add(float64(skipped))
}

// RecordMatchRun records one completed matching run.
func (m *Metrics) RecordMatchRun(scored, failed, cancelled int, scores []float64, duration time.Duration) {
	m.MatchRuns.Inc()
	m.GrantsScored.WithLabelValues("scored").Add(float64(scored))
	m.GrantsScored.WithLabelValues("failed").Add(float64(failed))
	m.GrantsScored.WithLabelValues("cancelled").Add(float64(cancelled))
	for _, score := range scores {
		m.MatchScore.Observe(score)
	}
	m.ScoreDuration.Observe(duration.Seconds())
}
