// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationRuns     prometheus.Counter
	TradesSimulated    prometheus.Counter
	SimulationSkips    *prometheus.CounterVec
	SimulationDuration prometheus.Histogram

	// Search metrics
	TrialsTotal            *prometheus.CounterVec
	TrialPersistenceErrors prometheus.Counter
	BestEndingCash         prometheus.Gauge
	SearchDuration         prometheus.Histogram

	// Scoring metrics
	SymbolsScored prometheus.Counter
	ScoringErrors prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSearch   prometheus.Gauge
	LastSuccessfulPipeline prometheus.Gauge
	UptimeSeconds          prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics on reg. Tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "stock_backtest_lab"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Simulation metrics
		SimulationRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of completed simulations",
		}),
		TradesSimulated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of ledger entries produced",
		}),
		SimulationSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "skips_total",
			Help:      "Days or picks skipped by reason",
		}, []string{"reason"}),
		SimulationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Simulation wall time in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Search metrics
		TrialsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trials_total",
			Help:      "Total number of trials by status",
		}, []string{"status"}),
		TrialPersistenceErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "persistence_errors_total",
			Help:      "Trial records that failed to persist",
		}),
		BestEndingCash: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_ending_cash",
			Help:      "Ending cash of the best trial of the last search",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Random search wall time in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		// Scoring metrics
		SymbolsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "symbols_scored_total",
			Help:      "Total number of (symbol, date) scores written",
		}),
		ScoringErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "errors_total",
			Help:      "Total number of scoring failures",
		}),

		// Pipeline metrics
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"phase"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSearch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_search_timestamp",
			Help:      "Unix timestamp of last completed search",
		}),
		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records one completed simulation.
func RecordSimulation(trades int, d time.Duration) {
	DefaultMetrics.SimulationRuns.Inc()
	DefaultMetrics.TradesSimulated.Add(float64(trades))
	DefaultMetrics.SimulationDuration.Observe(d.Seconds())
}

// RecordSkips adds per-reason skip counts of one simulation.
func RecordSkips(counts map[string]int) {
	for reason, n := range counts {
		DefaultMetrics.SimulationSkips.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordTrial records a finished trial; status is "ok" or "failed".
func RecordTrial(status string) {
	DefaultMetrics.TrialsTotal.WithLabelValues(status).Inc()
}

// RecordTrialPersistenceError increments the trial persistence failure counter.
func RecordTrialPersistenceError() {
	DefaultMetrics.TrialPersistenceErrors.Inc()
}

// RecordSearch records a completed search and its best ending cash.
func RecordSearch(bestEndingCash float64, d time.Duration) {
	DefaultMetrics.BestEndingCash.Set(bestEndingCash)
	DefaultMetrics.SearchDuration.Observe(d.Seconds())
	DefaultMetrics.LastSuccessfulSearch.SetToCurrentTime()
}

// RecordScored adds n written scores.
func RecordScored(n int) {
	DefaultMetrics.SymbolsScored.Add(float64(n))
}

// RecordScoringError increments the scoring failure counter.
func RecordScoringError() {
	DefaultMetrics.ScoringErrors.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulPipeline.SetToCurrentTime()
	}
}

// AddUptime adds elapsed seconds to the uptime counter.
func AddUptime(d time.Duration) {
	DefaultMetrics.UptimeSeconds.Add(d.Seconds())
}
