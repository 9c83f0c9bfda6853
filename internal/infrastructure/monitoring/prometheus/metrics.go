package prometheus

import (
	"time"
)

// CoilMetrics holds all application metrics.
type CoilMetrics struct {
	// Evaluation pipeline
	DesignsEvaluatedTotal CounterVec
	EvalStageDuration     HistogramVec
	RuleViolationsTotal   CounterVec
	SolverRunsTotal       CounterVec
	SolverDuration        HistogramVec

	// Random generation
	GeneratorRunsTotal  CounterVec
	GeneratorDuration   HistogramVec
	GeneratorResetDepth HistogramVec

	// Dataset collection
	DatasetDesignsTotal CounterVec
	CollectorQueueDepth GaugeVec
	CollectorBatchSize  HistogramVec

	// Optimization
	OptimizerGeneration    GaugeVec
	OptimizerBestObjective GaugeVec
	OptimizerEvalsTotal    CounterVec

	// Infrastructure
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	ExportsTotal     CounterVec
	ErrorsTotal      CounterVec
}

// Default buckets
var (
	DefaultEvalDurationBuckets   = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	DefaultSolverDurationBuckets = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300}
	DefaultDBDurationBuckets     = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultResetDepthBuckets     = []float64{0, 1, 2, 5, 10, 20, 50}
	DefaultBatchSizeBuckets      = []float64{1, 10, 50, 100, 500, 1000}
)

// NewCoilMetrics registers all metrics and returns the CoilMetrics struct.
func NewCoilMetrics(collector MetricsCollector) *CoilMetrics {
	m := &CoilMetrics{}

	// Evaluation pipeline
	m.DesignsEvaluatedTotal = collector.RegisterCounter("designs_evaluated_total", "Evaluated designs", "outcome")
	m.EvalStageDuration = collector.RegisterHistogram("eval_stage_duration_seconds", "Evaluation stage duration", DefaultEvalDurationBuckets, "stage")
	m.RuleViolationsTotal = collector.RegisterCounter("rule_violations_total", "Design rule violations", "category")
	m.SolverRunsTotal = collector.RegisterCounter("solver_runs_total", "Field solver runs", "status")
	m.SolverDuration = collector.RegisterHistogram("solver_duration_seconds", "Field solver duration", DefaultSolverDurationBuckets)

	// Random generation
	m.GeneratorRunsTotal = collector.RegisterCounter("generator_runs_total", "Random generator runs", "mode", "status")
	m.GeneratorDuration = collector.RegisterHistogram("generator_duration_seconds", "Random generator duration", DefaultEvalDurationBuckets, "mode")
	m.GeneratorResetDepth = collector.RegisterHistogram("generator_reset_depth", "Resets consumed per successful generation", DefaultResetDepthBuckets)

	// Dataset collection
	m.DatasetDesignsTotal = collector.RegisterCounter("dataset_designs_total", "Dataset designs by disposition", "disposition")
	m.CollectorQueueDepth = collector.RegisterGauge("collector_queue_depth", "Designs waiting for batch insert")
	m.CollectorBatchSize = collector.RegisterHistogram("collector_batch_size", "Designs per database batch", DefaultBatchSizeBuckets)

	// Optimization
	m.OptimizerGeneration = collector.RegisterGauge("optimizer_generation", "Current optimizer generation", "study")
	m.OptimizerBestObjective = collector.RegisterGauge("optimizer_best_objective", "Best objective so far", "study")
	m.OptimizerEvalsTotal = collector.RegisterCounter("optimizer_evals_total", "Objective evaluations", "study")

	// Infrastructure
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.ExportsTotal = collector.RegisterCounter("exports_total", "Design exports", "format", "status")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers. All of them tolerate a nil metrics set so unmetered callers
// (tests, one-shot CLI runs) skip instrumentation entirely.

func RecordEvaluation(metrics *CoilMetrics, valid bool, checkDuration time.Duration) {
	if metrics == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	metrics.DesignsEvaluatedTotal.WithLabelValues(outcome).Inc()
	metrics.EvalStageDuration.WithLabelValues("check").Observe(checkDuration.Seconds())
}

func RecordSolverRun(metrics *CoilMetrics, success bool, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.SolverRunsTotal.WithLabelValues(status).Inc()
	metrics.SolverDuration.WithLabelValues().Observe(duration.Seconds())
}

func RecordGeneratorRun(metrics *CoilMetrics, mode string, success bool, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "exhausted"
	}
	metrics.GeneratorRunsTotal.WithLabelValues(mode, status).Inc()
	metrics.GeneratorDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordGeneratorResets observes the resets a successful iterative
// generation consumed.
func RecordGeneratorResets(metrics *CoilMetrics, resets int) {
	if metrics == nil {
		return
	}
	metrics.GeneratorResetDepth.WithLabelValues().Observe(float64(resets))
}

// RecordDatasetDesign counts one dataset design by disposition
// ("kept" or "discarded").
func RecordDatasetDesign(metrics *CoilMetrics, disposition string) {
	if metrics == nil {
		return
	}
	metrics.DatasetDesignsTotal.WithLabelValues(disposition).Inc()
}

func RecordDBQuery(metrics *CoilMetrics, operation string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("database", "query_error").Inc()
	}
}

func RecordCacheAccess(metrics *CoilMetrics, cache string, hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordExport(metrics *CoilMetrics, format string, err error) {
	if metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ExportsTotal.WithLabelValues(format, status).Inc()
}
