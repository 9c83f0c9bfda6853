package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	cfg := CollectorConfig{
		Namespace: "test",
		Subsystem: "unit",
	}
	c, err := NewMetricsCollector(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	t.Parallel()

	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRegisterCounter(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	counter := c.RegisterCounter("evals_total", "Total evaluations", "outcome")
	counter.WithLabelValues("valid").Inc()
	counter.WithLabelValues("valid").Add(2)
	counter.WithLabelValues("invalid").Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_evals_total{outcome="valid"} 3`)
	assert.Contains(t, output, `test_unit_evals_total{outcome="invalid"} 1`)
}

func TestRegisterGauge(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	gauge := c.RegisterGauge("queue_depth", "Queue depth")
	gauge.WithLabelValues().Set(42)
	gauge.WithLabelValues().Dec()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_queue_depth 41")
}

func TestRegisterHistogram(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	hist := c.RegisterHistogram("check_seconds", "Check duration", []float64{0.1, 1, 10}, "stage")
	hist.WithLabelValues("check").Observe(0.5)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_check_seconds_count{stage="check"} 1`)
	assert.Contains(t, output, `test_unit_check_seconds_bucket{stage="check",le="1"} 1`)
}

func TestRegisterDuplicate_ReturnsExisting(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	first := c.RegisterCounter("dup_total", "Duplicate")
	second := c.RegisterCounter("dup_total", "Duplicate")

	first.WithLabelValues().Inc()
	second.WithLabelValues().Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_dup_total 2")
}

func TestRegisterConflictingType_ReturnsNoop(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.RegisterCounter("mixed_total", "Counter first")
	gauge := c.RegisterGauge("mixed_total", "Gauge second")

	// The mismatched registration degrades to a no-op rather than panicking.
	assert.NotPanics(t, func() {
		gauge.WithLabelValues().Set(1)
	})
}

func TestCollector_ConcurrentRegistration(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "Concurrent").WithLabelValues().Inc()
		}()
	}
	wg.Wait()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_concurrent_total 16")
}
