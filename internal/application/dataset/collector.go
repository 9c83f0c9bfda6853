package dataset

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
)

// collector drains the result channel and writes designs to the repository
// in batches, flushing on size or on the collect interval.
type collector struct {
	repo      Repository
	study     string
	batchSize int
	delay     time.Duration
	log       logging.Logger
	metrics   *prometheus.CoilMetrics

	kept    atomic.Int64
	flushed atomic.Int64
}

func newCollector(repo Repository, study string, batchSize int, delay time.Duration, log logging.Logger, metrics *prometheus.CoilMetrics) *collector {
	if batchSize < 1 {
		batchSize = 1
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &collector{
		repo:      repo,
		study:     study,
		batchSize: batchSize,
		delay:     delay,
		log:       log.Named("collector"),
		metrics:   metrics,
	}
}

// run consumes designs until the channel closes, then performs a final
// flush.  The first repository error stops the collector.
func (c *collector) run(ctx context.Context, results <-chan *evaluate.Design) error {
	batch := make([]*evaluate.Design, 0, c.batchSize)
	ticker := time.NewTicker(c.delay)
	defer ticker.Stop()

	for {
		select {
		case d, ok := <-results:
			if !ok {
				return c.flush(ctx, &batch)
			}
			batch = append(batch, d)
			c.setQueueDepth(len(batch))
			if len(batch) >= c.batchSize {
				if err := c.flush(ctx, &batch); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := c.flush(ctx, &batch); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *collector) flush(ctx context.Context, batch *[]*evaluate.Design) error {
	if len(*batch) == 0 {
		return nil
	}
	n := len(*batch)

	if err := c.repo.InsertDesigns(ctx, c.study, *batch); err != nil {
		c.log.Error("design batch insert failed", logging.Int("batch", n), logging.Err(err))
		return err
	}

	c.kept.Add(int64(n))
	c.flushed.Add(1)
	if c.metrics != nil {
		c.metrics.CollectorBatchSize.WithLabelValues().Observe(float64(n))
	}
	for i := 0; i < n; i++ {
		prometheus.RecordDatasetDesign(c.metrics, "kept")
	}
	c.log.Info("design batch stored",
		logging.String("study", c.study),
		logging.Int("batch", n),
		logging.Int64("total", c.kept.Load()),
	)

	*batch = (*batch)[:0]
	c.setQueueDepth(0)
	return nil
}

func (c *collector) setQueueDepth(n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.CollectorQueueDepth.WithLabelValues().Set(float64(n))
}
