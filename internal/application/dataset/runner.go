// Package dataset generates inductor design datasets: parallel workers draw
// random windings, evaluate them, and a single collector goroutine batches
// the kept designs into the study repository.
package dataset

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/generator"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
	"github.com/coilforge/coilforge/pkg/errors"
)

// Repository receives generated designs in batches.  Implementations must be
// safe for use from a single collector goroutine.
type Repository interface {
	InsertDesigns(ctx context.Context, study string, designs []*evaluate.Design) error
}

// DedupCache marks windings as evaluated across runs; Register reports
// whether a winding is new.
type DedupCache interface {
	Register(ctx context.Context, w geometry.Winding) (bool, error)
}

// Stats summarizes a dataset run.
type Stats struct {
	Attempted  int64 `json:"attempted"`
	Failed     int64 `json:"failed"`
	Duplicates int64 `json:"duplicates"`
	Kept       int64 `json:"kept"`
	Discarded  int64 `json:"discarded"`
	Flushed    int64 `json:"flushed"`
}

// Option customizes a Runner.
type Option func(*Runner)

// WithDedupCache skips windings whose signature was already evaluated.
func WithDedupCache(cache DedupCache) Option {
	return func(r *Runner) { r.cache = cache }
}

// Runner drives parallel random-design generation for one study.
type Runner struct {
	cfg     config.DatasetConfig
	gen     config.GeneratorConfig
	enc     config.EncodingConfig
	board   config.BoardConfig
	eval    *evaluate.Evaluator
	repo    Repository
	log     logging.Logger
	metrics *prometheus.CoilMetrics
	cache   DedupCache
}

// New builds a Runner.  The evaluator is shared across workers; every worker
// owns its own generator because generators are not concurrency safe.
func New(
	cfg config.DatasetConfig,
	gen config.GeneratorConfig,
	enc config.EncodingConfig,
	board config.BoardConfig,
	eval *evaluate.Evaluator,
	repo Repository,
	log logging.Logger,
	metrics *prometheus.CoilMetrics,
	opts ...Option,
) (*Runner, error) {
	if eval == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "dataset runner requires an evaluator")
	}
	if repo == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "dataset runner requires a repository")
	}
	if cfg.NDesign < 1 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "dataset n_design must be >= 1").
			WithDetailf("n_design %d", cfg.NDesign)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &Runner{
		cfg:     cfg,
		gen:     gen,
		enc:     enc,
		board:   board,
		eval:    eval,
		repo:    repo,
		log:     log.Named("dataset"),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run attempts cfg.NDesign random designs and stores the kept ones under the
// named study.  It returns once every attempt has completed and the collector
// has flushed, or earlier when the context is cancelled or a flush fails.
func (r *Runner) Run(parent context.Context, study string) (Stats, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var stats Stats
	var remaining atomic.Int64
	remaining.Store(int64(r.cfg.NDesign))

	results := make(chan *evaluate.Design, r.cfg.BatchSize)

	col := newCollector(r.repo, study, r.cfg.BatchSize, r.cfg.DelayCollect, r.log, r.metrics)
	colDone := make(chan error, 1)
	go func() {
		err := col.run(ctx, results)
		if err != nil {
			// unblock workers still sending results
			cancel()
		}
		colDone <- err
	}()

	r.log.Info("dataset run started",
		logging.String("study", study),
		logging.Int("n_design", r.cfg.NDesign),
		logging.Int("n_parallel", r.cfg.NParallel),
		logging.String("mode", r.cfg.Mode),
	)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.NParallel; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.work(ctx, worker, &remaining, &stats, results)
		}(i)
	}
	wg.Wait()
	close(results)

	err := <-colDone
	if err == nil {
		err = parent.Err()
	}
	stats.Kept = col.kept.Load()
	stats.Flushed = col.flushed.Load()

	r.log.Info("dataset run finished",
		logging.String("study", study),
		logging.Int64("attempted", stats.Attempted),
		logging.Int64("failed", stats.Failed),
		logging.Int64("kept", stats.Kept),
		logging.Int64("discarded", stats.Discarded),
	)
	return stats, err
}

func (r *Runner) work(ctx context.Context, worker int, remaining *atomic.Int64, stats *Stats, results chan<- *evaluate.Design) {
	gen, err := r.newGenerator(worker)
	if err != nil {
		r.log.Error("worker generator setup failed", logging.Int("worker", worker), logging.Err(err))
		return
	}

	for remaining.Add(-1) >= 0 {
		if ctx.Err() != nil {
			return
		}
		atomic.AddInt64(&stats.Attempted, 1)

		start := time.Now()
		w, err := gen.Generate(generator.Mode(r.cfg.Mode))
		prometheus.RecordGeneratorRun(r.metrics, r.cfg.Mode, err == nil, time.Since(start))
		if err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			r.log.Warn("design generation failed", logging.Int("worker", worker), logging.Err(err))
			continue
		}
		if generator.Mode(r.cfg.Mode) == generator.ModeIter {
			prometheus.RecordGeneratorResets(r.metrics, gen.LastResets())
		}

		if r.cache != nil {
			fresh, err := r.cache.Register(ctx, w)
			if err != nil {
				// cache trouble is not worth losing the design over
				r.log.Warn("signature cache unavailable", logging.Err(err))
			} else if !fresh {
				atomic.AddInt64(&stats.Duplicates, 1)
				prometheus.RecordDatasetDesign(r.metrics, "duplicate")
				continue
			}
		}

		d := r.eval.EvaluateWinding(ctx, w)
		if r.cfg.ObjKeep > 0 && d.Obj >= r.cfg.ObjKeep {
			atomic.AddInt64(&stats.Discarded, 1)
			prometheus.RecordDatasetDesign(r.metrics, "discarded")
			continue
		}

		select {
		case results <- d:
		case <-ctx.Done():
			return
		}
	}
}

// newGenerator builds the worker generator with the partial rule check plus,
// when cond_gen is finite, a full-check conditioning gate.  A fixed base seed
// is offset per worker so parallel streams stay reproducible yet distinct.
func (r *Runner) newGenerator(worker int) (*generator.Generator, error) {
	cfg := r.gen
	if cfg.Seed != 0 {
		cfg.Seed += int64(worker)
	}

	checker := r.eval.Checker()
	scorer := r.eval.Scorer()
	check := checker.PartialCheck
	if !math.IsInf(r.cfg.CondGen, 1) {
		condGen := r.cfg.CondGen
		check = func(w geometry.Winding) bool {
			if !checker.PartialCheck(w) {
				return false
			}
			res, err := checker.Check(w)
			return err == nil && scorer.Cond(res, true) <= condGen
		}
	}

	return generator.New(cfg, r.enc, r.board, check, r.log)
}
