// Package optimize runs a differential-evolution shape optimization over the
// free design vector.  The initial population mixes seed designs pulled from
// a study repository with uniform random draws; every evaluated design is
// archived so later runs can seed from it.
package optimize

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/encoding"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
	"github.com/coilforge/coilforge/pkg/errors"
)

// SeedSource supplies previously stored designs for the initial population.
type SeedSource interface {
	SeedDesigns(ctx context.Context, study string, condMax float64, limit int) ([]*evaluate.Design, error)
}

// Archive receives every design evaluated during the optimization.
type Archive interface {
	InsertDesigns(ctx context.Context, study string, designs []*evaluate.Design) error
}

// Result reports the outcome of an optimization run.
type Result struct {
	Best        *evaluate.Design `json:"best"`
	BestVec     []float64        `json:"best_vec"`
	Generations int              `json:"generations"`
	Evals       int64            `json:"evals"`
	Seeded      int              `json:"seeded"`
}

// Optimizer implements DE/rand/1/bin with weight dither and deferred
// updating: a full trial population is built serially, evaluated in
// parallel, then selected against the parents.
type Optimizer struct {
	cfg     config.OptimizeConfig
	eval    *evaluate.Evaluator
	seeds   SeedSource
	archive Archive
	log     logging.Logger
	metrics *prometheus.CoilMetrics
	rng     *rand.Rand
}

// New builds an Optimizer.  seeds and archive may be nil for standalone runs
// without a database.
func New(
	cfg config.OptimizeConfig,
	eval *evaluate.Evaluator,
	seeds SeedSource,
	archive Archive,
	log logging.Logger,
	metrics *prometheus.CoilMetrics,
) (*Optimizer, error) {
	if eval == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "optimizer requires an evaluator")
	}
	if cfg.PopSize < 5 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "population must hold at least 5 members").
			WithDetailf("pop_size %d", cfg.PopSize)
	}
	if cfg.NGen < 1 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "generation count must be >= 1").
			WithDetailf("n_gen %d", cfg.NGen)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "crossover rate must lie in [0, 1]").
			WithDetailf("crossover_rate %v", cfg.CrossoverRate)
	}
	if cfg.Weight.Min <= 0 || cfg.Weight.Min > cfg.Weight.Max || cfg.Weight.Max > 2 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "weight dither range must satisfy 0 < min <= max <= 2").
			WithDetailf("weight [%v, %v]", cfg.Weight.Min, cfg.Weight.Max)
	}
	if cfg.NParallel < 1 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "parallelism must be >= 1").
			WithDetailf("n_parallel %d", cfg.NParallel)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Optimizer{
		cfg:     cfg,
		eval:    eval,
		seeds:   seeds,
		archive: archive,
		log:     log.Named("optimize"),
		metrics: metrics,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Run optimizes the free design vector and returns the best design found.
// Every evaluated design is written to the archive under the study name.
func (o *Optimizer) Run(ctx context.Context, study string) (Result, error) {
	b := o.eval.Codec().Bounds()

	pop, seeded, err := o.initPopulation(ctx, study, b)
	if err != nil {
		return Result{}, err
	}

	o.log.Info("optimization started",
		logging.String("study", study),
		logging.Int("pop_size", o.cfg.PopSize),
		logging.Int("n_gen", o.cfg.NGen),
		logging.Int("n_var", b.NVar),
		logging.Int("seeded", seeded),
	)

	res := Result{Seeded: seeded}

	designs, err := o.evaluateAll(ctx, study, pop)
	if err != nil {
		return Result{}, err
	}
	objs := make([]float64, len(designs))
	for i, d := range designs {
		objs[i] = d.Obj
	}
	res.Evals += int64(len(designs))
	if err := o.store(ctx, study, designs); err != nil {
		return Result{}, err
	}

	bestIdx := argMin(objs)
	res.Best = designs[bestIdx]
	res.BestVec = append([]float64{}, pop[bestIdx]...)

	for gen := 1; gen <= o.cfg.NGen; gen++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		trials := o.buildTrials(pop, b)
		trialDesigns, err := o.evaluateAll(ctx, study, trials)
		if err != nil {
			return res, err
		}
		res.Evals += int64(len(trialDesigns))
		if err := o.store(ctx, study, trialDesigns); err != nil {
			return res, err
		}

		improved := 0
		for i := range pop {
			if trialDesigns[i].Obj <= objs[i] {
				pop[i] = trials[i]
				objs[i] = trialDesigns[i].Obj
				designs[i] = trialDesigns[i]
				improved++
			}
		}

		bestIdx = argMin(objs)
		res.Best = designs[bestIdx]
		res.BestVec = append(res.BestVec[:0], pop[bestIdx]...)
		res.Generations = gen

		if o.metrics != nil {
			o.metrics.OptimizerGeneration.WithLabelValues(study).Set(float64(gen))
			o.metrics.OptimizerBestObjective.WithLabelValues(study).Set(objs[bestIdx])
		}
		o.log.Info("generation finished",
			logging.String("study", study),
			logging.Int("gen", gen),
			logging.Int("improved", improved),
			logging.Float64("best_obj", objs[bestIdx]),
		)
	}

	o.log.Info("optimization finished",
		logging.String("study", study),
		logging.Int64("evals", res.Evals),
		logging.Float64("best_obj", res.Best.Obj),
	)
	return res, nil
}

// initPopulation seeds up to NSeed members from stored designs with
// cond <= CondSeed and fills the remainder with uniform random draws.
func (o *Optimizer) initPopulation(ctx context.Context, study string, b encoding.Bounds) ([][]float64, int, error) {
	pop := make([][]float64, 0, o.cfg.PopSize)

	if o.seeds != nil && o.cfg.NSeed > 0 {
		limit := o.cfg.NSeed
		if limit > o.cfg.PopSize {
			limit = o.cfg.PopSize
		}
		stored, err := o.seeds.SeedDesigns(ctx, study, o.cfg.CondSeed, limit)
		if err != nil {
			return nil, 0, err
		}
		for _, d := range stored {
			vec, err := o.encodeSeed(d)
			if err != nil {
				o.log.Warn("seed design rejected", logging.Int64("design_id", d.ID), logging.Err(err))
				continue
			}
			pop = append(pop, o.clampVec(vec, b))
		}
	}
	seeded := len(pop)

	for len(pop) < o.cfg.PopSize {
		pop = append(pop, o.randomVec(b))
	}
	return pop, seeded, nil
}

// encodeSeed resamples a stored winding to the codec node count and maps it
// into the free-variable space.
func (o *Optimizer) encodeSeed(d *evaluate.Design) ([]float64, error) {
	codec := o.eval.Codec()
	w, err := codec.Resample(d.Winding)
	if err != nil {
		return nil, err
	}
	vec, err := codec.Encode(w)
	if err != nil {
		return nil, err
	}
	return codec.Reduce(vec)
}

func (o *Optimizer) randomVec(b encoding.Bounds) []float64 {
	vec := make([]float64, b.NVar)
	for j := 0; j < b.NVar; j++ {
		vec[j] = b.Lower[j] + o.rng.Float64()*(b.Upper[j]-b.Lower[j])
		if b.Discrete[j] {
			vec[j] = math.Round(vec[j])
		}
	}
	return vec
}

func (o *Optimizer) clampVec(vec []float64, b encoding.Bounds) []float64 {
	for j := range vec {
		if vec[j] < b.Lower[j] {
			vec[j] = b.Lower[j]
		}
		if vec[j] > b.Upper[j] {
			vec[j] = b.Upper[j]
		}
		if b.Discrete[j] {
			vec[j] = math.Round(vec[j])
		}
	}
	return vec
}

// buildTrials produces one DE/rand/1/bin trial per member.  The differential
// weight is dithered per mutant inside the configured range.
func (o *Optimizer) buildTrials(pop [][]float64, b encoding.Bounds) [][]float64 {
	np := len(pop)
	trials := make([][]float64, np)
	for i := 0; i < np; i++ {
		r1, r2, r3 := o.pickDistinct(np, i)
		f := o.cfg.Weight.Min + o.rng.Float64()*(o.cfg.Weight.Max-o.cfg.Weight.Min)
		jRand := o.rng.Intn(b.NVar)

		trial := make([]float64, b.NVar)
		copy(trial, pop[i])
		for j := 0; j < b.NVar; j++ {
			if j == jRand || o.rng.Float64() < o.cfg.CrossoverRate {
				trial[j] = pop[r1][j] + f*(pop[r2][j]-pop[r3][j])
			}
		}
		trials[i] = o.clampVec(trial, b)
	}
	return trials
}

func (o *Optimizer) pickDistinct(np, exclude int) (int, int, int) {
	picked := [3]int{-1, -1, -1}
	for k := 0; k < 3; k++ {
		for {
			r := o.rng.Intn(np)
			if r == exclude || r == picked[0] || r == picked[1] {
				continue
			}
			picked[k] = r
			break
		}
	}
	return picked[0], picked[1], picked[2]
}

// evaluateAll evaluates a population in parallel with up to NParallel
// workers.  Free vectors are expanded to the full design vector first.
func (o *Optimizer) evaluateAll(ctx context.Context, study string, pop [][]float64) ([]*evaluate.Design, error) {
	codec := o.eval.Codec()
	designs := make([]*evaluate.Design, len(pop))
	errs := make([]error, len(pop))

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.cfg.NParallel; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				full, err := codec.Expand(pop[i])
				if err != nil {
					errs[i] = err
					continue
				}
				d, err := o.eval.Evaluate(ctx, full)
				if err != nil {
					errs[i] = err
					continue
				}
				designs[i] = d
				if o.metrics != nil {
					o.metrics.OptimizerEvalsTotal.WithLabelValues(study).Inc()
				}
			}
		}()
	}

loop:
	for i := range pop {
		select {
		case idx <- i:
		case <-ctx.Done():
			break loop
		}
	}
	close(idx)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return designs, nil
}

func (o *Optimizer) store(ctx context.Context, study string, designs []*evaluate.Design) error {
	if o.archive == nil {
		return nil
	}
	return o.archive.InsertDesigns(ctx, study, designs)
}

func argMin(objs []float64) int {
	best := 0
	for i, v := range objs {
		if v < objs[best] {
			best = i
		}
	}
	return best
}
