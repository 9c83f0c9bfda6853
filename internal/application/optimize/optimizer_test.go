package optimize_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/application/optimize"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/encoding"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/domain/objective"
	"github.com/coilforge/coilforge/internal/domain/solver"
	"github.com/coilforge/coilforge/pkg/errors"
	"github.com/coilforge/coilforge/pkg/types/common"
)

type fakeArchive struct {
	mu      sync.Mutex
	batches [][]*evaluate.Design
	err     error
}

func (a *fakeArchive) InsertDesigns(_ context.Context, _ string, designs []*evaluate.Design) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	batch := make([]*evaluate.Design, len(designs))
	copy(batch, designs)
	a.batches = append(a.batches, batch)
	return nil
}

type fakeSeeds struct {
	designs []*evaluate.Design
	study   string
	condMax float64
	limit   int
}

func (s *fakeSeeds) SeedDesigns(_ context.Context, study string, condMax float64, limit int) ([]*evaluate.Design, error) {
	s.study, s.condMax, s.limit = study, condMax, limit
	return s.designs, nil
}

func newTestEvaluator(t *testing.T, slv solver.Solver) *evaluate.Evaluator {
	t.Helper()

	enc := config.EncodingConfig{
		NWdg:    4,
		NormMin: -1,
		NormMax: +1,
		X:       common.Range{Min: -0.5e-3, Max: 0.5e-3},
		Y:       common.Range{Min: -0.5e-3, Max: 0.5e-3},
		Width:   common.Range{Min: 50e-6, Max: 250e-6},
	}
	board := config.BoardConfig{
		Outline: [][]float64{
			{-0.5e-3, -0.5e-3}, {0.5e-3, -0.5e-3}, {0.5e-3, 0.5e-3}, {-0.5e-3, 0.5e-3},
		},
		LayerList: []int{0, 4},
	}
	rules := config.RuleConfig{
		Limits: config.RuleLimits{
			Boundary:  100e-6,
			Clearance: common.Range{Min: 100e-6, Max: math.Inf(1)},
			Distance:  common.Range{Min: 50e-6, Max: math.Inf(1)},
			Angle:     common.Range{Min: 45, Max: 360},
			Width:     common.Range{Min: 50e-6, Max: 500e-6},
			Length:    common.Range{Min: 50e-6, Max: math.Inf(1)},
			Radius:    common.Range{Min: math.Inf(-1), Max: 90},
			Diff:      common.Range{Min: math.Inf(-1), Max: 1},
		},
		Clamp: common.Range{Min: -10, Max: 10},
		Distance: config.DistanceOptions{
			SizeMin: 10, DisResample: 20e-6, TolAngle: 120, TolAdd: 100e-6,
		},
		Average: config.AverageOptions{
			SizeMin: 10, WindowConv: "boxcar", LengthMin: 50e-6, DisResample: 20e-6, DisAverage: 100e-6,
		},
	}
	gen := config.GeneratorConfig{SegmentMin: 10e-6, AngleMin: 45}
	obj := config.ObjectiveConfig{
		CondScale: 1, CondMax: 100,
		ValidityScale: 1, ValidityMax: 100,
		ScoreScale: 1, ScoreMax: 100,
		LossScale:    []float64{1},
		PenaltyScale: []float64{1},
		CondSolve:    0,
	}

	codec, err := encoding.NewCodec(enc, board)
	require.NoError(t, err)
	checker, err := drc.NewChecker(rules, gen, enc, board)
	require.NoError(t, err)
	scorer, err := objective.NewScorer(obj)
	require.NoError(t, err)

	return evaluate.New(codec, checker, scorer, slv, nil, nil)
}

func testOptimizeConfig() config.OptimizeConfig {
	return config.OptimizeConfig{
		PopSize:       8,
		NGen:          4,
		Weight:        common.Range{Min: 0.5, Max: 1.0},
		CrossoverRate: 0.7,
		NParallel:     2,
		Seed:          42,
	}
}

func validWinding() geometry.Winding {
	return geometry.Winding{
		Coord: []geometry.Point{
			{X: -0.4e-3, Y: 0}, {X: -0.133e-3, Y: 0}, {X: 0.133e-3, Y: 0}, {X: 0.4e-3, Y: 0},
		},
		Width: []float64{100e-6, 100e-6, 100e-6, 100e-6},
		Layer: []int{0, 0, 0},
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)

	cases := []struct {
		name   string
		mutate func(*config.OptimizeConfig)
	}{
		{"small population", func(c *config.OptimizeConfig) { c.PopSize = 4 }},
		{"zero generations", func(c *config.OptimizeConfig) { c.NGen = 0 }},
		{"crossover out of range", func(c *config.OptimizeConfig) { c.CrossoverRate = 1.5 }},
		{"weight range inverted", func(c *config.OptimizeConfig) { c.Weight = common.Range{Min: 1.0, Max: 0.5} }},
		{"zero parallelism", func(c *config.OptimizeConfig) { c.NParallel = 0 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testOptimizeConfig()
			tc.mutate(&cfg)
			_, err := optimize.New(cfg, e, nil, nil, nil, nil)
			assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
		})
	}

	_, err := optimize.New(testOptimizeConfig(), nil, nil, nil, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
}

func TestRun_NeverWorsensBestObjective(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)
	archive := &fakeArchive{}
	o, err := optimize.New(testOptimizeConfig(), e, nil, archive, nil, nil)
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "opt-a")
	require.NoError(t, err)

	require.NotNil(t, res.Best)
	assert.Equal(t, 4, res.Generations)
	assert.Equal(t, int64(8*5), res.Evals)
	assert.Zero(t, res.Seeded)

	// selection keeps the better member, so the final best cannot be
	// worse than any member of the initial population
	require.NotEmpty(t, archive.batches)
	for _, d := range archive.batches[0] {
		assert.LessOrEqual(t, res.Best.Obj, d.Obj)
	}

	// free vectors stay inside bounds with integral layer selectors
	b := e.Codec().Bounds()
	require.Len(t, res.BestVec, b.NVar)
	for j, v := range res.BestVec {
		assert.GreaterOrEqual(t, v, b.Lower[j])
		assert.LessOrEqual(t, v, b.Upper[j])
		if b.Discrete[j] {
			assert.Equal(t, math.Round(v), v)
		}
	}
}

func TestRun_SeedsInitialPopulation(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, solver.Func(func(context.Context, geometry.Winding) (solver.Performance, error) {
		return solver.Performance{Loss: []float64{0}, Penalty: []float64{0}}, nil
	}))
	seeds := &fakeSeeds{designs: []*evaluate.Design{
		{ID: 17, Winding: validWinding()},
	}}

	cfg := testOptimizeConfig()
	cfg.NSeed = 3
	cfg.CondSeed = 0
	o, err := optimize.New(cfg, e, seeds, nil, nil, nil)
	require.NoError(t, err)

	res, err := o.Run(context.Background(), "opt-b")
	require.NoError(t, err)

	assert.Equal(t, "opt-b", seeds.study)
	assert.Zero(t, seeds.condMax)
	assert.Equal(t, 3, seeds.limit)
	assert.Equal(t, 1, res.Seeded)

	// the seeded straight trace is valid with zero loss, nothing beats it
	require.NotNil(t, res.Best)
	assert.Zero(t, res.Best.Obj)
}

func TestRun_ArchiveFailureStopsRun(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)
	archive := &fakeArchive{err: errors.New(errors.ErrCodeStudyNotFound, "boom")}
	o, err := optimize.New(testOptimizeConfig(), e, nil, archive, nil, nil)
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "opt-c")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStudyNotFound))
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)
	o, err := optimize.New(testOptimizeConfig(), e, nil, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx, "opt-d")
	assert.ErrorIs(t, err, context.Canceled)
}