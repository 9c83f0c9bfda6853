package evaluate_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/encoding"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/domain/objective"
	"github.com/coilforge/coilforge/internal/domain/solver"
	"github.com/coilforge/coilforge/pkg/errors"
	"github.com/coilforge/coilforge/pkg/types/common"
)

func testConfig() (config.EncodingConfig, config.BoardConfig, config.RuleConfig, config.GeneratorConfig, config.ObjectiveConfig) {
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
			Angle:     common.Range{Min: 75, Max: 360},
			Width:     common.Range{Min: 50e-6, Max: 500e-6},
			Length:    common.Range{Min: 50e-6, Max: math.Inf(1)},
			Radius:    common.Range{Min: math.Inf(-1), Max: 45},
			Diff:      common.Range{Min: math.Inf(-1), Max: 0.1},
		},
		Clamp: common.Range{Min: -10, Max: 10},
		Distance: config.DistanceOptions{
			SizeMin: 10, DisResample: 20e-6, TolAngle: 120, TolAdd: 100e-6,
		},
		Average: config.AverageOptions{
			SizeMin: 10, WindowConv: "boxcar", LengthMin: 50e-6, DisResample: 20e-6, DisAverage: 100e-6,
		},
	}
	gen := config.GeneratorConfig{SegmentMin: 50e-6, AngleMin: 75}
	obj := config.ObjectiveConfig{
		CondScale: 1, CondMax: 100,
		ValidityScale: 1, ValidityMax: 100,
		ScoreScale: 1, ScoreMax: 100,
		LossScale:    []float64{1},
		PenaltyScale: []float64{1},
		CondSolve:    0,
	}
	return enc, board, rules, gen, obj
}

func newTestEvaluator(t *testing.T, slv solver.Solver) *evaluate.Evaluator {
	t.Helper()
	enc, board, rules, gen, obj := testConfig()

	codec, err := encoding.NewCodec(enc, board)
	require.NoError(t, err)
	checker, err := drc.NewChecker(rules, gen, enc, board)
	require.NoError(t, err)
	scorer, err := objective.NewScorer(obj)
	require.NoError(t, err)

	return evaluate.New(codec, checker, scorer, slv, nil, nil)
}

// validWinding is a straight trace that passes every rule of testConfig.
func validWinding() geometry.Winding {
	return geometry.Winding{
		Coord: []geometry.Point{
			{X: -0.4e-3, Y: 0}, {X: -0.133e-3, Y: 0}, {X: 0.133e-3, Y: 0}, {X: 0.4e-3, Y: 0},
		},
		Width: []float64{100e-6, 100e-6, 100e-6, 100e-6},
		Layer: []int{0, 0, 0},
	}
}

func TestEvaluateWinding_ValidDesignIsSolved(t *testing.T) {
	t.Parallel()

	perf := solver.Performance{Loss: []float64{2.5}, Penalty: []float64{0}}
	e := newTestEvaluator(t, solver.Func(func(_ context.Context, w geometry.Winding) (solver.Performance, error) {
		assert.Equal(t, 4, w.Size())
		return perf, nil
	}))

	d := e.EvaluateWinding(context.Background(), validWinding())

	assert.True(t, d.Checked)
	assert.True(t, d.Valid())
	assert.True(t, d.Solved)
	assert.True(t, d.Scored)
	assert.Equal(t, perf.Loss, d.Loss)
	assert.Negative(t, d.Cond)
	assert.Zero(t, d.ValidityTerm)
	assert.InDelta(t, 2.5, d.Score, 1e-12)
	assert.InDelta(t, 2.5, d.Obj, 1e-12)
	assert.False(t, d.CreatedAt.IsZero())
}

func TestEvaluateWinding_InvalidDesignSkipsSolver(t *testing.T) {
	t.Parallel()

	called := false
	e := newTestEvaluator(t, solver.Func(func(context.Context, geometry.Winding) (solver.Performance, error) {
		called = true
		return solver.Performance{}, nil
	}))

	w := validWinding()
	// Push the trace end outside the outline.
	w.Coord[2].X = 0.7e-3

	d := e.EvaluateWinding(context.Background(), w)

	assert.True(t, d.Checked)
	assert.False(t, d.Valid())
	assert.Positive(t, d.Cond)
	assert.False(t, called)
	assert.False(t, d.Solved)
	// Unsolved designs score the ceiling.
	assert.InDelta(t, 100, d.Score, 1e-12)
	assert.Positive(t, d.ValidityTerm)
}

func TestEvaluateWinding_SolverFailureScoresWorstCase(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, solver.Func(func(context.Context, geometry.Winding) (solver.Performance, error) {
		return solver.Performance{}, errors.New(errors.ErrCodeSolverFailed, "mesh did not converge")
	}))

	d := e.EvaluateWinding(context.Background(), validWinding())

	assert.True(t, d.Valid())
	assert.False(t, d.Solved)
	assert.InDelta(t, 100, d.Score, 1e-12)
	assert.InDelta(t, 100, d.Obj, 1e-12)
}

func TestEvaluateWinding_NilSolver(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)
	d := e.EvaluateWinding(context.Background(), validWinding())

	assert.True(t, d.Valid())
	assert.False(t, d.Solved)
	assert.InDelta(t, 100, d.Score, 1e-12)
}

func TestEvaluate_DecodesVector(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)

	vec, err := e.Codec().Encode(validWinding())
	require.NoError(t, err)

	d, err := e.Evaluate(context.Background(), vec)
	require.NoError(t, err)
	assert.True(t, d.Valid())
	assert.True(t, d.Winding.Equal(validWinding(), 1e-9))
}

func TestEvaluate_BadVectorLength(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)
	_, err := e.Evaluate(context.Background(), make([]float64, 3))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVectorLength))
}

func TestEvalCond(t *testing.T) {
	t.Parallel()

	e := newTestEvaluator(t, nil)

	vec, err := e.Codec().Encode(validWinding())
	require.NoError(t, err)

	cond, err := e.EvalCond(vec)
	require.NoError(t, err)
	assert.Negative(t, cond)
}
