package objective_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/objective"
	"github.com/coilforge/coilforge/pkg/errors"
)

func testObjective() config.ObjectiveConfig {
	return config.ObjectiveConfig{
		CondScale:     1.0,
		CondMax:       100,
		ValidityScale: 2.0,
		ValidityMax:   100,
		ScoreScale:    0.5,
		ScoreMax:      100,
		LossScale:     []float64{1, 10},
		PenaltyScale:  []float64{5},
		CondSolve:     0,
	}
}

func newScorer(t *testing.T) *objective.Scorer {
	t.Helper()
	s, err := objective.NewScorer(testObjective())
	require.NoError(t, err)
	return s
}

func TestNewScorer_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.ObjectiveConfig)
	}{
		{"zero cond max", func(c *config.ObjectiveConfig) { c.CondMax = 0 }},
		{"negative validity max", func(c *config.ObjectiveConfig) { c.ValidityMax = -1 }},
		{"zero score scale", func(c *config.ObjectiveConfig) { c.ScoreScale = 0 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testObjective()
			tt.mutate(&cfg)
			_, err := objective.NewScorer(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeObjectiveInvalid))
		})
	}
}

func TestCond(t *testing.T) {
	t.Parallel()

	s := newScorer(t)

	t.Run("unchecked hits ceiling", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 100, s.Cond(drc.Results{}, false), 1e-12)
	})

	t.Run("violations sum", func(t *testing.T) {
		t.Parallel()
		var r drc.Results
		r[drc.CategoryClearance] = 1.5
		r[drc.CategoryLength] = 0.5
		assert.InDelta(t, 2.0, s.Cond(r, true), 1e-12)
	})

	t.Run("satisfied uses most critical", func(t *testing.T) {
		t.Parallel()
		var r drc.Results
		for i := range r {
			r[i] = -2
		}
		r[drc.CategoryAngle] = -0.25
		assert.InDelta(t, -0.25, s.Cond(r, true), 1e-12)
	})

	t.Run("capped at ceiling", func(t *testing.T) {
		t.Parallel()
		var r drc.Results
		r[drc.CategoryBoundary] = 1e6
		assert.InDelta(t, 100, s.Cond(r, true), 1e-12)
	})
}

func TestShouldSolve(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	assert.True(t, s.ShouldSolve(-0.5))
	assert.True(t, s.ShouldSolve(0))
	assert.False(t, s.ShouldSolve(0.1))
}

func TestValidity(t *testing.T) {
	t.Parallel()

	s := newScorer(t)

	var valid drc.Results
	for i := range valid {
		valid[i] = -1
	}
	assert.Zero(t, s.Validity(valid, true))

	var r drc.Results
	r[drc.CategoryWidth] = 3
	assert.InDelta(t, 6, s.Validity(r, true), 1e-12)

	assert.InDelta(t, 100, s.Validity(drc.Results{}, false), 1e-12)

	r[drc.CategoryWidth] = 1e9
	assert.InDelta(t, 100, s.Validity(r, true), 1e-12)
}

// Raising any single rule-check result must never lower validity, whatever
// the other categories hold.
func TestValidity_MonotoneInViolations(t *testing.T) {
	t.Parallel()

	s := newScorer(t)

	bases := []struct {
		name  string
		setup func(*drc.Results)
	}{
		{"all satisfied", func(r *drc.Results) {
			for i := range r {
				r[i] = -1
			}
		}},
		{"mixed", func(r *drc.Results) {
			r[drc.CategoryClearance] = 0.5
			r[drc.CategoryLength] = -0.2
		}},
		{"near ceiling", func(r *drc.Results) {
			r[drc.CategoryBoundary] = 49
		}},
	}
	steps := []float64{-1, -0.1, 0, 0.1, 1, 10, 1e3}

	for _, base := range bases {
		base := base
		t.Run(base.name, func(t *testing.T) {
			t.Parallel()
			for _, cat := range drc.Categories() {
				prev := math.Inf(-1)
				for _, v := range steps {
					var r drc.Results
					base.setup(&r)
					r[cat] = v
					got := s.Validity(r, true)
					assert.GreaterOrEqual(t, got, prev,
						"category %s at %v", cat, v)
					assert.GreaterOrEqual(t, got, 0.0)
					prev = got
				}
			}
		})
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	s := newScorer(t)

	t.Run("combines loss and penalty", func(t *testing.T) {
		t.Parallel()
		// 0.5 * (2*1 + 0.3*10 + 0.4*5) = 3.5
		got := s.Score([]float64{2, 0.3}, []float64{0.4}, true)
		assert.InDelta(t, 3.5, got, 1e-12)
	})

	t.Run("unsolved hits ceiling", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 100, s.Score(nil, nil, false), 1e-12)
	})

	t.Run("length mismatch hits ceiling", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 100, s.Score([]float64{1}, []float64{0.4}, true), 1e-12)
	})

	t.Run("clamped to [0, ceiling]", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 100, s.Score([]float64{1e9, 0}, []float64{0}, true), 1e-12)
		assert.Zero(t, s.Score([]float64{-5, 0}, []float64{0}, true))
	})
}

func TestObjective(t *testing.T) {
	t.Parallel()

	s := newScorer(t)
	assert.InDelta(t, 7.25, s.Objective(3.75, 3.5), 1e-12)

	// The validity term dominates an invalid design even with a perfect score.
	assert.Greater(t, s.Objective(100, 0), s.Objective(0, 3.5))
}
