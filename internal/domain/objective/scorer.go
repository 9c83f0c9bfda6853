// Package objective folds rule-check results and solver performance into
// the scalars consumed by the optimizer: a constraint value (cond), a
// validity value, a performance score, and their sum, the objective.
// Lower is always better; failed stages yield the configured ceilings so
// every candidate stays finite and orderable.
package objective

import (
	"math"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/pkg/errors"
)

// Scorer is immutable after construction and safe for concurrent use.
type Scorer struct {
	cfg config.ObjectiveConfig
}

// NewScorer validates the combination weights and ceilings.
func NewScorer(cfg config.ObjectiveConfig) (*Scorer, error) {
	if cfg.CondMax <= 0 || cfg.ValidityMax <= 0 || cfg.ScoreMax <= 0 {
		return nil, errors.New(errors.ErrCodeObjectiveInvalid, "objective ceilings must be positive").
			WithDetailf("cond_max=%v validity_max=%v score_max=%v", cfg.CondMax, cfg.ValidityMax, cfg.ScoreMax)
	}
	if cfg.CondScale <= 0 || cfg.ValidityScale <= 0 || cfg.ScoreScale <= 0 {
		return nil, errors.New(errors.ErrCodeObjectiveInvalid, "objective scales must be positive")
	}
	return &Scorer{cfg: cfg}, nil
}

// Cond returns the scalar constraint value of a rule check: the scaled sum
// of the violations, or the scaled most critical (negative) result when
// every rule is satisfied.  An unchecked design gets the ceiling.
func (s *Scorer) Cond(r drc.Results, checked bool) float64 {
	if !checked {
		return s.cfg.CondMax
	}
	cond := r.PositiveSum()
	if cond == 0 {
		cond = r.Max()
	}
	return math.Min(s.cfg.CondScale*cond, s.cfg.CondMax)
}

// ShouldSolve reports whether a design with the given constraint value is
// close enough to validity to be worth a field-solver run.
func (s *Scorer) ShouldSolve(cond float64) bool {
	return cond <= s.cfg.CondSolve
}

// Validity returns the non-negative validity term of the objective: zero
// for a fully valid design, the scaled violation sum otherwise, the
// ceiling when the design was never checked.
func (s *Scorer) Validity(r drc.Results, checked bool) float64 {
	if !checked {
		return s.cfg.ValidityMax
	}
	return math.Min(s.cfg.ValidityScale*r.PositiveSum(), s.cfg.ValidityMax)
}

// Score combines the solver loss and penalty vectors into the performance
// term: score_scale * (loss . loss_scale + penalty . penalty_scale),
// clamped into [0, score_max].  An unsolved design, or vectors whose
// length disagrees with the configured scales, get the ceiling; a solver
// problem must never abort a batch.
func (s *Scorer) Score(loss, penalty []float64, solved bool) float64 {
	if !solved {
		return s.cfg.ScoreMax
	}
	if len(loss) != len(s.cfg.LossScale) || len(penalty) != len(s.cfg.PenaltyScale) {
		return s.cfg.ScoreMax
	}
	combined := dot(loss, s.cfg.LossScale) + dot(penalty, s.cfg.PenaltyScale)
	score := s.cfg.ScoreScale * combined
	if math.IsNaN(score) || score > s.cfg.ScoreMax {
		return s.cfg.ScoreMax
	}
	return math.Max(score, 0)
}

// Objective is the final fitness handed to the optimizer: the validity
// term dominates while the geometry is invalid, the performance term once
// validity reaches zero.
func (s *Scorer) Objective(validity, score float64) float64 {
	return validity + score
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
