// Package evaluate runs the full evaluation pipeline for one candidate:
// decode, rule check, optional field solve, score.  Failures at any stage
// degrade to worst-case scalars instead of aborting; a batch of thousands
// of candidates must survive individual bad designs.
package evaluate

import (
	"context"
	"time"

	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/encoding"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/domain/objective"
	"github.com/coilforge/coilforge/internal/domain/solver"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
)

// Evaluator wires the codec, the rule checker, the scorer, and the field
// solver into one pipeline.  It is stateless and safe for concurrent use;
// parallel workers share a single Evaluator.
type Evaluator struct {
	codec   *encoding.Codec
	checker *drc.Checker
	scorer  *objective.Scorer
	slv     solver.Solver
	log     logging.Logger
	metrics *prometheus.CoilMetrics
}

// New assembles an Evaluator.  A nil solver disables solving (every design
// scores the ceiling); a nil logger falls back to the no-op logger.
func New(codec *encoding.Codec, checker *drc.Checker, scorer *objective.Scorer, slv solver.Solver, log logging.Logger, metrics *prometheus.CoilMetrics) *Evaluator {
	if slv == nil {
		slv = solver.Unavailable()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Evaluator{
		codec:   codec,
		checker: checker,
		scorer:  scorer,
		slv:     slv,
		log:     log.Named("evaluate"),
		metrics: metrics,
	}
}

// EvalCond decodes a vector and returns only the scalar constraint value.
// This is the cheap path the optimizer uses for constraint handling and
// seeding filters; no solver is involved.
func (e *Evaluator) EvalCond(vec []float64) (float64, error) {
	w, err := e.codec.Decode(vec)
	if err != nil {
		return 0, err
	}
	res, checked := e.check(w)
	return e.scorer.Cond(res, checked), nil
}

// Evaluate decodes a vector and runs the full pipeline.  A malformed
// vector is a configuration error and is returned as one; everything past
// decoding degrades instead of failing.
func (e *Evaluator) Evaluate(ctx context.Context, vec []float64) (*Design, error) {
	w, err := e.codec.Decode(vec)
	if err != nil {
		return nil, err
	}
	return e.EvaluateWinding(ctx, w), nil
}

// EvaluateWinding runs rule check, conditional solve, and scoring for an
// already-decoded winding.
func (e *Evaluator) EvaluateWinding(ctx context.Context, w geometry.Winding) *Design {
	d := &Design{
		Winding:   w,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	d.Validity, d.Checked = e.check(w)
	d.Cond = e.scorer.Cond(d.Validity, d.Checked)
	prometheus.RecordEvaluation(e.metrics, d.Valid(), time.Since(start))
	e.countViolations(d)

	if d.Checked && e.scorer.ShouldSolve(d.Cond) {
		solveStart := time.Now()
		perf, err := e.slv.Solve(ctx, w)
		prometheus.RecordSolverRun(e.metrics, err == nil, time.Since(solveStart))
		if err != nil {
			e.log.Warn("field solver failed, scoring worst case",
				logging.Err(err),
				logging.Float64("cond", d.Cond))
		} else {
			d.Solved = true
			d.Scored = true
			d.Loss = perf.Loss
			d.Penalty = perf.Penalty
		}
	}

	d.ValidityTerm = e.scorer.Validity(d.Validity, d.Checked)
	d.Score = e.scorer.Score(d.Loss, d.Penalty, d.Solved && d.Scored)
	d.Obj = e.scorer.Objective(d.ValidityTerm, d.Score)
	return d
}

// Codec exposes the evaluator's codec; callers need it for vector bounds
// and re-encoding.
func (e *Evaluator) Codec() *encoding.Codec {
	return e.codec
}

// Checker exposes the rule checker for partial checks during generation.
func (e *Evaluator) Checker() *drc.Checker {
	return e.checker
}

// Scorer exposes the objective scorer.
func (e *Evaluator) Scorer() *objective.Scorer {
	return e.scorer
}

// check absorbs rule-check failures: a winding the checker cannot process
// stays unchecked and is scored at the ceilings.
func (e *Evaluator) check(w geometry.Winding) (drc.Results, bool) {
	res, err := e.checker.Check(w)
	if err != nil {
		e.log.Error("rule check failed", logging.Err(err), logging.Int("n_wdg", w.Size()))
		return drc.Results{}, false
	}
	return res, true
}

func (e *Evaluator) countViolations(d *Design) {
	if e.metrics == nil || !d.Checked {
		return
	}
	for _, cat := range drc.Categories() {
		if d.Validity.Get(cat) > 0 {
			e.metrics.RuleViolationsTotal.WithLabelValues(cat.String()).Inc()
		}
	}
}
