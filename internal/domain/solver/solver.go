// Package solver defines the boundary to the external field solver.  The
// core never computes converter physics itself; it hands a finalized
// winding out and receives loss and penalty vectors back.
package solver

import (
	"context"

	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/pkg/errors"
)

// Performance is the solved electrical outcome of one winding: converter
// operating losses by category and operating-limit penalties (current
// density, ripple, field strength).  Both vectors have the fixed length
// negotiated with the objective scale vectors.
type Performance struct {
	Loss    []float64 `json:"loss"`
	Penalty []float64 `json:"penalty"`
}

// Solver computes the physical performance of a finalized winding.
// Implementations are expected to honor context cancellation; a solve can
// take seconds to minutes.
type Solver interface {
	Solve(ctx context.Context, w geometry.Winding) (Performance, error)
}

// Func adapts a plain function to the Solver interface.
type Func func(ctx context.Context, w geometry.Winding) (Performance, error)

// Solve implements Solver.
func (f Func) Solve(ctx context.Context, w geometry.Winding) (Performance, error) {
	return f(ctx, w)
}

// Unavailable returns a Solver that fails every call.  It is wired in when
// the process runs without a field solver (pure geometry workloads); the
// scorer maps the failure to the worst-case score.
func Unavailable() Solver {
	return Func(func(context.Context, geometry.Winding) (Performance, error) {
		return Performance{}, errors.New(errors.ErrCodeSolverUnavailable, "no field solver configured")
	})
}
