package evaluate

import (
	"time"

	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/geometry"
)

// Design is the full evaluation record of one candidate winding: the
// geometry, the rule-check results, the solver outcome, and the derived
// scalars.  It is the unit persisted to the design table and exchanged
// between the dataset collector, the optimizer, and the exporters.
type Design struct {
	ID      int64
	StudyID int64

	Winding geometry.Winding

	// Rule check.
	Checked  bool
	Validity drc.Results
	Cond     float64

	// Solver outcome.
	Solved  bool
	Scored  bool
	Loss    []float64
	Penalty []float64

	// Objective scalars.
	ValidityTerm float64
	Score        float64
	Obj          float64

	CreatedAt time.Time
}

// Valid reports whether the design passed every rule category.
func (d *Design) Valid() bool {
	return d.Checked && d.Validity.Valid()
}
