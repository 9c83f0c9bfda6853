// Package drc checks winding geometries against the configured design
// rules.  Every rule category yields one signed scalar: negative means the
// rule is satisfied, positive means it is violated, and the magnitude is
// the severity relative to the configured limit.  The checker never fails
// on degenerate geometry; it reports worst-case results so the optimizer
// always receives an orderable value.
package drc

import (
	"github.com/coilforge/coilforge/pkg/errors"
)

// Category enumerates the design-rule categories.  The set is closed: every
// checked winding carries exactly one result per category.
type Category int

const (
	// CategoryBoundary measures copper outside the board outline or
	// inside a keepout.
	CategoryBoundary Category = iota
	// CategoryClearance measures the spacing between distinct copper
	// shapes on the same layer.
	CategoryClearance
	// CategoryDistance measures the self-clearance within a single trace.
	CategoryDistance
	// CategoryAngle measures the sharpest bend angle of every trace.
	CategoryAngle
	// CategoryWidth measures the trace widths against their bounds.
	CategoryWidth
	// CategoryLength measures each trace's total length.
	CategoryLength
	// CategoryRadius measures the locally averaged curvature rate.
	CategoryRadius
	// CategoryDiff measures the locally averaged width gradient.
	CategoryDiff

	numCategories
)

var categoryNames = [numCategories]string{
	"boundary",
	"clearance",
	"distance",
	"angle",
	"width",
	"length",
	"radius",
	"diff",
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return "unknown"
	}
	return categoryNames[c]
}

// Categories returns all rule categories in their canonical order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// NumCategories is the size of the closed category set.
const NumCategories = int(numCategories)

// Results holds one signed, clamped scalar per rule category.
type Results [numCategories]float64

// Get returns the result for one category.
func (r Results) Get(c Category) float64 {
	return r[c]
}

// Valid reports whether every category is satisfied (non-positive).
func (r Results) Valid() bool {
	for _, v := range r {
		if v > 0 {
			return false
		}
	}
	return true
}

// PositiveSum returns the sum of the positive (violated) parts.
func (r Results) PositiveSum() float64 {
	var s float64
	for _, v := range r {
		if v > 0 {
			s += v
		}
	}
	return s
}

// Max returns the largest (most critical) category result.
func (r Results) Max() float64 {
	max := r[0]
	for _, v := range r[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Vector returns the results as a flat slice in canonical category order,
// the persisted representation.
func (r Results) Vector() []float64 {
	out := make([]float64, numCategories)
	copy(out, r[:])
	return out
}

// ResultsFromVector rebuilds Results from the persisted representation.
func ResultsFromVector(vec []float64) (Results, error) {
	var r Results
	if len(vec) != int(numCategories) {
		return r, errors.New(errors.ErrCodeRuleUnknown, "validity vector length mismatch").
			WithDetailf("got %d want %d", len(vec), int(numCategories))
	}
	copy(r[:], vec)
	return r, nil
}
