package geometry

import "github.com/coilforge/coilforge/pkg/errors"

// TerminalNode is one pinned-or-free node of a source/sink terminal.  A nil
// component is free: the decoder fills it from the variable vector and the
// generator draws it at random.  Non-nil components are pinned to the given
// physical value.
type TerminalNode struct {
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Width *float64 `json:"width,omitempty"`
	Layer *int     `json:"layer,omitempty"`
}

// Terminal is the fixed-size node list of one terminal (source or sink).
// Size is fixed per configuration: decoding always produces exactly this
// count of terminal nodes regardless of vector content.
type Terminal struct {
	Nodes []TerminalNode `json:"nodes"`
}

// Size returns the number of terminal nodes.
func (t Terminal) Size() int {
	return len(t.Nodes)
}

// Validate checks pinned components against the physical bounds of the
// design space.  A pinned coordinate outside the coordinate bounds would
// make every decoded design fail containment, so it is rejected at load
// time.  Masked terminal nodes are allowed outside the outline, which is
// why only width positivity is enforced unconditionally.
func (t Terminal) Validate() error {
	for i, n := range t.Nodes {
		if n.Width != nil && *n.Width <= 0 {
			return errors.New(errors.ErrCodeConfigTerminal, "pinned terminal width must be positive").
				WithDetailf("node %d width %v", i, *n.Width)
		}
	}
	return nil
}

// Fixed reports whether every component of every node is pinned.
func (t Terminal) Fixed() bool {
	for _, n := range t.Nodes {
		if n.X == nil || n.Y == nil || n.Width == nil || n.Layer == nil {
			return false
		}
	}
	return true
}

// F is a helper for building pinned float components in literals and tests.
func F(v float64) *float64 { return &v }

// L is a helper for building pinned layer components in literals and tests.
func L(v int) *int { return &v }
