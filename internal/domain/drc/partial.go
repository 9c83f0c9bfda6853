package drc

import (
	"math"

	"github.com/coilforge/coilforge/internal/domain/geometry"
)

// PartialCheck runs the cheap rule subset used to steer random growth:
// minimum clear segment length, minimum bend angle, per-layer
// self-intersection, and outline containment of the unmasked region.
// It never allocates shape sets and is meant to be called once per
// candidate insertion.
func (c *Checker) PartialCheck(w geometry.Winding) bool {
	n := w.Size()
	if n < 2 || w.Validate() != nil {
		return false
	}

	for _, l := range geometry.ClearLengths(w.Coord, w.Width) {
		if l < c.segmentMin {
			return false
		}
	}

	// Bend angles in degrees; nodes at a layer switch connect through a
	// via and carry no copper bend, so they are unconstrained.
	for i, a := range geometry.Angles(w.Coord) {
		if w.Layer[i] != w.Layer[i+1] {
			continue
		}
		if a*180/math.Pi < c.angleMin {
			return false
		}
	}

	if !c.layersAreSimple(w) {
		return false
	}

	return c.unmaskedInsideOutline(w)
}

// layersAreSimple verifies that the centerline polylines on each physical
// layer neither self-intersect nor cross each other.
func (c *Checker) layersAreSimple(w geometry.Winding) bool {
	byLayer := map[int][][]geometry.Point{}
	start := 0
	for i := 1; i < len(w.Layer); i++ {
		if w.Layer[i] != w.Layer[i-1] {
			byLayer[w.Layer[i-1]] = append(byLayer[w.Layer[i-1]], w.Coord[start:i+1])
			start = i
		}
	}
	last := w.Layer[len(w.Layer)-1]
	byLayer[last] = append(byLayer[last], w.Coord[start:])

	for _, lines := range byLayer {
		for _, line := range lines {
			if !geometry.PolylineIsSimple(line) {
				return false
			}
		}
		for i := 0; i < len(lines); i++ {
			for j := i + 1; j < len(lines); j++ {
				if polylinesIntersect(lines[i], lines[j]) {
					return false
				}
			}
		}
	}
	return true
}

func polylinesIntersect(a, b []geometry.Point) bool {
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			if geometry.SegmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// unmaskedInsideOutline checks that the non-terminal slice of the winding
// stays inside the usable board region, both as a polyline and as buffered
// node disks.  Masked terminal nodes may sit outside the board.
func (c *Checker) unmaskedInsideOutline(w geometry.Winding) bool {
	n := w.Size()
	lo, hi := c.maskSrc, n-c.maskSink
	if lo >= hi {
		return true
	}
	coords := w.Coord[lo:hi]
	if len(coords) > 1 && !c.outline.ContainsPolyline(coords) {
		return false
	}
	for i, p := range coords {
		if !c.outline.ContainsCircle(p, w.Width[lo+i]/2) {
			return false
		}
	}
	return true
}
