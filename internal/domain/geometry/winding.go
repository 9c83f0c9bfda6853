// Package geometry defines the winding value object — the structured
// trace-and-via description of a multi-layer air-core inductor — together
// with the polygon, primitive, and shape-decomposition helpers the encoder,
// generator, and design rule checker operate on.
//
// A winding is an ordered chain of nodes.  Each node has a 2D coordinate and
// a trace width; each of the n-1 segments between consecutive nodes carries a
// layer index.  A change of layer between two consecutive segments implies a
// via at the shared node.  Windings are value objects: every operation
// returns a fresh winding and never mutates its input, which is what allows
// evaluations to run on parallel workers without coordination.
package geometry

import (
	"math"

	"github.com/coilforge/coilforge/pkg/errors"
)

// Point is a 2D coordinate in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Mid returns the midpoint of p and q.
func (p Point) Mid(q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Winding is the node chain describing one inductor.
//
// Invariants (checked by Validate):
//   - len(Coord) == len(Width) == Size()
//   - len(Layer) == Size()-1
//   - Size() >= 2 for any winding handed to the rule checker
type Winding struct {
	Coord []Point   `json:"coord"`
	Width []float64 `json:"width"`
	Layer []int     `json:"layer"`
}

// Size returns the number of nodes.
func (w Winding) Size() int {
	return len(w.Coord)
}

// Validate checks the structural invariants of the winding.
func (w Winding) Validate() error {
	n := w.Size()
	if n < 2 {
		return errors.New(errors.ErrCodeGeometrySize, "winding needs at least two nodes").
			WithDetailf("got %d", n)
	}
	if len(w.Width) != n {
		return errors.New(errors.ErrCodeGeometrySize, "width count does not match node count").
			WithDetailf("nodes %d, widths %d", n, len(w.Width))
	}
	if len(w.Layer) != n-1 {
		return errors.New(errors.ErrCodeGeometrySize, "layer count must be node count minus one").
			WithDetailf("nodes %d, layers %d", n, len(w.Layer))
	}
	for i, wd := range w.Width {
		if wd <= 0 || math.IsNaN(wd) {
			return errors.New(errors.ErrCodeGeometryInvalid, "trace width must be positive").
				WithDetailf("node %d width %v", i, wd)
		}
	}
	return nil
}

// Clone returns a deep copy of the winding.
func (w Winding) Clone() Winding {
	out := Winding{
		Coord: make([]Point, len(w.Coord)),
		Width: make([]float64, len(w.Width)),
		Layer: make([]int, len(w.Layer)),
	}
	copy(out.Coord, w.Coord)
	copy(out.Width, w.Width)
	copy(out.Layer, w.Layer)
	return out
}

// Merge concatenates several windings into one chain, in order.  Layer counts
// follow the node counts: a part with k nodes contributes k segment layers
// except that the total ends up one short of the total node count, matching
// the n-1 invariant.  Parts built by the generator carry len(Layer) equal to
// their node count (the trailing layer bridges into the following part);
// the final part's bridge layer is dropped.
func Merge(parts ...Winding) Winding {
	var out Winding
	for _, p := range parts {
		out.Coord = append(out.Coord, p.Coord...)
		out.Width = append(out.Width, p.Width...)
		out.Layer = append(out.Layer, p.Layer...)
	}
	if len(out.Layer) >= out.Size() && out.Size() > 0 {
		out.Layer = out.Layer[:out.Size()-1]
	}
	return out
}

// InsertNode returns a copy of the winding with a single node spliced in at
// node index nodeIdx and its segment layer spliced in at layer index
// layerIdx.  The two indices differ by at most one: the caller decides on
// which side of the new node the layer switch (if any) lands.
func (w Winding) InsertNode(nodeIdx, layerIdx int, pt Point, width float64, layer int) Winding {
	out := Winding{
		Coord: make([]Point, 0, len(w.Coord)+1),
		Width: make([]float64, 0, len(w.Width)+1),
		Layer: make([]int, 0, len(w.Layer)+1),
	}
	out.Coord = append(out.Coord, w.Coord[:nodeIdx]...)
	out.Coord = append(out.Coord, pt)
	out.Coord = append(out.Coord, w.Coord[nodeIdx:]...)

	out.Width = append(out.Width, w.Width[:nodeIdx]...)
	out.Width = append(out.Width, width)
	out.Width = append(out.Width, w.Width[nodeIdx:]...)

	out.Layer = append(out.Layer, w.Layer[:layerIdx]...)
	out.Layer = append(out.Layer, layer)
	out.Layer = append(out.Layer, w.Layer[layerIdx:]...)
	return out
}

// SplitLongest returns a copy of the winding with one node inserted at the
// midpoint of the longest clear segment (center distance minus the half-width
// buffers at both ends).  Segments inside the masked terminal regions are
// never split.  Used by the encoder to resample a stored design up to the
// configured node count.
func (w Winding) SplitLongest(maskSrc, maskSink int) Winding {
	lengths := ClearLengths(w.Coord, w.Width)

	if maskSrc > 0 {
		for i := 0; i < maskSrc && i < len(lengths); i++ {
			lengths[i] = math.Inf(-1)
		}
	}
	if maskSink > 0 {
		for i := len(lengths) - maskSink; i < len(lengths); i++ {
			if i >= 0 {
				lengths[i] = math.Inf(-1)
			}
		}
	}

	idx := 0
	for i := 1; i < len(lengths); i++ {
		if lengths[i] > lengths[idx] {
			idx = i
		}
	}

	pt := w.Coord[idx].Mid(w.Coord[idx+1])
	width := (w.Width[idx] + w.Width[idx+1]) / 2
	layer := w.Layer[idx]
	return w.InsertNode(idx+1, idx+1, pt, width, layer)
}

// Equal reports whether two windings match within tol on coordinates and
// widths and exactly on layers.
func (w Winding) Equal(other Winding, tol float64) bool {
	if w.Size() != other.Size() || len(w.Layer) != len(other.Layer) {
		return false
	}
	for i := range w.Coord {
		if math.Abs(w.Coord[i].X-other.Coord[i].X) > tol ||
			math.Abs(w.Coord[i].Y-other.Coord[i].Y) > tol ||
			math.Abs(w.Width[i]-other.Width[i]) > tol {
			return false
		}
	}
	for i := range w.Layer {
		if w.Layer[i] != other.Layer[i] {
			return false
		}
	}
	return true
}
