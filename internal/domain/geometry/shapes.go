package geometry

import "github.com/coilforge/coilforge/pkg/errors"

// ShapeKind tags the copper primitives a winding decomposes into.
type ShapeKind int

const (
	KindTrace ShapeKind = iota
	KindVia
	KindPad
)

func (k ShapeKind) String() string {
	switch k {
	case KindTrace:
		return "trace"
	case KindVia:
		return "via"
	case KindPad:
		return "pad"
	default:
		return "unknown"
	}
}

// Shape is one copper primitive: a single-layer trace polyline, a via
// spanning the layers between two traces, or a terminal pad.  MaskExempt
// marks nodes that may sit outside the board outline (the masked terminal
// regions, e.g. external pads).
type Shape struct {
	Kind       ShapeKind
	Coord      []Point
	Width      []float64
	Layers     []int
	MaskExempt []bool
}

// OnLayer reports whether the shape occupies the given layer index.
func (s Shape) OnLayer(layer int) bool {
	for _, l := range s.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// ShapeSet is the full copper decomposition of one winding: traces split at
// every layer switch, one via per switch, plus the two terminal pads.  The
// rule checker and the exporters consume it read-only.
type ShapeSet struct {
	Traces []Shape
	Vias   []Shape
	Src    Shape
	Sink   Shape
}

// All returns traces, vias, and terminals as one slice.
func (ss ShapeSet) All() []Shape {
	out := make([]Shape, 0, len(ss.Traces)+len(ss.Vias)+2)
	out = append(out, ss.Traces...)
	out = append(out, ss.Vias...)
	out = append(out, ss.Src, ss.Sink)
	return out
}

// Conductors returns traces and vias without the terminal pads.
func (ss ShapeSet) Conductors() []Shape {
	out := make([]Shape, 0, len(ss.Traces)+len(ss.Vias))
	out = append(out, ss.Traces...)
	out = append(out, ss.Vias...)
	return out
}

// BuildShapes decomposes a winding into its copper primitives.  The winding
// is split into single-layer traces at every layer switch; the switch node
// becomes a via spanning the layers strictly between the two trace layers.
// The first maskSrc and last maskSink nodes are outline-exempt.
func BuildShapes(w Winding, maskSrc, maskSink int) (ShapeSet, error) {
	if err := w.Validate(); err != nil {
		return ShapeSet{}, err
	}
	n := w.Size()

	exempt := make([]bool, n)
	for i := 0; i < maskSrc && i < n; i++ {
		exempt[i] = true
	}
	for i := n - maskSink; i < n; i++ {
		if i >= 0 {
			exempt[i] = true
		}
	}

	// Indices of the layer switches: segment i-1 and segment i differ.
	var switches []int
	for i := 1; i < len(w.Layer); i++ {
		if w.Layer[i] != w.Layer[i-1] {
			switches = append(switches, i)
		}
	}

	ss := ShapeSet{}

	for _, idx := range switches {
		lo, hi := w.Layer[idx-1], w.Layer[idx]
		if lo > hi {
			lo, hi = hi, lo
		}
		var span []int
		for l := lo + 1; l < hi; l++ {
			span = append(span, l)
		}
		ss.Vias = append(ss.Vias, Shape{
			Kind:       KindVia,
			Coord:      []Point{w.Coord[idx]},
			Width:      []float64{w.Width[idx]},
			Layers:     span,
			MaskExempt: []bool{exempt[idx]},
		})
	}

	starts := append([]int{0}, switches...)
	ends := append(append([]int{}, switches...), n-1)
	for k := range starts {
		a, b := starts[k], ends[k]
		if a >= b {
			return ShapeSet{}, errors.New(errors.ErrCodeGeometryDegenerate, "empty trace slice at layer switch").
				WithDetailf("start %d end %d", a, b)
		}
		ss.Traces = append(ss.Traces, Shape{
			Kind:       KindTrace,
			Coord:      append([]Point{}, w.Coord[a:b+1]...),
			Width:      append([]float64{}, w.Width[a:b+1]...),
			Layers:     []int{w.Layer[a]},
			MaskExempt: append([]bool{}, exempt[a:b+1]...),
		})
	}

	first := ss.Traces[0]
	last := ss.Traces[len(ss.Traces)-1]
	ss.Src = Shape{
		Kind:       KindPad,
		Coord:      []Point{first.Coord[0]},
		Width:      []float64{first.Width[0]},
		Layers:     first.Layers,
		MaskExempt: []bool{first.MaskExempt[0]},
	}
	ss.Sink = Shape{
		Kind:       KindPad,
		Coord:      []Point{last.Coord[len(last.Coord)-1]},
		Width:      []float64{last.Width[len(last.Width)-1]},
		Layers:     last.Layers,
		MaskExempt: []bool{last.MaskExempt[len(last.MaskExempt)-1]},
	}

	return ss, nil
}
