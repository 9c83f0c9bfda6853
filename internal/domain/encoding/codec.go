// Package encoding maps between normalized variable vectors and winding
// geometries.  The vector layout interleaves the per-node components
// (x, y, width, layer selector) so that related variables sit close to each
// other for the optimizer; the layer selectors occupy the gaps between
// nodes, giving a total length of 4*n-1.
package encoding

import (
	"math"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/pkg/errors"
	"github.com/coilforge/coilforge/pkg/types/common"
)

// Codec is an immutable encoder/decoder built from a validated encoding
// configuration.  Decode and Encode are inverses within the precision of the
// normalization range; decoding is total over clamped input and never fails
// on values, only on length.
type Codec struct {
	nWdg     int
	normMin  float64
	normMax  float64
	x        common.Range
	y        common.Range
	width    common.Range
	layers   []int
	nAddSrc  int
	nAddSink int
	maskSrc  int
	maskSink int
	src      geometry.Terminal
	sink     geometry.Terminal
}

// NewCodec builds a Codec from the encoding and board sections of a
// validated configuration.
func NewCodec(enc config.EncodingConfig, board config.BoardConfig) (*Codec, error) {
	if enc.NWdg < 2 {
		return nil, errors.New(errors.ErrCodeConfigBounds, "winding size must be at least 2").
			WithDetailf("n_wdg %d", enc.NWdg)
	}
	if len(board.LayerList) == 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "layer list must not be empty")
	}
	if enc.NormMin >= enc.NormMax {
		return nil, errors.New(errors.ErrCodeConfigBounds, "normalization range is inverted").
			WithDetailf("[%v, %v]", enc.NormMin, enc.NormMax)
	}

	c := &Codec{
		nWdg:     enc.NWdg,
		normMin:  enc.NormMin,
		normMax:  enc.NormMax,
		x:        enc.X,
		y:        enc.Y,
		width:    enc.Width,
		layers:   append([]int{}, board.LayerList...),
		nAddSrc:  enc.NAddSrc,
		nAddSink: enc.NAddSink,
		maskSrc:  enc.NMaskSrc,
		maskSink: enc.NMaskSink,
		src:      terminalFromConfig(enc.SrcGeom),
		sink:     terminalFromConfig(enc.SinkGeom),
	}
	if c.src.Size() != c.nAddSrc || c.sink.Size() != c.nAddSink {
		return nil, errors.New(errors.ErrCodeConfigTerminal, "terminal node counts do not match padding").
			WithDetailf("src %d/%d sink %d/%d", c.src.Size(), c.nAddSrc, c.sink.Size(), c.nAddSink)
	}
	if err := c.src.Validate(); err != nil {
		return nil, err
	}
	if err := c.sink.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func terminalFromConfig(tc config.TerminalConfig) geometry.Terminal {
	nodes := make([]geometry.TerminalNode, len(tc.Nodes))
	for i, n := range tc.Nodes {
		nodes[i] = geometry.TerminalNode{X: n.X, Y: n.Y, Width: n.Width, Layer: n.Layer}
	}
	return geometry.Terminal{Nodes: nodes}
}

// NWdg returns the fixed node count of every decoded winding.
func (c *Codec) NWdg() int {
	return c.nWdg
}

// NVar returns the full variable-vector length: 4*n-1.
func (c *Codec) NVar() int {
	return 4*c.nWdg - 1
}

// MaskSrc returns the number of containment-exempt nodes at the source end.
func (c *Codec) MaskSrc() int {
	return c.maskSrc
}

// MaskSink returns the number of containment-exempt nodes at the sink end.
func (c *Codec) MaskSink() int {
	return c.maskSink
}

// Layers returns the configured layer list.
func (c *Codec) Layers() []int {
	return append([]int{}, c.layers...)
}

// decodeFloat rescales one normalized value into [r.Min, r.Max], clamping
// out-of-range input instead of rejecting it so that every optimizer
// proposal stays evaluable.
func (c *Codec) decodeFloat(v float64, r common.Range) float64 {
	if v < c.normMin {
		v = c.normMin
	}
	if v > c.normMax {
		v = c.normMax
	}
	t := (v - c.normMin) / (c.normMax - c.normMin)
	return r.Min + t*r.Span()
}

// encodeFloat is the inverse of decodeFloat for in-range physical values.
func (c *Codec) encodeFloat(v float64, r common.Range) float64 {
	t := (v - r.Min) / r.Span()
	return c.normMin + t*(c.normMax-c.normMin)
}

// decodeLayer rounds a selector into an index of the layer list, clamping
// out-of-range selectors to the nearest valid index.
func (c *Codec) decodeLayer(v float64) int {
	idx := int(math.Round(v))
	if idx < 0 {
		idx = 0
	}
	if idx > len(c.layers)-1 {
		idx = len(c.layers) - 1
	}
	return c.layers[idx]
}

// encodeLayer maps a physical layer back to its selector index.
func (c *Codec) encodeLayer(layer int) (float64, error) {
	for i, l := range c.layers {
		if l == layer {
			return float64(i), nil
		}
	}
	return 0, errors.New(errors.ErrCodeLayerUnknown, "layer is not in the configured layer list").
		WithDetailf("layer %d list %v", layer, c.layers)
}

// Decode converts a full normalized vector into a winding.  The interleaved
// groups are split, floats are rescaled into their physical ranges, layer
// selectors are rounded into the layer list, and the pinned terminal
// components overwrite the decoded head and tail nodes.  A wrong vector
// length is a configuration error; values never cause a failure.
func (c *Codec) Decode(vec []float64) (geometry.Winding, error) {
	if len(vec) != c.NVar() {
		return geometry.Winding{}, errors.New(errors.ErrCodeVectorLength, "variable vector length mismatch").
			WithDetailf("got %d want %d", len(vec), c.NVar())
	}

	n := c.nWdg
	w := geometry.Winding{
		Coord: make([]geometry.Point, n),
		Width: make([]float64, n),
		Layer: make([]int, n-1),
	}
	for i := 0; i < n; i++ {
		w.Coord[i].X = c.decodeFloat(vec[4*i+0], c.x)
		w.Coord[i].Y = c.decodeFloat(vec[4*i+1], c.y)
		w.Width[i] = c.decodeFloat(vec[4*i+2], c.width)
	}
	for i := 0; i < n-1; i++ {
		w.Layer[i] = c.decodeLayer(vec[4*i+3])
	}

	c.applyTerminals(&w)
	return w, nil
}

// applyTerminals overwrites the pinned head/tail components; free (nil)
// components keep their decoded values.
func (c *Codec) applyTerminals(w *geometry.Winding) {
	n := c.nWdg
	for i, node := range c.src.Nodes {
		if node.X != nil {
			w.Coord[i].X = *node.X
		}
		if node.Y != nil {
			w.Coord[i].Y = *node.Y
		}
		if node.Width != nil {
			w.Width[i] = *node.Width
		}
		// Source node i pins the layer of its outgoing segment.
		if node.Layer != nil && i < n-1 {
			w.Layer[i] = *node.Layer
		}
	}
	for j, node := range c.sink.Nodes {
		i := n - c.nAddSink + j
		if node.X != nil {
			w.Coord[i].X = *node.X
		}
		if node.Y != nil {
			w.Coord[i].Y = *node.Y
		}
		if node.Width != nil {
			w.Width[i] = *node.Width
		}
		// Sink node j pins the layer of its incoming segment.
		if node.Layer != nil && i-1 >= 0 {
			w.Layer[i-1] = *node.Layer
		}
	}
}

// Encode converts a winding back into a full normalized vector, the exact
// inverse of Decode for windings produced by this system.
func (c *Codec) Encode(w geometry.Winding) ([]float64, error) {
	if w.Size() != c.nWdg {
		return nil, errors.New(errors.ErrCodeVectorLength, "winding size does not match the encoding").
			WithDetailf("got %d want %d", w.Size(), c.nWdg)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	vec := make([]float64, c.NVar())
	for i := 0; i < c.nWdg; i++ {
		vec[4*i+0] = c.encodeFloat(w.Coord[i].X, c.x)
		vec[4*i+1] = c.encodeFloat(w.Coord[i].Y, c.y)
		vec[4*i+2] = c.encodeFloat(w.Width[i], c.width)
	}
	for i := 0; i < c.nWdg-1; i++ {
		sel, err := c.encodeLayer(w.Layer[i])
		if err != nil {
			return nil, err
		}
		vec[4*i+3] = sel
	}
	return vec, nil
}

// Fixed returns the NaN-masked vector of pinned terminal components in
// normalized coordinates: every free variable is NaN, every pinned one
// carries its encoded constant value.
func (c *Codec) Fixed() []float64 {
	vec := make([]float64, c.NVar())
	for i := range vec {
		vec[i] = math.NaN()
	}
	n := c.nWdg
	for i, node := range c.src.Nodes {
		if node.X != nil {
			vec[4*i+0] = c.encodeFloat(*node.X, c.x)
		}
		if node.Y != nil {
			vec[4*i+1] = c.encodeFloat(*node.Y, c.y)
		}
		if node.Width != nil {
			vec[4*i+2] = c.encodeFloat(*node.Width, c.width)
		}
		if node.Layer != nil && i < n-1 {
			if sel, err := c.encodeLayer(*node.Layer); err == nil {
				vec[4*i+3] = sel
			}
		}
	}
	for j, node := range c.sink.Nodes {
		i := n - c.nAddSink + j
		if node.X != nil {
			vec[4*i+0] = c.encodeFloat(*node.X, c.x)
		}
		if node.Y != nil {
			vec[4*i+1] = c.encodeFloat(*node.Y, c.y)
		}
		if node.Width != nil {
			vec[4*i+2] = c.encodeFloat(*node.Width, c.width)
		}
		if node.Layer != nil && i-1 >= 0 {
			if sel, err := c.encodeLayer(*node.Layer); err == nil {
				vec[4*(i-1)+3] = sel
			}
		}
	}
	return vec
}

// Bounds describes the free variables of the encoding for an optimizer:
// lower/upper bounds per variable and a discreteness flag for the layer
// selectors (which are rounded, not continuous).
type Bounds struct {
	NVar     int
	Lower    []float64
	Upper    []float64
	Discrete []bool
}

// Bounds returns the per-free-variable bounds, with fixed variables removed
// the same way Reduce removes them.
func (c *Codec) Bounds() Bounds {
	fixed := c.Fixed()

	var b Bounds
	for i := 0; i < c.NVar(); i++ {
		if !math.IsNaN(fixed[i]) {
			continue
		}
		if i%4 == 3 {
			b.Lower = append(b.Lower, 0)
			b.Upper = append(b.Upper, float64(len(c.layers)-1))
			b.Discrete = append(b.Discrete, true)
		} else {
			b.Lower = append(b.Lower, c.normMin)
			b.Upper = append(b.Upper, c.normMax)
			b.Discrete = append(b.Discrete, false)
		}
	}
	b.NVar = len(b.Lower)
	return b
}

// Reduce strips the fixed variables from a full vector, returning the
// free-only vector the optimizer operates on.  Fixed positions must carry
// their pinned values.
func (c *Codec) Reduce(vec []float64) ([]float64, error) {
	if len(vec) != c.NVar() {
		return nil, errors.New(errors.ErrCodeVectorLength, "variable vector length mismatch").
			WithDetailf("got %d want %d", len(vec), c.NVar())
	}
	fixed := c.Fixed()
	free := make([]float64, 0, len(vec))
	for i, v := range vec {
		if math.IsNaN(fixed[i]) {
			free = append(free, v)
			continue
		}
		if math.Abs(v-fixed[i]) > 1e-9 {
			return nil, errors.New(errors.ErrCodeVectorFixedClash, "fixed variable carries a wrong value").
				WithDetailf("index %d got %v want %v", i, v, fixed[i])
		}
	}
	return free, nil
}

// Expand merges a free-only vector with the fixed values back into a full
// vector.
func (c *Codec) Expand(free []float64) ([]float64, error) {
	fixed := c.Fixed()
	full := make([]float64, len(fixed))
	k := 0
	for i, f := range fixed {
		if math.IsNaN(f) {
			if k >= len(free) {
				return nil, errors.New(errors.ErrCodeVectorLength, "free vector is too short").
					WithDetailf("got %d", len(free))
			}
			full[i] = free[k]
			k++
			continue
		}
		full[i] = f
	}
	if k != len(free) {
		return nil, errors.New(errors.ErrCodeVectorLength, "free vector is too long").
			WithDetailf("got %d want %d", len(free), k)
	}
	return full, nil
}

// Resample grows a winding to the codec's node count by repeatedly splitting
// the longest clear segment; masked terminal segments are never split.
// Windings larger than the target are rejected: resampling only adds nodes.
func (c *Codec) Resample(w geometry.Winding) (geometry.Winding, error) {
	if w.Size() > c.nWdg {
		return geometry.Winding{}, errors.New(errors.ErrCodeResampleShrink, "winding is larger than the encoding size").
			WithDetailf("got %d want %d", w.Size(), c.nWdg)
	}
	out := w.Clone()
	for out.Size() < c.nWdg {
		out = out.SplitLongest(c.maskSrc, c.maskSink)
	}
	return out, nil
}
