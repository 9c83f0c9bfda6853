package drc

import (
	"math"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/pkg/errors"
	"github.com/coilforge/coilforge/pkg/types/common"
)

// noConstraintAngle marks the angle upper bound as disabled: a full turn
// can never be exceeded, so 360 degrees (or more) means "no upper check".
const noConstraintAngle = 360.0

// Checker evaluates the full design rules and the cheap partial subset.
// It is immutable after construction and safe for concurrent use.
type Checker struct {
	limits  config.RuleLimits
	clamp   common.Range
	dist    config.DistanceOptions
	avg     config.AverageOptions
	outline geometry.Polygon

	layerMin int
	layerMax int
	maskSrc  int
	maskSink int

	// Partial-rule limits used during random growth.
	segmentMin float64
	angleMin   float64
}

// NewChecker builds a Checker from the validated configuration sections.
func NewChecker(rules config.RuleConfig, gen config.GeneratorConfig, enc config.EncodingConfig, board config.BoardConfig) (*Checker, error) {
	outline, err := polygonFromConfig(board)
	if err != nil {
		return nil, err
	}
	if len(board.LayerList) == 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "layer list must not be empty")
	}
	if err := rules.Clamp.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigBounds, "rule clamp range")
	}

	limits := rules.Limits
	if limits.Angle.Max >= noConstraintAngle {
		limits.Angle.Max = math.Inf(1)
	}

	return &Checker{
		limits:     limits,
		clamp:      rules.Clamp,
		dist:       rules.Distance,
		avg:        rules.Average,
		outline:    outline,
		layerMin:   board.LayerList[0],
		layerMax:   board.LayerList[len(board.LayerList)-1],
		maskSrc:    enc.NMaskSrc,
		maskSink:   enc.NMaskSink,
		segmentMin: gen.SegmentMin,
		angleMin:   gen.AngleMin,
	}, nil
}

func polygonFromConfig(board config.BoardConfig) (geometry.Polygon, error) {
	pg := geometry.Polygon{Outer: pointsFromPairs(board.Outline)}
	for _, hole := range board.Keepout {
		pg.Holes = append(pg.Holes, pointsFromPairs(hole))
	}
	if !pg.Valid() {
		return geometry.Polygon{}, errors.New(errors.ErrCodeConfigOutline, "board outline is not a valid polygon").
			WithDetailf("%d outer vertices, %d keepouts", len(pg.Outer), len(pg.Holes))
	}
	return pg, nil
}

func pointsFromPairs(pairs [][]float64) []geometry.Point {
	out := make([]geometry.Point, 0, len(pairs))
	for _, v := range pairs {
		if len(v) != 2 {
			return nil
		}
		out = append(out, geometry.Point{X: v[0], Y: v[1]})
	}
	return out
}

// Outline exposes the board polygon for consumers outside the rule check
// (exporters draw it as the board contour).
func (c *Checker) Outline() geometry.Polygon {
	return c.outline
}

// Check measures every rule category for the winding and returns the signed
// per-category results.  Degenerate geometry yields the worst-case results
// rather than an error; only a structurally broken winding (a programmer
// error) is reported as one.
func (c *Checker) Check(w geometry.Winding) (Results, error) {
	if err := w.Validate(); err != nil {
		return Results{}, err
	}

	ss, err := geometry.BuildShapes(w, c.maskSrc, c.maskSink)
	if err != nil {
		return c.worstCase(), nil
	}

	boundary := c.measureBoundary(ss)
	clearance := c.measureClearance(ss)
	angle, length, width := c.measureTraceBase(ss.Traces)
	diff, radius := c.measureTraceSmooth(ss.Traces)
	distance := c.measureTraceDistance(ss.Traces)

	var r Results
	r[CategoryBoundary] = c.clampResult(boundary / c.limits.Boundary)
	r[CategoryClearance] = c.rangeCheck(clearance, c.limits.Clearance)
	r[CategoryDistance] = c.rangeCheck(distance, c.limits.Distance)
	r[CategoryAngle] = c.rangeCheck(angle, c.limits.Angle)
	r[CategoryWidth] = c.rangeCheck(width, c.limits.Width)
	r[CategoryLength] = c.rangeCheck(length, c.limits.Length)
	r[CategoryRadius] = c.rangeCheck(radius, c.limits.Radius)
	r[CategoryDiff] = c.rangeCheck(diff, c.limits.Diff)
	return r, nil
}

func (c *Checker) worstCase() Results {
	var r Results
	for i := range r {
		r[i] = c.clamp.Max
	}
	return r
}

// rangeCheck normalizes a measurement set against a two-sided limit:
// rel = max((min_limit - min(val)) / min_limit, (max(val) - max_limit) / max_limit)
// clamped into the configured window.  Infinite limit ends disable the
// corresponding side; an empty set is fully satisfied.
func (c *Checker) rangeCheck(vals []float64, limit common.Range) float64 {
	relMin := math.Inf(-1)
	relMax := math.Inf(-1)
	if len(vals) > 0 {
		lo, hi := vals[0], vals[0]
		for _, v := range vals[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if !math.IsInf(limit.Min, 0) {
			relMin = (limit.Min - lo) / limit.Min
		}
		if !math.IsInf(limit.Max, 0) {
			relMax = (hi - limit.Max) / limit.Max
		}
	}
	return c.clampResult(math.Max(relMin, relMax))
}

// clampResult clips a signed result into the clamp window; NaN (degenerate
// measurement) becomes the worst case.
func (c *Checker) clampResult(v float64) float64 {
	if math.IsNaN(v) {
		return c.clamp.Max
	}
	return c.clamp.Clamp(v)
}

// disk is one copper sample: a circle used to approximate the buffered
// shapes for boundary and clearance measurements.
type disk struct {
	c geometry.Point
	r float64
}

// measureBoundary returns the signed outline measurement: the negated
// minimum margin of all copper samples to the usable region.  Negative
// means every sample keeps a margin; positive is the deepest overshoot.
func (c *Checker) measureBoundary(ss geometry.ShapeSet) float64 {
	minMargin := math.Inf(1)
	seen := false
	for _, d := range c.boundaryDisks(ss) {
		seen = true
		m := c.outline.SignedDist(d.c) - d.r
		if m < minMargin {
			minMargin = m
		}
	}
	if !seen {
		return math.Inf(-1)
	}
	return -minMargin
}

// boundaryDisks collects the copper samples subject to outline containment.
// Mask-exempt nodes and segments with both ends exempt are skipped: masked
// terminal pads are allowed outside the board.
func (c *Checker) boundaryDisks(ss geometry.ShapeSet) []disk {
	var out []disk
	for _, s := range ss.Traces {
		for i := range s.Coord {
			if s.MaskExempt[i] {
				continue
			}
			out = append(out, disk{c: s.Coord[i], r: s.Width[i] / 2})
		}
		for i := 0; i < len(s.Coord)-1; i++ {
			if s.MaskExempt[i] && s.MaskExempt[i+1] {
				continue
			}
			out = append(out, segmentDisks(s.Coord[i], s.Coord[i+1], s.Width[i], s.Width[i+1], c.dist.DisResample)...)
		}
	}
	for _, s := range ss.Vias {
		if !s.MaskExempt[0] {
			out = append(out, disk{c: s.Coord[0], r: s.Width[0] / 2})
		}
	}
	for _, s := range []geometry.Shape{ss.Src, ss.Sink} {
		if !s.MaskExempt[0] {
			out = append(out, disk{c: s.Coord[0], r: s.Width[0] / 2})
		}
	}
	return out
}

// segmentDisks samples the interior of one segment at roughly the given
// spacing, interpolating the width linearly.
func segmentDisks(a, b geometry.Point, wa, wb, spacing float64) []disk {
	length := a.Dist(b)
	n := int(math.Round(length / spacing))
	out := make([]disk, 0, n)
	for k := 1; k < n; k++ {
		t := float64(k) / float64(n)
		out = append(out, disk{
			c: geometry.Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)},
			r: (wa + t*(wb-wa)) / 2,
		})
	}
	return out
}

// measureClearance returns the minimum spacing between distinct copper
// shapes, per layer: conductors against conductors and terminals against
// terminals.  A layer with fewer than two shapes contributes +Inf (fully
// satisfied).
func (c *Checker) measureClearance(ss geometry.ShapeSet) []float64 {
	var out []float64
	conductors := ss.Conductors()
	terminals := []geometry.Shape{ss.Src, ss.Sink}
	for layer := c.layerMin; layer <= c.layerMax; layer++ {
		out = append(out, c.layerClearance(conductors, layer))
		out = append(out, c.layerClearance(terminals, layer))
	}
	return out
}

func (c *Checker) layerClearance(shapes []geometry.Shape, layer int) float64 {
	var samples [][]disk
	for _, s := range shapes {
		if s.OnLayer(layer) {
			samples = append(samples, c.shapeDisks(s))
		}
	}
	if len(samples) < 2 {
		return math.Inf(1)
	}
	minD := math.Inf(1)
	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			if d := diskSetDist(samples[i], samples[j]); d < minD {
				minD = d
			}
		}
	}
	return minD
}

// shapeDisks approximates one shape by sample disks: traces are resampled
// along their path, vias and pads are a single disk.
func (c *Checker) shapeDisks(s geometry.Shape) []disk {
	if s.Kind != geometry.KindTrace || len(s.Coord) < 2 {
		return []disk{{c: s.Coord[0], r: s.Width[0] / 2}}
	}
	rp := geometry.Resample(s.Coord, s.Width, c.dist.SizeMin, c.dist.DisResample)
	out := make([]disk, len(rp.Coord))
	for i := range rp.Coord {
		out[i] = disk{c: rp.Coord[i], r: rp.Width[i] / 2}
	}
	return out
}

func diskSetDist(a, b []disk) float64 {
	minD := math.Inf(1)
	for _, da := range a {
		for _, db := range b {
			d := da.c.Dist(db.c) - da.r - db.r
			if d < minD {
				minD = d
			}
		}
	}
	return minD
}

// measureTraceBase returns the per-trace bend angles (degrees), total
// lengths, and node widths.
func (c *Checker) measureTraceBase(traces []geometry.Shape) (angle, length, width []float64) {
	for _, s := range traces {
		for _, a := range geometry.Angles(s.Coord) {
			angle = append(angle, a*180/math.Pi)
		}
		length = append(length, geometry.PathLength(s.Coord))
		width = append(width, s.Width...)
	}
	return angle, length, width
}

// measureTraceDistance returns the self-clearance measurements of every
// trace: the internal resampled point-pair distance (quasi-intersection
// detection) and the start/end node distance.
func (c *Checker) measureTraceDistance(traces []geometry.Shape) []float64 {
	var out []float64
	for _, s := range traces {
		out = append(out, c.traceSelfDistance(s))
	}
	for _, s := range traces {
		n := len(s.Coord)
		d := s.Coord[0].Dist(s.Coord[n-1]) - (s.Width[0]+s.Width[n-1])/2
		out = append(out, d)
	}
	return out
}

// traceSelfDistance resamples the trace and measures the minimum
// surface-to-surface distance between all sample pairs, ignoring pairs that
// are quasi-adjacent along the path: near a bend of the tolerated angle the
// nominal clearance tightens without being a defect.
func (c *Checker) traceSelfDistance(s geometry.Shape) float64 {
	rp := geometry.Resample(s.Coord, s.Width, c.dist.SizeMin, c.dist.DisResample)
	tolAngle := c.dist.TolAngle * math.Pi / 180

	minD := math.Inf(1)
	for i := 0; i < len(rp.Coord); i++ {
		for j := i + 1; j < len(rp.Coord); j++ {
			w := (rp.Width[i] + rp.Width[j]) / 2
			magLen := w / math.Sin(tolAngle/2)
			if rp.Dist[j]-rp.Dist[i] < c.dist.TolAdd+magLen {
				continue
			}
			if d := rp.Coord[i].Dist(rp.Coord[j]) - w; d < minD {
				minD = d
			}
		}
	}
	return minD
}

// measureTraceSmooth returns the locally averaged width gradient (diff) and
// curvature rate in degrees (radius) of every trace.  Traces shorter than
// the configured minimum cannot carry meaningful local averages and count
// as fully satisfied.
func (c *Checker) measureTraceSmooth(traces []geometry.Shape) (diff, radius []float64) {
	for _, s := range traces {
		d, r := c.traceSmooth(s)
		diff = append(diff, d)
		radius = append(radius, r)
	}
	return diff, radius
}

func (c *Checker) traceSmooth(s geometry.Shape) (float64, float64) {
	rp := geometry.Resample(s.Coord, s.Width, c.avg.SizeMin, c.avg.DisResample)
	n := len(rp.Dist)
	total := rp.Dist[n-1]
	if total < c.avg.LengthMin {
		return 0, 0
	}

	sample := total / float64(n-1)
	repeat := int(math.Round(c.avg.DisAverage / sample))
	if repeat < 1 {
		repeat = 1
	}

	grad := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		grad[i] = math.Abs(rp.Width[i+1]-rp.Width[i]) / (float64(repeat) * sample)
	}

	bend := geometry.Angles(rp.Coord)
	for i, a := range bend {
		bend[i] = math.Abs(math.Pi - a)
	}

	diff := convolveMax(grad, c.avg.WindowConv, repeat)
	radius := convolveMax(bend, c.avg.WindowConv, repeat) * 180 / math.Pi
	return diff, radius
}

// convolveMax slides a smoothing window over the values and returns the
// maximum windowed sum.
func convolveMax(vals []float64, window string, repeat int) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := repeat
	if m > len(vals) {
		m = len(vals)
	}
	win := makeWindow(window, m)

	max := math.Inf(-1)
	for i := 0; i+m <= len(vals); i++ {
		var s float64
		for k := 0; k < m; k++ {
			s += vals[i+k] * win[k]
		}
		if s > max {
			max = s
		}
	}
	return max
}

func makeWindow(name string, m int) []float64 {
	win := make([]float64, m)
	switch {
	case name == "hann" && m > 1:
		for i := range win {
			win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(m-1)))
		}
	default:
		for i := range win {
			win[i] = 1
		}
	}
	return win
}
