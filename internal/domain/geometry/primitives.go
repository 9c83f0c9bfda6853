package geometry

import "math"

// epsSingular is the threshold below which a segment is treated as
// degenerate (zero length) when computing angles.
const epsSingular = 2.220446049250313e-16

// SegmentLengths returns the length of each of the len(coord)-1 segments of
// a polyline.
func SegmentLengths(coord []Point) []float64 {
	if len(coord) < 2 {
		return nil
	}
	out := make([]float64, len(coord)-1)
	for i := 0; i < len(coord)-1; i++ {
		out[i] = coord[i].Dist(coord[i+1])
	}
	return out
}

// PathLength returns the total polyline length.
func PathLength(coord []Point) float64 {
	var total float64
	for _, s := range SegmentLengths(coord) {
		total += s
	}
	return total
}

// ClearLengths returns the segment lengths minus the half-width buffers of
// the two end nodes, i.e. the copper-free span between consecutive pads.
func ClearLengths(coord []Point, width []float64) []float64 {
	out := SegmentLengths(coord)
	for i := range out {
		out[i] -= (width[i] + width[i+1]) / 2
	}
	return out
}

// Angles returns the sharp angle at each of the len(coord)-2 interior nodes
// of a polyline, in radians.  The value is pi for a straight continuation
// and approaches zero for a full reversal.  Nodes adjacent to a degenerate
// (zero-length) segment report pi: a duplicate point must not read as a
// sharp bend.
func Angles(coord []Point) []float64 {
	if len(coord) < 3 {
		return nil
	}
	out := make([]float64, len(coord)-2)
	for i := 0; i < len(coord)-2; i++ {
		s1 := coord[i+1].Sub(coord[i])
		s2 := coord[i+2].Sub(coord[i+1])

		if (math.Abs(s1.X) < epsSingular && math.Abs(s1.Y) < epsSingular) ||
			(math.Abs(s2.X) < epsSingular && math.Abs(s2.Y) < epsSingular) {
			out[i] = math.Pi
			continue
		}

		cross := s1.X*s2.Y - s1.Y*s2.X
		dot := s1.X*s2.X + s1.Y*s2.Y
		turn := math.Atan2(cross, dot)
		out[i] = math.Abs(math.Pi - math.Abs(turn))
	}
	return out
}

// ResampledPath is a polyline re-discretized at fixed arc-length spacing.
type ResampledPath struct {
	// Dist is the cumulative arc-length from the start, one entry per sample.
	Dist []float64
	// Coord are the resampled coordinates.
	Coord []Point
	// Width are the linearly interpolated trace widths.
	Width []float64
}

// Resample re-discretizes a polyline into samples spaced roughly `spacing`
// apart along the path, with at least sizeMin samples.  Coordinates and
// widths are linearly interpolated over arc length.  Long or curved traces
// get checked at sub-segment granularity this way; a two-node trace still
// yields sizeMin samples so every rule sees a usable point set.
func Resample(coord []Point, width []float64, sizeMin int, spacing float64) ResampledPath {
	segs := SegmentLengths(coord)
	distRef := make([]float64, len(coord))
	for i, s := range segs {
		distRef[i+1] = distRef[i] + s
	}
	length := distRef[len(distRef)-1]

	n := int(math.Round(length/spacing)) + 1
	if n < sizeMin {
		n = sizeMin
	}

	out := ResampledPath{
		Dist:  make([]float64, n),
		Coord: make([]Point, n),
		Width: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		var d float64
		if n > 1 {
			d = length * float64(i) / float64(n-1)
		}
		out.Dist[i] = d
		out.Coord[i] = interpPoint(d, distRef, coord)
		out.Width[i] = interpScalar(d, distRef, width)
	}
	return out
}

// interpPoint linearly interpolates a polyline coordinate at arc-length d.
func interpPoint(d float64, distRef []float64, coord []Point) Point {
	i := searchSegment(d, distRef)
	if i < 0 {
		return coord[0]
	}
	if i >= len(distRef)-1 {
		return coord[len(coord)-1]
	}
	span := distRef[i+1] - distRef[i]
	if span <= 0 {
		return coord[i]
	}
	t := (d - distRef[i]) / span
	return Point{
		X: coord[i].X + t*(coord[i+1].X-coord[i].X),
		Y: coord[i].Y + t*(coord[i+1].Y-coord[i].Y),
	}
}

// interpScalar linearly interpolates a per-node scalar at arc-length d.
func interpScalar(d float64, distRef []float64, vals []float64) float64 {
	i := searchSegment(d, distRef)
	if i < 0 {
		return vals[0]
	}
	if i >= len(distRef)-1 {
		return vals[len(vals)-1]
	}
	span := distRef[i+1] - distRef[i]
	if span <= 0 {
		return vals[i]
	}
	t := (d - distRef[i]) / span
	return vals[i] + t*(vals[i+1]-vals[i])
}

// searchSegment returns the index i such that distRef[i] <= d < distRef[i+1],
// -1 below the path, len(distRef)-1 at or beyond the end.
func searchSegment(d float64, distRef []float64) int {
	if d < distRef[0] {
		return -1
	}
	for i := 0; i < len(distRef)-1; i++ {
		if d < distRef[i+1] {
			return i
		}
	}
	return len(distRef) - 1
}

// SegmentsIntersect reports whether the open segments (a1,a2) and (b1,b2)
// properly intersect or touch.
func SegmentsIntersect(a1, a2, b1, b2 Point) bool {
	d1 := orient(b1, b2, a1)
	d2 := orient(b1, b2, a2)
	d3 := orient(a1, a2, b1)
	d4 := orient(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(b1, b2, a1) {
		return true
	}
	if d2 == 0 && onSegment(b1, b2, a2) {
		return true
	}
	if d3 == 0 && onSegment(a1, a2, b1) {
		return true
	}
	if d4 == 0 && onSegment(a1, a2, b2) {
		return true
	}
	return false
}

func orient(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// PolylineIsSimple reports whether a polyline has no self-intersection
// between non-adjacent segments.  Adjacent segments share a node and are
// skipped; the angle rule constrains those separately.
func PolylineIsSimple(coord []Point) bool {
	n := len(coord) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			// The closing pair of a nearly-closed loop is still non-adjacent.
			if SegmentsIntersect(coord[i], coord[i+1], coord[j], coord[j+1]) {
				return false
			}
		}
	}
	return true
}

// SegmentDist returns the minimum distance between point p and segment (a,b).
func SegmentDist(p, a, b Point) float64 {
	ab := b.Sub(a)
	ap := p.Sub(a)
	den := ab.X*ab.X + ab.Y*ab.Y
	if den <= 0 {
		return p.Dist(a)
	}
	t := (ap.X*ab.X + ap.Y*ab.Y) / den
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := Point{X: a.X + t*ab.X, Y: a.Y + t*ab.Y}
	return p.Dist(proj)
}
