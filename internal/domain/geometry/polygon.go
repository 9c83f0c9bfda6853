package geometry

import "math"

// Polygon is a simple polygon with optional holes (keepout regions).  The
// outer ring and holes are given as vertex lists without a repeated closing
// vertex.  The board outline and every keepout area are Polygons.
type Polygon struct {
	Outer []Point   `json:"outer"`
	Holes [][]Point `json:"holes,omitempty"`
}

// Valid reports whether the polygon has at least a triangle as outer ring
// and every hole has at least three vertices.
func (pg Polygon) Valid() bool {
	if len(pg.Outer) < 3 {
		return false
	}
	for _, h := range pg.Holes {
		if len(h) < 3 {
			return false
		}
	}
	return true
}

// Area returns the unsigned area of the outer ring minus the hole areas.
func (pg Polygon) Area() float64 {
	a := ringArea(pg.Outer)
	for _, h := range pg.Holes {
		a -= ringArea(h)
	}
	if a < 0 {
		return 0
	}
	return a
}

func ringArea(ring []Point) float64 {
	var s float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return math.Abs(s) / 2
}

// Contains reports whether p lies strictly inside the outer ring and outside
// every hole.  Points exactly on an edge are treated as outside: a node
// sitting on the board edge has zero copper margin and must not pass the
// containment check.
func (pg Polygon) Contains(p Point) bool {
	if !ringContains(pg.Outer, p) {
		return false
	}
	for _, h := range pg.Holes {
		if ringContains(h, p) || ringEdgeDist(h, p) == 0 {
			return false
		}
	}
	return ringEdgeDist(pg.Outer, p) > 0
}

// ringContains is the even-odd crossing test.
func ringContains(ring []Point, p Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := ring[i], ring[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			x := vj.X + (p.Y-vj.Y)/(vi.Y-vj.Y)*(vi.X-vj.X)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// ringEdgeDist returns the minimum distance from p to the ring boundary.
func ringEdgeDist(ring []Point, p Point) float64 {
	min := math.Inf(1)
	n := len(ring)
	for i := 0; i < n; i++ {
		d := SegmentDist(p, ring[i], ring[(i+1)%n])
		if d < min {
			min = d
		}
	}
	return min
}

// SignedDist returns the signed distance from p to the usable region:
// positive inside (clearance to the nearest boundary, outline edge or hole
// edge), negative outside (penetration depth past the outline or into a
// hole).
func (pg Polygon) SignedDist(p Point) float64 {
	d := ringEdgeDist(pg.Outer, p)
	for _, h := range pg.Holes {
		hd := ringEdgeDist(h, p)
		if hd < d {
			d = hd
		}
	}
	if pg.Contains(p) {
		return d
	}
	return -d
}

// ContainsCircle reports whether a disc of radius r around c lies fully
// inside the usable region.
func (pg Polygon) ContainsCircle(c Point, r float64) bool {
	return pg.SignedDist(c) >= r
}

// ContainsPolyline reports whether every vertex of the polyline lies inside
// the usable region and no segment crosses the outline or a hole boundary.
func (pg Polygon) ContainsPolyline(coord []Point) bool {
	for _, p := range coord {
		if !pg.Contains(p) {
			return false
		}
	}
	rings := append([][]Point{pg.Outer}, pg.Holes...)
	for i := 0; i < len(coord)-1; i++ {
		for _, ring := range rings {
			n := len(ring)
			for k := 0; k < n; k++ {
				if SegmentsIntersect(coord[i], coord[i+1], ring[k], ring[(k+1)%n]) {
					return false
				}
			}
		}
	}
	return true
}

// Rect builds an axis-aligned rectangular polygon, a convenience for tests
// and default outlines.
func Rect(xMin, yMin, xMax, yMax float64) Polygon {
	return Polygon{Outer: []Point{
		{X: xMin, Y: yMin},
		{X: xMax, Y: yMin},
		{X: xMax, Y: yMax},
		{X: xMin, Y: yMax},
	}}
}
