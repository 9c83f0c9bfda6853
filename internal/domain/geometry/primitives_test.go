package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentLengths(t *testing.T) {
	t.Parallel()

	coord := []Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 10}}
	assert.Equal(t, []float64{5, 6}, SegmentLengths(coord))
	assert.Nil(t, SegmentLengths(coord[:1]))
	assert.Equal(t, 11.0, PathLength(coord))
}

func TestClearLengths(t *testing.T) {
	t.Parallel()

	coord := []Point{{X: 0, Y: 0}, {X: 1e-3, Y: 0}}
	width := []float64{200e-6, 100e-6}
	got := ClearLengths(coord, width)
	require.Len(t, got, 1)
	assert.InDelta(t, 1e-3-150e-6, got[0], 1e-12)
}

func TestAngles(t *testing.T) {
	t.Parallel()

	t.Run("straight line is pi", func(t *testing.T) {
		t.Parallel()
		coord := []Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
		got := Angles(coord)
		require.Len(t, got, 1)
		assert.InDelta(t, math.Pi, got[0], 1e-12)
	})

	t.Run("right angle is pi over two", func(t *testing.T) {
		t.Parallel()
		coord := []Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
		got := Angles(coord)
		require.Len(t, got, 1)
		assert.InDelta(t, math.Pi/2, got[0], 1e-12)
	})

	t.Run("full reversal is zero", func(t *testing.T) {
		t.Parallel()
		coord := []Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}}
		got := Angles(coord)
		require.Len(t, got, 1)
		assert.InDelta(t, 0, got[0], 1e-12)
	})

	t.Run("degenerate segment reads as straight", func(t *testing.T) {
		t.Parallel()
		coord := []Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}}
		got := Angles(coord)
		require.Len(t, got, 1)
		assert.InDelta(t, math.Pi, got[0], 1e-12)
	})

	t.Run("too short", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, Angles([]Point{{X: 0, Y: 0}, {X: 1, Y: 0}}))
	})
}

func TestResample(t *testing.T) {
	t.Parallel()

	coord := []Point{{X: 0, Y: 0}, {X: 1e-3, Y: 0}}
	width := []float64{100e-6, 200e-6}

	rp := Resample(coord, width, 5, 100e-6)

	require.GreaterOrEqual(t, len(rp.Coord), 5)
	assert.Equal(t, len(rp.Coord), len(rp.Width))
	assert.Equal(t, len(rp.Coord), len(rp.Dist))

	// Endpoints preserved.
	assert.InDelta(t, 0, rp.Coord[0].X, 1e-12)
	assert.InDelta(t, 1e-3, rp.Coord[len(rp.Coord)-1].X, 1e-12)
	assert.InDelta(t, 100e-6, rp.Width[0], 1e-12)
	assert.InDelta(t, 200e-6, rp.Width[len(rp.Width)-1], 1e-12)

	// Cumulative distance is monotone and ends at the path length.
	for i := 1; i < len(rp.Dist); i++ {
		assert.Greater(t, rp.Dist[i], rp.Dist[i-1])
	}
	assert.InDelta(t, 1e-3, rp.Dist[len(rp.Dist)-1], 1e-12)

	// Width interpolates linearly at the midpoint.
	mid := len(rp.Width) / 2
	assert.InDelta(t, 100e-6+rp.Dist[mid]/1e-3*100e-6, rp.Width[mid], 1e-9)
}

func TestResample_MinimumSampleCount(t *testing.T) {
	t.Parallel()

	// A stub trace far shorter than the spacing still yields sizeMin samples.
	coord := []Point{{X: 0, Y: 0}, {X: 1e-6, Y: 0}}
	width := []float64{50e-6, 50e-6}
	rp := Resample(coord, width, 8, 100e-6)
	assert.Len(t, rp.Coord, 8)
}

func TestSegmentsIntersect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		a1, a2, b1, b2 Point
		want           bool
	}{
		{"crossing", Point{0, 0}, Point{2, 2}, Point{0, 2}, Point{2, 0}, true},
		{"parallel", Point{0, 0}, Point{1, 0}, Point{0, 1}, Point{1, 1}, false},
		{"touching endpoint", Point{0, 0}, Point{1, 0}, Point{1, 0}, Point{2, 1}, true},
		{"disjoint", Point{0, 0}, Point{1, 0}, Point{3, 3}, Point{4, 4}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SegmentsIntersect(tt.a1, tt.a2, tt.b1, tt.b2))
		})
	}
}

func TestPolylineIsSimple(t *testing.T) {
	t.Parallel()

	simple := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	assert.True(t, PolylineIsSimple(simple))

	// Figure-eight: last segment crosses the first.
	crossing := []Point{{0, 0}, {2, 0}, {2, 1}, {1, -1}}
	assert.False(t, PolylineIsSimple(crossing))
}

func TestSegmentDist(t *testing.T) {
	t.Parallel()

	a, b := Point{0, 0}, Point{2, 0}
	assert.InDelta(t, 1.0, SegmentDist(Point{1, 1}, a, b), 1e-12)
	assert.InDelta(t, 1.0, SegmentDist(Point{3, 0}, a, b), 1e-12)
	assert.InDelta(t, 0.0, SegmentDist(Point{1, 0}, a, b), 1e-12)
	// Degenerate segment falls back to point distance.
	assert.InDelta(t, 5.0, SegmentDist(Point{3, 4}, a, a), 1e-12)
}
