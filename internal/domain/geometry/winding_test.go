package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightWinding() Winding {
	return Winding{
		Coord: []Point{{X: 0, Y: 0}, {X: 1e-3, Y: 0}, {X: 2e-3, Y: 0}},
		Width: []float64{150e-6, 150e-6, 150e-6},
		Layer: []int{0, 0},
	}
}

func TestWinding_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		w       Winding
		wantErr bool
	}{
		{"valid straight", straightWinding(), false},
		{"single node", Winding{Coord: []Point{{}}, Width: []float64{1e-4}}, true},
		{
			"width count mismatch",
			Winding{Coord: []Point{{}, {X: 1}}, Width: []float64{1e-4}, Layer: []int{0}},
			true,
		},
		{
			"layer count mismatch",
			Winding{Coord: []Point{{}, {X: 1}}, Width: []float64{1e-4, 1e-4}, Layer: []int{0, 0}},
			true,
		},
		{
			"non positive width",
			Winding{Coord: []Point{{}, {X: 1}}, Width: []float64{1e-4, 0}, Layer: []int{0}},
			true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWinding_CloneIsDeep(t *testing.T) {
	t.Parallel()

	w := straightWinding()
	c := w.Clone()
	c.Coord[0].X = 99
	c.Width[1] = 1
	c.Layer[0] = 7

	assert.Equal(t, 0.0, w.Coord[0].X)
	assert.Equal(t, 150e-6, w.Width[1])
	assert.Equal(t, 0, w.Layer[0])
}

func TestMerge_TrimsBridgeLayer(t *testing.T) {
	t.Parallel()

	src := Winding{
		Coord: []Point{{X: 0, Y: 0}},
		Width: []float64{100e-6},
		Layer: []int{0},
	}
	mid := Winding{
		Coord: []Point{{X: 1e-3, Y: 0}, {X: 2e-3, Y: 0}},
		Width: []float64{100e-6, 100e-6},
		Layer: []int{4},
	}
	sink := Winding{
		Coord: []Point{{X: 3e-3, Y: 0}},
		Width: []float64{100e-6},
		Layer: []int{0},
	}

	merged := Merge(src, mid, sink)
	require.NoError(t, merged.Validate())
	assert.Equal(t, 4, merged.Size())
	assert.Equal(t, []int{0, 4, 0}, merged.Layer)
}

func TestWinding_InsertNode(t *testing.T) {
	t.Parallel()

	w := straightWinding()
	out := w.InsertNode(1, 1, Point{X: 0.5e-3, Y: 0.1e-3}, 120e-6, 2)

	require.NoError(t, out.Validate())
	assert.Equal(t, 4, out.Size())
	assert.Equal(t, Point{X: 0.5e-3, Y: 0.1e-3}, out.Coord[1])
	assert.Equal(t, 120e-6, out.Width[1])
	assert.Equal(t, []int{0, 2, 0}, out.Layer)
	// Input untouched.
	assert.Equal(t, 3, w.Size())
}

func TestWinding_SplitLongest(t *testing.T) {
	t.Parallel()

	w := Winding{
		Coord: []Point{{X: 0, Y: 0}, {X: 0.2e-3, Y: 0}, {X: 2e-3, Y: 0}},
		Width: []float64{100e-6, 100e-6, 100e-6},
		Layer: []int{0, 0},
	}
	out := w.SplitLongest(0, 0)

	require.NoError(t, out.Validate())
	assert.Equal(t, 4, out.Size())
	// The long second segment is split at its midpoint.
	assert.InDelta(t, 1.1e-3, out.Coord[2].X, 1e-12)
	assert.InDelta(t, 100e-6, out.Width[2], 1e-12)
}

func TestWinding_SplitLongest_MaskedSegmentsNeverSplit(t *testing.T) {
	t.Parallel()

	// The longest segment is the first one, but it is masked.
	w := Winding{
		Coord: []Point{{X: 0, Y: 0}, {X: 5e-3, Y: 0}, {X: 5.5e-3, Y: 0}},
		Width: []float64{100e-6, 100e-6, 100e-6},
		Layer: []int{0, 0},
	}
	out := w.SplitLongest(1, 0)

	require.Equal(t, 4, out.Size())
	// The split landed on the second (unmasked) segment.
	assert.InDelta(t, 5.25e-3, out.Coord[2].X, 1e-12)
}

func TestWinding_Equal(t *testing.T) {
	t.Parallel()

	w := straightWinding()
	same := w.Clone()
	assert.True(t, w.Equal(same, 1e-12))

	same.Coord[1].Y += 1e-9
	assert.False(t, w.Equal(same, 1e-12))
	assert.True(t, w.Equal(same, 1e-6))

	diffLayer := w.Clone()
	diffLayer.Layer[0] = 4
	assert.False(t, w.Equal(diffLayer, 1e-6))
}

func TestPoint_Helpers(t *testing.T) {
	t.Parallel()

	a := Point{X: 3, Y: 4}
	b := Point{}
	assert.Equal(t, 5.0, a.Dist(b))
	assert.Equal(t, Point{X: 1.5, Y: 2}, a.Mid(b))
	assert.Equal(t, Point{X: 3, Y: 4}, a.Sub(b))
	assert.True(t, math.Abs(a.Sub(a).X) == 0)
}
