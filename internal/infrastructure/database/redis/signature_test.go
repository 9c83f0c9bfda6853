package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/geometry"
)

func testWinding() geometry.Winding {
	return geometry.Winding{
		Coord: []geometry.Point{{X: -0.4e-3, Y: 0}, {X: 0, Y: 0.1e-3}, {X: 0.4e-3, Y: 0}},
		Width: []float64{100e-6, 100e-6, 100e-6},
		Layer: []int{0, 4},
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSignature_Stable(t *testing.T) {
	t.Parallel()

	a := Signature(testWinding())
	b := Signature(testWinding())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSignature_SensitiveToGeometry(t *testing.T) {
	t.Parallel()

	base := Signature(testWinding())

	moved := testWinding()
	moved.Coord[1].Y += 1e-9
	assert.NotEqual(t, base, Signature(moved))

	widened := testWinding()
	widened.Width[0] = 150e-6
	assert.NotEqual(t, base, Signature(widened))

	relayered := testWinding()
	relayered.Layer[1] = 0
	assert.NotEqual(t, base, Signature(relayered))
}

func TestSignatureCache_Register(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	cache := NewSignatureCache(client, config.RedisConfig{KeyPrefix: "test"}, nil, nil)
	ctx := context.Background()

	fresh, err := cache.Register(ctx, testWinding())
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = cache.Register(ctx, testWinding())
	require.NoError(t, err)
	assert.False(t, fresh)

	seen, err := cache.Seen(ctx, testWinding())
	require.NoError(t, err)
	assert.True(t, seen)

	other := testWinding()
	other.Coord[0].X = -0.3e-3
	seen, err = cache.Seen(ctx, other)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
