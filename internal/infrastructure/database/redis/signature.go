package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/geometry"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
	"github.com/coilforge/coilforge/pkg/errors"
)

// Signature returns a stable hex digest of a winding geometry.  Two windings
// with identical node coordinates, widths, and layers share a signature.
func Signature(w geometry.Winding) string {
	h := sha256.New()
	var buf [8]byte

	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(w.Size()))
	h.Write(buf[:])
	for _, p := range w.Coord {
		writeFloat(p.X)
		writeFloat(p.Y)
	}
	for _, width := range w.Width {
		writeFloat(width)
	}
	for _, l := range w.Layer {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(l)))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureCache deduplicates evaluated windings across dataset runs so the
// same random geometry is not checked and solved twice.
type SignatureCache struct {
	client  *Client
	prefix  string
	ttl     time.Duration
	log     logging.Logger
	metrics *prometheus.CoilMetrics
}

// NewSignatureCache builds the cache with the configured key prefix and TTL.
func NewSignatureCache(client *Client, cfg config.RedisConfig, log logging.Logger, metrics *prometheus.CoilMetrics) *SignatureCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "coilforge"
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignatureCache{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		log:     log.Named("signature_cache"),
		metrics: metrics,
	}
}

func (c *SignatureCache) key(sig string) string {
	return c.prefix + ":sig:" + sig
}

// Register marks a winding as evaluated.  It returns true when the winding
// was not seen before.
func (c *SignatureCache) Register(ctx context.Context, w geometry.Winding) (bool, error) {
	sig := Signature(w)
	fresh, err := c.client.RDB().SetNX(ctx, c.key(sig), 1, c.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to register winding signature")
	}
	prometheus.RecordCacheAccess(c.metrics, "signature", !fresh)
	return fresh, nil
}

// Seen reports whether a winding signature is already cached, without
// registering it.
func (c *SignatureCache) Seen(ctx context.Context, w geometry.Winding) (bool, error) {
	sig := Signature(w)
	n, err := c.client.RDB().Exists(ctx, c.key(sig)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to query winding signature")
	}
	return n > 0, nil
}
