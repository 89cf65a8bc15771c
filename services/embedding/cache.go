package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "sorobai:embedding:"

// CachedEmbedder caches query embeddings in Redis. Document embeddings are
// written once at ingest and are not cached.
type CachedEmbedder struct {
	next   Embedder
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEmbedder wraps next with a Redis cache. Redis failures are logged
// and fall through to next.
func NewCachedEmbedder(next Embedder, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.Embed(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec := decodeVector(data); len(vec) == c.next.Dimensions() || c.next.Dimensions() == 0 {
			return vec, nil
		}
		c.logger.Warn("discarding cached embedding with wrong width", zap.String("key", key))
	case err != redis.Nil:
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

func (c *CachedEmbedder) Model() string { return c.next.Model() }

// key includes the model so switching models never serves stale vectors
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.next.Model() + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
