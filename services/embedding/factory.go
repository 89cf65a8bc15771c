package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/config"
)

// New builds the configured embedder, throttled and, when a Redis client is
// given, with a query cache in front.
func New(ctx context.Context, cfg config.EmbeddingConfig, cache *redis.Client, ttl time.Duration, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI, "":
		base = NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.BaseURL, cfg.BatchSize)
	case config.EmbeddingProviderGemini:
		g, err := NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		base = g
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	e := NewRateLimitedEmbedder(base, cfg.RequestsPerSecond, cfg.Burst)
	if cache != nil {
		e = NewCachedEmbedder(e, cache, ttl, logger)
	}

	logger.Info("embedder configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", e.Model()),
		zap.Int("dimensions", e.Dimensions()),
		zap.Bool("cached", cache != nil))
	return e, nil
}
