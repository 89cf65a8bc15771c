package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles calls to the wrapped embedder with a token bucket
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps next. A non-positive rps disables throttling.
func NewRateLimitedEmbedder(next Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, texts)
}

func (r *RateLimitedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedQuery(ctx, text)
}

func (r *RateLimitedEmbedder) Dimensions() int { return r.next.Dimensions() }

func (r *RateLimitedEmbedder) Model() string { return r.next.Model() }
