// Package embedding turns text into vectors for storage and similarity search.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces fixed-width vectors for text
type Embedder interface {
	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the width of every returned vector
	Dimensions() int

	// Model names the embedding model
	Model() string
}

// embedOne is the EmbedQuery fallback for providers without a query-specific mode.
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}
