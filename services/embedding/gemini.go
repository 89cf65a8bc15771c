package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	geminiBatchSize  = 50
	geminiMaxRetries = 3
	geminiRetryDelay = 6 * time.Second

	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// GeminiEmbedder uses the Gemini API embedding models
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewGeminiEmbedder creates a Gemini embedder
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions, batchSize int) (*GeminiEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if batchSize <= 0 || batchSize > geminiBatchSize {
		batchSize = geminiBatchSize
	}
	return &GeminiEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}, nil
}

func (g *GeminiEmbedder) Dimensions() int { return g.dimensions }

func (g *GeminiEmbedder) Model() string { return g.model }

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, g.batchSize) {
		vecs, err := g.embedBatch(ctx, batch, taskRetrievalDocument)
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

// EmbedQuery uses the query task type, which Gemini tunes for asymmetric search
func (g *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.embedBatch(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *GeminiEmbedder) embedBatch(ctx context.Context, batch []string, taskType string) ([][]float32, error) {
	config := &genai.EmbedContentConfig{TaskType: taskType}
	if g.dimensions > 0 {
		dim := int32(g.dimensions)
		config.OutputDimensionality = &dim
	}

	contents := make([]*genai.Content, 0, len(batch))
	for _, text := range batch {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	var res *genai.EmbedContentResponse
	var err error
	for attempt := 0; attempt <= geminiMaxRetries; attempt++ {
		res, err = g.client.Models.EmbedContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}
		if !isRateLimitError(err) || attempt == geminiMaxRetries {
			return nil, fmt.Errorf("failed to embed text: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(geminiRetryDelay):
		}
	}

	if len(res.Embeddings) != len(batch) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(res.Embeddings), len(batch))
	}
	out := make([][]float32, 0, len(batch))
	for _, emb := range res.Embeddings {
		out = append(out, emb.Values)
	}
	return out, nil
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED")
}
