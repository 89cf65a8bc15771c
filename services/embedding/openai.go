package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIBatchSize      = 64
	openAIMaxRetries     = 3
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint
type OpenAIEmbedder struct {
	client     *http.Client
	apiKey     string
	model      string
	dimensions int
	endpoint   string
	batchSize  int
	retryDelay time.Duration
}

type openAIEmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type openAIEmbeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openAIEmbeddingResponse struct {
	Data  []openAIEmbeddingItem `json:"data"`
	Model string                `json:"model"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIEmbedder creates an embedder. baseURL defaults to the OpenAI API.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, baseURL string, batchSize int) *OpenAIEmbedder {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = openAIDefaultBaseURL
	}
	if batchSize <= 0 {
		batchSize = openAIBatchSize
	}
	return &OpenAIEmbedder{
		client:     &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		endpoint:   base + "/embeddings",
		batchSize:  batchSize,
		retryDelay: 2 * time.Second,
	}
}

func (o *OpenAIEmbedder) Dimensions() int { return o.dimensions }

func (o *OpenAIEmbedder) Model() string { return o.model }

func (o *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, o, text)
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, o.batchSize) {
		vecs, err := o.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (o *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload := openAIEmbeddingRequest{Model: o.model, Input: batch}
	if o.dimensions > 0 {
		dims := o.dimensions
		payload.Dimensions = &dims
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= openAIMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("embeddings request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := strings.TrimSpace(string(data))
			var errBody openAIErrorBody
			if json.Unmarshal(data, &errBody) == nil && errBody.Error.Message != "" {
				msg = errBody.Error.Message
			}
			return nil, fmt.Errorf("embeddings request failed (%d): %s", resp.StatusCode, msg)
		}

		var parsed openAIEmbeddingResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("decoding embeddings response: %w", err)
		}
		if len(parsed.Data) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(parsed.Data), len(batch))
		}

		// The API may return items out of order
		out := make([][]float32, len(batch))
		for _, item := range parsed.Data {
			if item.Index >= 0 && item.Index < len(batch) {
				out[item.Index] = item.Embedding
			}
		}
		for i := range out {
			if len(out[i]) == 0 {
				return nil, fmt.Errorf("embedding missing at index %d", i)
			}
			if o.dimensions > 0 && len(out[i]) != o.dimensions {
				return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(out[i]), o.dimensions)
			}
		}
		return out, nil
	}

	return nil, lastErr
}
