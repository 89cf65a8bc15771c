package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/config"
)

type fakeEmbedder struct {
	dims    int
	calls   atomic.Int32
	queries atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries.Add(1)
	return f.vector(text), nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(len(text)) + float32(i)/10
	}
	return v
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Model() string   { return "fake-model" }

func embeddingServer(t *testing.T, dims int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Dimensions)
		assert.Equal(t, dims, *req.Dimensions)

		// Reverse order to exercise index mapping
		resp := openAIEmbeddingResponse{Model: req.Model}
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dims)
			vec[0] = float32(len(req.Input[i]))
			resp.Data = append(resp.Data, openAIEmbeddingItem{Index: i, Embedding: vec})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var requests atomic.Int32
	server := embeddingServer(t, 3, &requests)
	defer server.Close()

	e := NewOpenAIEmbedder("test-key", "text-embedding-3-small", 3, server.URL+"/", 2)
	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, "text-embedding-3-small", e.Model())

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, int32(2), requests.Load(), "batch size 2 splits 3 texts into 2 requests")

	q, err := e.EmbedQuery(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, float32(4), q[0])

	empty, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		e := NewOpenAIEmbedder("", "m", 3, "http://unused", 0)
		_, err := e.Embed(context.Background(), []string{"x"})
		assert.ErrorContains(t, err, "api key")
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
		}))
		defer server.Close()

		e := NewOpenAIEmbedder("bad", "m", 3, server.URL, 0)
		_, err := e.Embed(context.Background(), []string{"x"})
		assert.ErrorContains(t, err, "Incorrect API key provided")
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(openAIEmbeddingResponse{Data: []openAIEmbeddingItem{{Index: 0, Embedding: []float32{1, 2, 3}}}})
		}))
		defer server.Close()

		e := NewOpenAIEmbedder("key", "m", 3, server.URL, 0)
		e.retryDelay = time.Millisecond
		vecs, err := e.Embed(context.Background(), []string{"x"})
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, vecs[0])
		assert.Equal(t, int32(2), requests.Load())
	})

	t.Run("wrong width", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(openAIEmbeddingResponse{Data: []openAIEmbeddingItem{{Index: 0, Embedding: []float32{1}}}})
		}))
		defer server.Close()

		e := NewOpenAIEmbedder("key", "m", 3, server.URL, 0)
		_, err := e.Embed(context.Background(), []string{"x"})
		assert.ErrorContains(t, err, "dimensions")
	})
}

func TestCachedEmbedder(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := &fakeEmbedder{dims: 4}
	cached := NewCachedEmbedder(next, client, time.Hour, zap.NewNop())
	ctx := context.Background()

	first, err := cached.EmbedQuery(ctx, "how do I create a token?")
	require.NoError(t, err)
	second, err := cached.EmbedQuery(ctx, "how do I create a token?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.queries.Load(), "second lookup is served from redis")

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], cacheKeyPrefix+"fake-model:")
	assert.True(t, mr.TTL(keys[0]) > 0)

	_, err = cached.Embed(ctx, []string{"doc"})
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1, "document embeddings are not cached")

	assert.Equal(t, 4, cached.Dimensions())
	assert.Equal(t, "fake-model", cached.Model())
}

func TestCachedEmbedder_FallsThroughWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	next := &fakeEmbedder{dims: 2}
	cached := NewCachedEmbedder(next, client, time.Hour, zap.NewNop())

	vec, err := cached.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, int32(1), next.queries.Load())
}

func TestCachedEmbedder_DiscardsWrongWidth(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := &fakeEmbedder{dims: 3}
	cached := NewCachedEmbedder(next, client, time.Hour, zap.NewNop())
	require.NoError(t, mr.Set(cached.key("q"), string(encodeVector([]float32{1}))))

	vec, err := cached.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, int32(1), next.queries.Load())
}

func TestRateLimitedEmbedder(t *testing.T) {
	next := &fakeEmbedder{dims: 2}

	assert.Same(t, Embedder(next), NewRateLimitedEmbedder(next, 0, 1), "non-positive rate disables throttling")

	limited := NewRateLimitedEmbedder(next, 1000, 1)
	_, err := limited.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, err = limited.EmbedQuery(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Dimensions())

	slow := NewRateLimitedEmbedder(next, 0.001, 1)
	_, err = slow.Embed(context.Background(), []string{"first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Embed(ctx, []string{"second"})
	assert.Error(t, err, "an exhausted bucket must respect the context deadline")
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.5, -0.25, 3.75}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, decodeVector([]byte{1, 2}))
}

func TestBatches(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batches([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, batches([]string{"a", "b"}, 0))
	assert.Nil(t, batches(nil, 2))
}

func TestNew(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingConfig{
		Provider:          config.EmbeddingProviderOpenAI,
		APIKey:            "key",
		Model:             "text-embedding-3-small",
		Dimensions:        1536,
		RequestsPerSecond: 5,
		Burst:             5,
	}, nil, time.Hour, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())
	assert.Equal(t, 1536, e.Dimensions())
	assert.IsType(t, &RateLimitedEmbedder{}, e)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cached, err := New(context.Background(), config.EmbeddingConfig{Provider: config.EmbeddingProviderOpenAI, Model: "m", Dimensions: 8}, client, time.Hour, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, cached)

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "cohere"}, nil, time.Hour, zap.NewNop())
	assert.Error(t, err)

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: config.EmbeddingProviderGemini}, nil, time.Hour, zap.NewNop())
	assert.ErrorContains(t, err, "api key")
}
