package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/sorobai/backend/services/providers"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "deepseek/deepseek-chat"
	defaultName    = "openrouter"
)

// OpenAIAdapter talks to any OpenAI-compatible chat completions API
// (OpenRouter, OpenAI, local gateways).
type OpenAIAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

var _ providers.StreamingProvider = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates a new OpenAI-compatible adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.DefaultModel == "" {
		config.DefaultModel = defaultModel
	}
	if config.Name == "" {
		config.Name = defaultName
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	return &OpenAIAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return a.config.Name
}

// DefaultModel returns the configured model
func (a *OpenAIAdapter) DefaultModel() string {
	return a.config.DefaultModel
}

// ChatCompletion performs a chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(a.buildOpenAIRequest(req, false))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	httpResp, err := a.do(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var openaiResp OpenAIChatResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	if len(openaiResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "Response contained no choices", httpResp.StatusCode, true, nil)
	}

	return a.convertToUnifiedResponse(&openaiResp, time.Since(startTime)), nil
}

// ChatCompletionStream performs a streaming chat completion over server-sent events
func (a *OpenAIAdapter) ChatCompletionStream(ctx context.Context, req *providers.ChatRequest, callback providers.StreamCallback) error {
	startTime := time.Now()

	reqBody, err := json.Marshal(a.buildOpenAIRequest(req, true))
	if err != nil {
		return providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	httpResp, err := a.do(ctx, reqBody)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return a.handleErrorResponse(httpResp.StatusCode, body)
	}

	var (
		id, model, finishReason string
		usage                   providers.Usage
	)

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			// Comments (": OPENROUTER PROCESSING") and blank separators
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk OpenAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to decode stream chunk", httpResp.StatusCode, false, err)
		}
		if chunk.Error != nil {
			return providers.NewProviderError(a.Name(), chunk.Error.Type, chunk.Error.Message, httpResp.StatusCode, false, errors.New(chunk.Error.Message))
		}

		if chunk.ID != "" {
			id = chunk.ID
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = providers.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}

		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
			if choice.Delta.Content == "" {
				continue
			}
			err := callback(&providers.ChatResponse{
				ID:       id,
				Model:    model,
				Provider: a.Name(),
				Choices: []providers.Choice{{
					Index:   choice.Index,
					Message: providers.Message{Role: providers.RoleAssistant, Content: choice.Delta.Content},
				}},
			})
			if err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return providers.NewProviderError(a.Name(), "STREAM_ERROR", "Stream interrupted", httpResp.StatusCode, true, err)
	}

	return callback(&providers.ChatResponse{
		ID:       id,
		Model:    model,
		Provider: a.Name(),
		Choices:  []providers.Choice{{FinishReason: finishReason, Message: providers.Message{Role: providers.RoleAssistant}}},
		Usage:    usage,
		Latency:  time.Since(startTime),
		Created:  time.Now(),
	})
}

// IsAvailable checks if the provider is currently available
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}

	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// do posts to /chat/completions, retrying transport failures and 5xx/429 responses.
// The body is rebuilt per attempt.
func (a *OpenAIAdapter) do(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
		for k, v := range a.config.Headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if (resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests) && attempt < a.config.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}

	return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, lastErr)
}

// buildOpenAIRequest converts unified request to OpenAI format
func (a *OpenAIAdapter) buildOpenAIRequest(req *providers.ChatRequest, stream bool) *OpenAIChatRequest {
	model := req.Model
	if model == "" {
		model = a.config.DefaultModel
	}
	temperature := req.Temperature

	openaiReq := &OpenAIChatRequest{
		Model:       model,
		Messages:    make([]OpenAIMessage, len(req.Messages)),
		Temperature: &temperature,
		Stream:      stream,
	}
	if stream {
		openaiReq.StreamOptions = &OpenAIStreamOptions{IncludeUsage: true}
	}

	for i, msg := range req.Messages {
		openaiReq.Messages[i] = OpenAIMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}
	if maxTokens > 0 {
		openaiReq.MaxTokens = &maxTokens
	}
	if req.TopP > 0 {
		topP := req.TopP
		openaiReq.TopP = &topP
	}
	if len(req.Stop) > 0 {
		openaiReq.Stop = req.Stop
	}

	return openaiReq
}

// convertToUnifiedResponse converts OpenAI response to unified format
func (a *OpenAIAdapter) convertToUnifiedResponse(openaiResp *OpenAIChatResponse, latency time.Duration) *providers.ChatResponse {
	resp := &providers.ChatResponse{
		ID:       openaiResp.ID,
		Model:    openaiResp.Model,
		Provider: a.Name(),
		Choices:  make([]providers.Choice, len(openaiResp.Choices)),
		Usage: providers.Usage{
			PromptTokens:     openaiResp.Usage.PromptTokens,
			CompletionTokens: openaiResp.Usage.CompletionTokens,
			TotalTokens:      openaiResp.Usage.TotalTokens,
		},
		Latency: latency,
		Created: time.Unix(openaiResp.Created, 0),
	}

	for i, choice := range openaiResp.Choices {
		resp.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: choice.FinishReason,
		}
	}

	return resp
}

// handleErrorResponse handles OpenAI error responses
func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp OpenAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", strings.TrimSpace(string(body)), statusCode, retryable, err)
	}

	code := errResp.Error.Type
	if code == "" {
		code = fmt.Sprint(errResp.Error.Code)
	}

	return providers.NewProviderError(
		a.Name(),
		code,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// OpenAI-specific request/response types

type OpenAIChatRequest struct {
	Model         string               `json:"model"`
	Messages      []OpenAIMessage      `json:"messages"`
	MaxTokens     *int                 `json:"max_tokens,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	TopP          *float64             `json:"top_p,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *OpenAIStreamOptions `json:"stream_options,omitempty"`
	Stop          []string             `json:"stop,omitempty"`
}

type OpenAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAIStreamChunk struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAIStreamChoice `json:"choices"`
	Usage   *OpenAIUsage         `json:"usage,omitempty"`
	Error   *OpenAIError         `json:"error,omitempty"`
}

type OpenAIStreamChoice struct {
	Index        int           `json:"index"`
	Delta        OpenAIMessage `json:"delta"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type OpenAIErrorResponse struct {
	Error OpenAIError `json:"error"`
}

// OpenAIError is the error object. OpenRouter sends a numeric code, OpenAI a string.
type OpenAIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}
