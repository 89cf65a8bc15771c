package providers

import (
	"context"
	"errors"
	"time"
)

// Provider is a chat completion backend
type Provider interface {
	// Name returns the provider name (e.g., "openrouter")
	Name() string

	// DefaultModel returns the model used when a request leaves Model empty
	DefaultModel() string

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently available
	IsAvailable(ctx context.Context) bool
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "deepseek/deepseek-chat")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature"`

	// TopP controls nucleus sampling
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences
	Stop []string `json:"stop,omitempty"`

	// Metadata for tracking and logging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	ID       string        `json:"id"`
	Model    string        `json:"model"`
	Choices  []Choice      `json:"choices"`
	Usage    Usage         `json:"usage"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
	Created  time.Time     `json:"created"`
}

// Content returns the text of the first choice, or "" when there is none
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a completion choice
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`

	// FinishReason indicates why the completion finished
	// Values: "stop", "length", "content_filter"
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the sum of two usages
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// Name reported by the provider
	Name string

	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// DefaultModel used when a request leaves Model empty
	DefaultModel string

	// MaxTokens applied when a request leaves MaxTokens unset
	MaxTokens int

	// Timeout for requests
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// RetryDelay between retries
	RetryDelay time.Duration

	// Additional headers
	Headers map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    120 * time.Second,
		MaxRetries: 2,
		RetryDelay: 1 * time.Second,
		Headers:    make(map[string]string),
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// StreamCallback is called for each chunk in a streaming response.
// Content chunks carry a single choice whose Message.Content is the delta;
// the final chunk carries Usage and a FinishReason.
type StreamCallback func(chunk *ChatResponse) error

// StreamingProvider extends Provider with streaming support
type StreamingProvider interface {
	Provider

	// ChatCompletionStream performs a streaming chat completion
	ChatCompletionStream(ctx context.Context, req *ChatRequest, callback StreamCallback) error
}
