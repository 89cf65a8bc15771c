package providers

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestChatResponse_Content(t *testing.T) {
	tests := []struct {
		name string
		resp *ChatResponse
		want string
	}{
		{name: "nil response", resp: nil, want: ""},
		{name: "no choices", resp: &ChatResponse{}, want: ""},
		{
			name: "first choice",
			resp: &ChatResponse{Choices: []Choice{
				{Message: Message{Role: RoleAssistant, Content: "first"}},
				{Message: Message{Role: RoleAssistant, Content: "second"}},
			}},
			want: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Content(); got != tt.want {
				t.Errorf("Content() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsage_Add(t *testing.T) {
	first := Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}
	second := Usage{PromptTokens: 180, CompletionTokens: 40, TotalTokens: 220}

	got := first.Add(second)

	if got.PromptTokens != 280 || got.CompletionTokens != 90 || got.TotalTokens != 370 {
		t.Errorf("Add() = %+v", got)
	}
	if first.TotalTokens != 150 {
		t.Error("Add() must not modify the receiver")
	}
}

func TestDefaultProviderConfig(t *testing.T) {
	config := DefaultProviderConfig()

	if config.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", config.Timeout)
	}
	if config.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", config.MaxRetries)
	}
	if config.Headers == nil {
		t.Error("Headers should be initialized")
	}
}

func TestProviderError(t *testing.T) {
	tests := []struct {
		name          string
		err           *ProviderError
		wantMessage   string
		wantRetryable bool
	}{
		{
			name:          "rate limit with cause",
			err:           NewProviderError("openrouter", "rate_limit", "Rate limit exceeded", 429, true, errors.New("too many requests")),
			wantMessage:   "Rate limit exceeded: too many requests",
			wantRetryable: true,
		},
		{
			name:          "invalid request without cause",
			err:           NewProviderError("openrouter", "invalid_request", "Bad request", 400, false, nil),
			wantMessage:   "Bad request",
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMessage)
			}
			if IsRetryable(tt.err) != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(tt.err), tt.wantRetryable)
			}
		})
	}
}

func TestIsRetryable_Wrapped(t *testing.T) {
	inner := NewProviderError("openrouter", "server_error", "upstream failed", 503, true, nil)
	wrapped := fmt.Errorf("generation failed: %w", inner)

	if !IsRetryable(wrapped) {
		t.Error("IsRetryable() should see through wrapping")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable() should be false for non-provider errors")
	}

	var provErr *ProviderError
	if !errors.As(wrapped, &provErr) || provErr.StatusCode != 503 {
		t.Error("errors.As should recover the provider error")
	}
}
