package inference

import (
	"time"

	"github.com/google/uuid"
	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/internal/rag"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services/providers"
)

// Mode selects the prompt family for a question
type Mode string

const (
	ModeCode    Mode = "code"
	ModeExplain Mode = "explain"
)

// Valid reports whether the mode is known
func (m Mode) Valid() bool {
	return m == ModeCode || m == ModeExplain
}

const (
	DefaultK               = 5
	MaxK                   = 20
	DefaultTemperature     = 0.1
	DefaultChatK           = 4
	DefaultChatTemperature = 0.3
)

// AskRequest is one question to the pipeline
type AskRequest struct {
	RequestID string `json:"request_id,omitempty"`

	Query string `json:"query"`
	Mode  Mode   `json:"mode"`
	K     int    `json:"k"`

	// Temperature is nil when the caller did not set one
	Temperature *float64        `json:"temperature,omitempty"`
	CodeOnly    bool            `json:"code_only"`
	Language    models.Language `json:"language,omitempty"`

	// Request metadata
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Source cites one fragment used as context
type Source struct {
	File    string  `json:"file"`
	Section string  `json:"section"`
	Topic   string  `json:"topic"`
	HasCode bool    `json:"has_code"`
	Score   float64 `json:"score"`
}

// ValidationSummary is the validator verdict on the final answer
type ValidationSummary struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Regenerated bool     `json:"regenerated"`
	Message     string   `json:"message,omitempty"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt"`
	CompletionTokens int `json:"completion"`
	TotalTokens      int `json:"total"`
}

func usageFrom(u providers.Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// AskResponse is the answer to an AskRequest
type AskResponse struct {
	ID          uuid.UUID          `json:"id"`
	RequestID   string             `json:"request_id"`
	Answer      string             `json:"answer"`
	Sources     []Source           `json:"sources"`
	ContextUsed int                `json:"context_used"`
	Model       string             `json:"model,omitempty"`
	Language    models.Language    `json:"language"`
	Validation  *ValidationSummary `json:"validation,omitempty"`
	Tokens      Usage              `json:"tokens"`
	LatencyMs   int                `json:"latency_ms"`
}

// ChatRequest continues a conversation
type ChatRequest struct {
	RequestID   string              `json:"request_id,omitempty"`
	Message     string              `json:"message"`
	History     []providers.Message `json:"history"`
	K           int                 `json:"k"`
	Temperature *float64            `json:"temperature,omitempty"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// ChatResponse is the assistant's reply to a ChatRequest
type ChatResponse struct {
	ID          uuid.UUID `json:"id"`
	Answer      string    `json:"answer"`
	Sources     []Source  `json:"sources"`
	ContextUsed int       `json:"context_used"`
	Model       string    `json:"model"`
	Tokens      Usage     `json:"tokens"`
	LatencyMs   int       `json:"latency_ms"`
}

// ValidateRequest checks code without generating anything
type ValidateRequest struct {
	Code         string `json:"code"`
	ContractType string `json:"contract_type,omitempty"`
}

// StreamEventType names a server-sent event
type StreamEventType string

const (
	EventSources StreamEventType = "sources"
	EventToken   StreamEventType = "token"
	EventDone    StreamEventType = "done"
	EventError   StreamEventType = "error"
)

// StreamEvent is one event of a streamed answer. Sources always come first.
type StreamEvent struct {
	Type        StreamEventType `json:"type"`
	ID          uuid.UUID       `json:"id,omitempty"`
	Sources     []Source        `json:"sources,omitempty"`
	ContextUsed int             `json:"context_used,omitempty"`
	Language    models.Language `json:"language,omitempty"`
	Token       string          `json:"token,omitempty"`
	Model       string          `json:"model,omitempty"`
	Tokens      *Usage          `json:"tokens,omitempty"`
	Error       string          `json:"error,omitempty"`

	// Validated is set on done events. Streamed answers are sent as they
	// are generated, so it is always false there.
	Validated *bool `json:"validated,omitempty"`
}

// StreamFunc receives stream events in order. Returning an error aborts the stream.
type StreamFunc func(event StreamEvent) error

// PipelineContext holds the state of one request as it moves through the pipeline
type PipelineContext struct {
	ID        uuid.UUID
	StartTime time.Time
	Record    *models.ChatRequest

	Mode        Mode
	Intent      rag.QueryIntent
	Fragments   []*models.Fragment
	Context     string
	Temperature float64

	Messages []providers.Message
	Response *providers.ChatResponse
	Usage    providers.Usage

	Validation  *codecheck.Result
	Regenerated bool
}
