package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatRequestStatus represents the status of a logged question
type ChatRequestStatus string

const (
	ChatRequestStatusPending    ChatRequestStatus = "pending"
	ChatRequestStatusProcessing ChatRequestStatus = "processing"
	ChatRequestStatusCompleted  ChatRequestStatus = "completed"
	ChatRequestStatusFailed     ChatRequestStatus = "failed"
	ChatRequestStatusTimeout    ChatRequestStatus = "timeout"
)

// ChatRequest is the persisted log of one question answered by the pipeline
type ChatRequest struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	RequestID string            `json:"request_id" db:"request_id"` // External request ID
	Status    ChatRequestStatus `json:"status" db:"status"`

	Query    string   `json:"query" db:"query"`
	Mode     string   `json:"mode" db:"mode"`
	Language Language `json:"language" db:"language"`
	K        int      `json:"k" db:"k"`
	Model    string   `json:"model" db:"model"`

	ContextUsed int             `json:"context_used" db:"context_used"`
	Sources     json.RawMessage `json:"sources,omitempty" db:"sources"`

	// Validation outcome for code answers
	IsValid      *bool `json:"is_valid,omitempty" db:"is_valid"`
	ErrorCount   int   `json:"error_count" db:"error_count"`
	WarningCount int   `json:"warning_count" db:"warning_count"`
	Regenerated  bool  `json:"regenerated" db:"regenerated"`

	PromptTokens     int `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" db:"total_tokens"`
	LatencyMs        int `json:"latency_ms" db:"latency_ms"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	IPAddress string `json:"ip_address" db:"ip_address"`
	UserAgent string `json:"user_agent" db:"user_agent"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// TableName returns the table name for the ChatRequest model
func (ChatRequest) TableName() string {
	return "chat_requests"
}

// NewChatRequest creates a new pending ChatRequest
func NewChatRequest(requestID, query, mode string, language Language, k int) *ChatRequest {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return &ChatRequest{
		ID:        uuid.New(),
		RequestID: requestID,
		Status:    ChatRequestStatusPending,
		Query:     query,
		Mode:      mode,
		Language:  language,
		K:         k,
		CreatedAt: time.Now(),
	}
}

// MarkAsProcessing marks the request as processing
func (cr *ChatRequest) MarkAsProcessing() {
	cr.Status = ChatRequestStatusProcessing
}

// MarkAsCompleted marks the request as completed
func (cr *ChatRequest) MarkAsCompleted(model string, contextUsed, promptTokens, completionTokens, latencyMs int) {
	cr.Status = ChatRequestStatusCompleted
	cr.Model = model
	cr.ContextUsed = contextUsed
	cr.PromptTokens = promptTokens
	cr.CompletionTokens = completionTokens
	cr.TotalTokens = promptTokens + completionTokens
	cr.LatencyMs = latencyMs
	now := time.Now()
	cr.CompletedAt = &now
}

// MarkAsFailed marks the request as failed
func (cr *ChatRequest) MarkAsFailed(errorMessage string) {
	cr.Status = ChatRequestStatusFailed
	cr.ErrorMessage = &errorMessage
	now := time.Now()
	cr.CompletedAt = &now
}

// MarkAsTimedOut marks the request as exceeding the pipeline deadline
func (cr *ChatRequest) MarkAsTimedOut(errorMessage string) {
	cr.MarkAsFailed(errorMessage)
	cr.Status = ChatRequestStatusTimeout
}

// SetValidation records the validator verdict of the final answer
func (cr *ChatRequest) SetValidation(isValid bool, errorCount, warningCount int, regenerated bool) {
	cr.IsValid = &isValid
	cr.ErrorCount = errorCount
	cr.WarningCount = warningCount
	cr.Regenerated = regenerated
}

// SetSources stores the cited sources as JSON
func (cr *ChatRequest) SetSources(sources interface{}) {
	if data, err := json.Marshal(sources); err == nil {
		cr.Sources = data
	}
}

// SetRequestMetadata sets request metadata
func (cr *ChatRequest) SetRequestMetadata(ipAddress, userAgent string) {
	cr.IPAddress = ipAddress
	cr.UserAgent = userAgent
}
