package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/internal/codecheck"
	"github.com/upb/sorobai/backend/middleware"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services/inference"
	"github.com/upb/sorobai/backend/services/providers"
	"github.com/upb/sorobai/backend/utils"
)

// maxBodyBytes bounds request bodies; contracts sent for validation can be long
const maxBodyBytes = 1 << 20

// AskBody is the body of POST /api/v1/ask
type AskBody struct {
	Query       string   `json:"query" validate:"required,max=8000"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=code explain"`
	K           int      `json:"k" validate:"omitempty,gte=1,lte=20"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Stream      bool     `json:"stream"`
	CodeOnly    bool     `json:"code_only"`
	Language    string   `json:"language" validate:"doclang"`
}

// ChatMessage represents a single chat message
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatBody is the body of POST /api/v1/chat
type ChatBody struct {
	Message     string        `json:"message" validate:"required,max=8000"`
	History     []ChatMessage `json:"history" validate:"max=50,dive"`
	K           int           `json:"k" validate:"omitempty,gte=1,lte=20"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// ValidateBody is the body of POST /api/v1/validate
type ValidateBody struct {
	Code         string `json:"code" validate:"required"`
	ContractType string `json:"contract_type,omitempty" validate:"omitempty,max=64"`
}

// InferenceService defines the pipeline operations the handlers expose
type InferenceService interface {
	Ask(ctx context.Context, req *inference.AskRequest) (*inference.AskResponse, error)
	AskStream(ctx context.Context, req *inference.AskRequest, emit inference.StreamFunc) error
	Chat(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error)
	ValidateCode(req *inference.ValidateRequest) (codecheck.Report, error)
}

// InferenceHandler handles the question-answering endpoints
type InferenceHandler struct {
	service InferenceService
	logger  *zap.Logger
}

// NewInferenceHandler creates a new InferenceHandler
func NewInferenceHandler(service InferenceService, logger *zap.Logger) *InferenceHandler {
	return &InferenceHandler{
		service: service,
		logger:  logger,
	}
}

// decode reads and validates a JSON body, writing the 400 itself on failure
func (h *InferenceHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return false
	}
	return true
}

// HandleAsk handles POST /api/v1/ask
func (h *InferenceHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body AskBody
	if !h.decode(w, r, &body) {
		return
	}

	req := &inference.AskRequest{
		RequestID:   requestID,
		Query:       body.Query,
		Mode:        inference.Mode(body.Mode),
		K:           body.K,
		Temperature: body.Temperature,
		CodeOnly:    body.CodeOnly,
		Language:    models.Language(body.Language),
		IPAddress:   getClientIP(r),
		UserAgent:   r.UserAgent(),
	}

	if body.Stream {
		h.streamAsk(w, r, req)
		return
	}

	h.logger.Debug("processing question",
		zap.String("request_id", requestID),
		zap.String("mode", body.Mode),
		zap.Int("k", body.K))

	resp, err := h.service.Ask(ctx, req)
	if err != nil {
		h.logger.Error("failed to answer question",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("question answered",
		zap.String("request_id", requestID),
		zap.String("model", resp.Model),
		zap.Int("context_used", resp.ContextUsed),
		zap.Int("total_tokens", resp.Tokens.TotalTokens),
		zap.Int("latency_ms", resp.LatencyMs))

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// streamAsk answers over server-sent events. An error before the first event
// is a plain JSON error; after it, an error event closes the stream.
func (h *InferenceHandler) streamAsk(w http.ResponseWriter, r *http.Request, req *inference.AskRequest) {
	requestID := req.RequestID

	events := utils.NewEventWriter(w)
	if events == nil {
		h.logger.Error("response writer cannot stream", zap.String("request_id", requestID))
		_ = utils.WriteInternalServerError(w, "Streaming is not supported")
		return
	}

	err := h.service.AskStream(r.Context(), req, func(e inference.StreamEvent) error {
		return events.Send(string(e.Type), e)
	})
	if err == nil {
		return
	}

	h.logger.Error("streamed answer failed",
		zap.String("request_id", requestID),
		zap.Bool("started", events.Started()),
		zap.Error(err))

	if !events.Started() {
		HandleServiceError(w, err, h.logger)
		return
	}
	if sendErr := events.Send(string(inference.EventError), inference.StreamEvent{
		Type:  inference.EventError,
		Error: err.Error(),
	}); sendErr != nil {
		h.logger.Debug("client gone before error event", zap.String("request_id", requestID), zap.Error(sendErr))
	}
}

// HandleChat handles POST /api/v1/chat
func (h *InferenceHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var body ChatBody
	if !h.decode(w, r, &body) {
		return
	}

	history := make([]providers.Message, 0, len(body.History))
	for _, m := range body.History {
		history = append(history, providers.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := h.service.Chat(ctx, &inference.ChatRequest{
		RequestID:   requestID,
		Message:     body.Message,
		History:     history,
		K:           body.K,
		Temperature: body.Temperature,
		IPAddress:   getClientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("chat failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleValidate handles POST /api/v1/validate
func (h *InferenceHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	var body ValidateBody
	if !h.decode(w, r, &body) {
		return
	}

	report, err := h.service.ValidateCode(&inference.ValidateRequest{
		Code:         body.Code,
		ContractType: body.ContractType,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("code validated",
		zap.String("request_id", requestID),
		zap.Bool("valid", report.IsValid),
		zap.Int("errors", report.Summary.TotalErrors),
		zap.Int("warnings", report.Summary.TotalWarnings))

	if err := utils.WriteOK(w, report); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// getClientIP extracts the client IP address from the request.
// chi's RealIP middleware has already rewritten RemoteAddr when a proxy header was present.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
