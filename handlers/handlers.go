package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/middleware"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"github.com/upb/sorobai/backend/services"
	"github.com/upb/sorobai/backend/utils"
)

// RequestListResponse is one page of the request log
type RequestListResponse struct {
	Requests []*models.ChatRequest `json:"requests"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
}

// RequestLogHandler exposes the persisted request log to operators
type RequestLogHandler struct {
	requests repositories.ChatRequestRepository
	logger   *zap.Logger
}

// NewRequestLogHandler creates a new RequestLogHandler
func NewRequestLogHandler(requests repositories.ChatRequestRepository, logger *zap.Logger) *RequestLogHandler {
	return &RequestLogHandler{
		requests: requests,
		logger:   logger,
	}
}

// HandleList handles GET /api/v1/requests
func (h *RequestLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	limit, offset, err := utils.ParsePagination(r.URL.Query())
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	requests, err := h.requests.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list requests", err), h.logger)
		return
	}
	if requests == nil {
		requests = []*models.ChatRequest{}
	}

	h.logger.Debug("listed requests",
		zap.String("request_id", requestID),
		zap.Int("count", len(requests)))

	_ = utils.WriteOK(w, RequestListResponse{
		Requests: requests,
		Limit:    limit,
		Offset:   offset,
	})
}

// HandleGet handles GET /api/v1/requests/{id}
func (h *RequestLogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request ID", nil)
		return
	}

	req, err := h.requests.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			HandleServiceError(w, services.ErrRequestNotFound, h.logger)
			return
		}
		HandleServiceError(w, services.WrapInternal("failed to load request", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, req)
}
