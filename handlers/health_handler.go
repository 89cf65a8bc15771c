package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/internal/observability"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"github.com/upb/sorobai/backend/services/audit"
	"github.com/upb/sorobai/backend/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// BuildInfo is the static part of the status report
type BuildInfo struct {
	Version        string `json:"version"`
	Environment    string `json:"environment"`
	StoreDriver    string `json:"store_driver"`
	GenerationLLM  string `json:"generation_model"`
	EmbeddingModel string `json:"embedding_model"`
	AuthEnabled    bool   `json:"auth_enabled"`
}

// StatusResponse is the body of GET /api/v1/status
type StatusResponse struct {
	BuildInfo
	Fragments  map[models.Language]int       `json:"fragments"`
	Metrics    observability.MetricsSnapshot `json:"metrics"`
	RequestLog *audit.Stats                  `json:"request_log,omitempty"`
}

// FragmentCounter counts stored fragments per language
type FragmentCounter interface {
	CountByLanguage(ctx context.Context) (map[models.Language]int, error)
}

// AuditStats reports the request-log queue
type AuditStats interface {
	GetStats() audit.Stats
}

// HealthHandler handles health and status HTTP requests
type HealthHandler struct {
	store     repositories.Pinger
	fragments FragmentCounter
	metrics   observability.Metrics
	audit     AuditStats
	info      BuildInfo
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. audit may be nil.
func NewHealthHandler(
	store repositories.Pinger,
	fragments FragmentCounter,
	metrics observability.Metrics,
	audit AuditStats,
	info BuildInfo,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		store:     store,
		fragments: fragments,
		metrics:   metrics,
		audit:     audit,
		info:      info,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Always returns 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.store == nil {
		checks["store"] = "not_initialized"
		allHealthy = false
	} else if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn("store health check failed", zap.Error(err))
		checks["store"] = "unhealthy"
		allHealthy = false
	} else {
		checks["store"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := StatusResponse{
		BuildInfo: h.info,
		Fragments: map[models.Language]int{},
	}

	if h.fragments != nil {
		counts, err := h.fragments.CountByLanguage(ctx)
		if err != nil {
			h.logger.Warn("failed to count fragments", zap.Error(err))
		} else {
			response.Fragments = counts
		}
	}
	if h.metrics != nil {
		response.Metrics = h.metrics.Snapshot()
	}
	if h.audit != nil {
		stats := h.audit.GetStats()
		response.RequestLog = &stats
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}
