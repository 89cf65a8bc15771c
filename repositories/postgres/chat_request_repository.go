package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"go.uber.org/zap"
)

// ChatRequestRepository implements the repositories.ChatRequestRepository interface
type ChatRequestRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewChatRequestRepository creates a new chat request repository
func NewChatRequestRepository(db *DB, logger *zap.Logger) repositories.ChatRequestRepository {
	return &ChatRequestRepository{
		db:     db,
		logger: logger,
	}
}

const chatRequestColumns = `
	id, request_id, status, query, mode, language, k, model,
	context_used, sources, is_valid, error_count, warning_count, regenerated,
	prompt_tokens, completion_tokens, total_tokens, latency_ms,
	error_message, ip_address, user_agent, created_at, completed_at`

// Create persists a request log entry
func (r *ChatRequestRepository) Create(ctx context.Context, req *models.ChatRequest) error {
	query := `INSERT INTO chat_requests (` + chatRequestColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
	)`

	var sources interface{}
	if len(req.Sources) > 0 {
		sources = []byte(req.Sources)
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		req.ID,
		req.RequestID,
		req.Status,
		req.Query,
		req.Mode,
		req.Language,
		req.K,
		req.Model,
		req.ContextUsed,
		sources,
		req.IsValid,
		req.ErrorCount,
		req.WarningCount,
		req.Regenerated,
		req.PromptTokens,
		req.CompletionTokens,
		req.TotalTokens,
		req.LatencyMs,
		req.ErrorMessage,
		req.IPAddress,
		req.UserAgent,
		req.CreatedAt,
		req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}

	r.logger.Debug("chat request created", zap.String("id", req.ID.String()), zap.String("request_id", req.RequestID))
	return nil
}

// GetByID retrieves a request by ID
func (r *ChatRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatRequest, error) {
	query := `SELECT ` + chatRequestColumns + ` FROM chat_requests WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	req, err := scanChatRequest(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat request %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat request: %w", err)
	}
	return req, nil
}

// List returns requests newest first
func (r *ChatRequestRepository) List(ctx context.Context, limit, offset int) ([]*models.ChatRequest, error) {
	query := `SELECT ` + chatRequestColumns + `
		FROM chat_requests
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatRequest
	for rows.Next() {
		req, err := scanChatRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChatRequest(row rowScanner) (*models.ChatRequest, error) {
	req := &models.ChatRequest{}
	var (
		model                  sql.NullString
		sources                []byte
		isValid                sql.NullBool
		promptTokens           sql.NullInt64
		completionTokens       sql.NullInt64
		totalTokens, latencyMs sql.NullInt64
		ipAddress, userAgent   sql.NullString
	)

	err := row.Scan(
		&req.ID,
		&req.RequestID,
		&req.Status,
		&req.Query,
		&req.Mode,
		&req.Language,
		&req.K,
		&model,
		&req.ContextUsed,
		&sources,
		&isValid,
		&req.ErrorCount,
		&req.WarningCount,
		&req.Regenerated,
		&promptTokens,
		&completionTokens,
		&totalTokens,
		&latencyMs,
		&req.ErrorMessage,
		&ipAddress,
		&userAgent,
		&req.CreatedAt,
		&req.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Model = model.String
	if len(sources) > 0 {
		req.Sources = sources
	}
	if isValid.Valid {
		v := isValid.Bool
		req.IsValid = &v
	}
	req.PromptTokens = int(promptTokens.Int64)
	req.CompletionTokens = int(completionTokens.Int64)
	req.TotalTokens = int(totalTokens.Int64)
	req.LatencyMs = int(latencyMs.Int64)
	req.IPAddress = ipAddress.String
	req.UserAgent = userAgent.String
	return req, nil
}
