package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
)

type chatRequestStore struct {
	store *Store
}

var _ repositories.ChatRequestRepository = (*chatRequestStore)(nil)

const chatRequestColumns = `id, request_id, status, query, mode, language, k, model,
	context_used, sources, is_valid, error_count, warning_count, regenerated,
	prompt_tokens, completion_tokens, total_tokens, latency_ms,
	error_message, ip_address, user_agent, created_at, completed_at`

func (s *chatRequestStore) Create(ctx context.Context, req *models.ChatRequest) error {
	var sources, isValid, completedAt interface{}
	if len(req.Sources) > 0 {
		sources = string(req.Sources)
	}
	if req.IsValid != nil {
		isValid = *req.IsValid
	}
	if req.CompletedAt != nil {
		completedAt = req.CompletedAt.UnixNano()
	}

	_, err := s.store.exec(ctx).ExecContext(ctx, `INSERT INTO chat_requests (`+chatRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID.String(),
		req.RequestID,
		string(req.Status),
		req.Query,
		req.Mode,
		string(req.Language),
		req.K,
		req.Model,
		req.ContextUsed,
		sources,
		isValid,
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
		req.CreatedAt.UnixNano(),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting chat request: %w", err)
	}
	return nil
}

func (s *chatRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatRequest, error) {
	row := s.store.exec(ctx).QueryRowContext(ctx,
		`SELECT `+chatRequestColumns+` FROM chat_requests WHERE id = ?`, id.String())
	req, err := scanChatRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat request %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat request: %w", err)
	}
	return req, nil
}

func (s *chatRequestStore) List(ctx context.Context, limit, offset int) ([]*models.ChatRequest, error) {
	rows, err := s.store.exec(ctx).QueryContext(ctx,
		`SELECT `+chatRequestColumns+` FROM chat_requests ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing chat requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatRequest
	for rows.Next() {
		req, err := scanChatRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chat request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChatRequest(row scanner) (*models.ChatRequest, error) {
	var (
		req                   models.ChatRequest
		id, status, language  string
		sources, errorMessage sql.NullString
		isValid               sql.NullBool
		createdAt             int64
		completedAt           sql.NullInt64
	)

	err := row.Scan(
		&id, &req.RequestID, &status, &req.Query, &req.Mode, &language, &req.K, &req.Model,
		&req.ContextUsed, &sources, &isValid, &req.ErrorCount, &req.WarningCount, &req.Regenerated,
		&req.PromptTokens, &req.CompletionTokens, &req.TotalTokens, &req.LatencyMs,
		&errorMessage, &req.IPAddress, &req.UserAgent, &createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing chat request id %q: %w", id, err)
	}
	req.ID = parsed
	req.Status = models.ChatRequestStatus(status)
	req.Language = models.Language(language)
	req.CreatedAt = time.Unix(0, createdAt)

	if sources.Valid && sources.String != "" {
		req.Sources = []byte(sources.String)
	}
	if isValid.Valid {
		v := isValid.Bool
		req.IsValid = &v
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		req.ErrorMessage = &msg
	}
	if completedAt.Valid {
		t := time.Unix(0, completedAt.Int64)
		req.CompletedAt = &t
	}
	return &req, nil
}
