package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"go.uber.org/zap"
)

// FragmentRepository implements repositories.FragmentRepository on pgvector
type FragmentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewFragmentRepository creates a new fragment repository
func NewFragmentRepository(db *DB, logger *zap.Logger) repositories.FragmentRepository {
	return &FragmentRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a fragment with its embedding
func (r *FragmentRepository) Insert(ctx context.Context, f *models.Fragment) error {
	query := `
		INSERT INTO soroban_chunks (id, content, metadata, embedding, chunk_index, created_at)
		VALUES ($1, $2, $3, $4::vector, $5, $6)
	`

	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal fragment metadata: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		f.ID,
		f.Content,
		metadata,
		vectorLiteral(f.Embedding),
		f.Metadata.ChunkIndex,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fragment: %w", err)
	}

	r.logger.Debug("fragment inserted",
		zap.String("id", f.ID.String()),
		zap.String("file", f.Metadata.File),
		zap.Int("chunk_index", f.Metadata.ChunkIndex))
	return nil
}

// Search returns the nearest fragments by cosine distance
func (r *FragmentRepository) Search(ctx context.Context, embedding []float32, limit int) ([]*models.Fragment, error) {
	query := `
		SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS similarity, created_at
		FROM soroban_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, vectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search fragments: %w", err)
	}
	defer rows.Close()

	var fragments []*models.Fragment
	for rows.Next() {
		f, err := scanFragment(rows, true)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fragments: %w", err)
	}
	return fragments, nil
}

// FindByFile returns the fragments of one source file in chunk order
func (r *FragmentRepository) FindByFile(ctx context.Context, file string, limit int) ([]*models.Fragment, error) {
	query := `
		SELECT id, content, metadata, created_at
		FROM soroban_chunks
		WHERE metadata->>'file' = $1
		ORDER BY chunk_index
		LIMIT $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, file, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find fragments by file: %w", err)
	}
	defer rows.Close()

	var fragments []*models.Fragment
	for rows.Next() {
		f, err := scanFragment(rows, false)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fragments: %w", err)
	}
	return fragments, nil
}

// DeleteAll removes every fragment
func (r *FragmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM soroban_chunks`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fragments: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("fragments deleted", zap.Int64("count", n))
	return n, nil
}

// CountByLanguage returns the number of fragments per documentation language
func (r *FragmentRepository) CountByLanguage(ctx context.Context) (map[models.Language]int, error) {
	query := `
		SELECT COALESCE(metadata->>'language_doc', ''), COUNT(*)
		FROM soroban_chunks
		GROUP BY 1
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count fragments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Language]int)
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("failed to scan fragment count: %w", err)
		}
		counts[models.Language(lang)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fragment counts: %w", err)
	}
	return counts, nil
}

func scanFragment(rows *sql.Rows, withSimilarity bool) (*models.Fragment, error) {
	f := &models.Fragment{}
	var metadata []byte

	dest := []interface{}{&f.ID, &f.Content, &metadata}
	if withSimilarity {
		dest = append(dest, &f.Similarity)
	}
	dest = append(dest, &f.CreatedAt)

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan fragment: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fragment metadata: %w", err)
		}
	}
	f.AdjustedScore = f.Similarity
	return f, nil
}
