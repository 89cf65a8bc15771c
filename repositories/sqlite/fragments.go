package sqlite

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
)

type fragmentStore struct {
	store *Store
}

var _ repositories.FragmentRepository = (*fragmentStore)(nil)

func (s *fragmentStore) Insert(ctx context.Context, f *models.Fragment) error {
	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.exec(ctx).ExecContext(ctx, `
		INSERT INTO soroban_chunks (id, content, metadata, embedding, file, language_doc, chunk_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID.String(),
		f.Content,
		string(metadata),
		encodeEmbedding(f.Embedding),
		f.Metadata.File,
		string(f.Metadata.LanguageDoc),
		f.Metadata.ChunkIndex,
		f.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting fragment: %w", err)
	}
	return nil
}

// Search scores every stored fragment against the query vector.
func (s *fragmentStore) Search(ctx context.Context, embedding []float32, limit int) ([]*models.Fragment, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.store.exec(ctx).QueryContext(ctx,
		`SELECT id, content, metadata, embedding, created_at FROM soroban_chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var results []*models.Fragment
	for rows.Next() {
		var (
			id, content, metadata string
			blob                  []byte
			createdAt             int64
		)
		if err := rows.Scan(&id, &content, &metadata, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}

		stored := decodeEmbedding(blob)
		if len(stored) != len(embedding) {
			s.store.logger.Warn("skipping fragment with mismatched embedding",
				zap.String("id", id),
				zap.Int("stored", len(stored)),
				zap.Int("query", len(embedding)))
			continue
		}

		f, err := newFragment(id, content, metadata, createdAt)
		if err != nil {
			return nil, err
		}
		f.Similarity = cosineSimilarity(embedding, stored)
		f.AdjustedScore = f.Similarity
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *fragmentStore) FindByFile(ctx context.Context, file string, limit int) ([]*models.Fragment, error) {
	rows, err := s.store.exec(ctx).QueryContext(ctx, `
		SELECT id, content, metadata, created_at
		FROM soroban_chunks
		WHERE file = ?
		ORDER BY chunk_index
		LIMIT ?
	`, file, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fragments by file: %w", err)
	}
	defer rows.Close()

	var results []*models.Fragment
	for rows.Next() {
		var id, content, metadata string
		var createdAt int64
		if err := rows.Scan(&id, &content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		f, err := newFragment(id, content, metadata, createdAt)
		if err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fragments: %w", err)
	}
	return results, nil
}

func (s *fragmentStore) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.store.exec(ctx).ExecContext(ctx, `DELETE FROM soroban_chunks`)
	if err != nil {
		return 0, fmt.Errorf("deleting fragments: %w", err)
	}
	return result.RowsAffected()
}

func (s *fragmentStore) CountByLanguage(ctx context.Context) (map[models.Language]int, error) {
	rows, err := s.store.exec(ctx).QueryContext(ctx,
		`SELECT language_doc, COUNT(*) FROM soroban_chunks GROUP BY language_doc`)
	if err != nil {
		return nil, fmt.Errorf("counting fragments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Language]int)
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("scanning fragment count: %w", err)
		}
		counts[models.Language(lang)] = n
	}
	return counts, rows.Err()
}

func newFragment(id, content, metadata string, createdAt int64) (*models.Fragment, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment id %q: %w", id, err)
	}
	f := &models.Fragment{
		ID:        parsed,
		Content:   content,
		CreatedAt: time.Unix(0, createdAt),
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &f.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	return f, nil
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
