// Package ingest loads the markdown documentation into the fragment store.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/internal/rag"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"github.com/upb/sorobai/backend/services"
	"github.com/upb/sorobai/backend/services/embedding"
)

// Languages is the order Reingest walks the documentation in
var Languages = []models.Language{models.LanguageSpanish, models.LanguageEnglish}

// Stats summarises one language's ingestion
type Stats struct {
	Language models.Language `json:"language"`
	Files    int             `json:"files"`
	Chunks   int             `json:"chunks"`
	Ingested int             `json:"ingested"`
	Errors   int             `json:"errors"`
	Duration time.Duration   `json:"duration"`
	Error    string          `json:"error,omitempty"`
}

// SuccessRate is the share of chunks stored, in percent
func (s Stats) SuccessRate() float64 {
	if s.Chunks == 0 {
		return 0
	}
	return float64(s.Ingested) / float64(s.Chunks) * 100
}

// ReingestStats is the outcome of a full rebuild
type ReingestStats struct {
	Deleted   int64   `json:"deleted"`
	Languages []Stats `json:"languages"`
}

// Service reads docs/{lang}/*.md, chunks, classifies and embeds every chunk,
// and stores the fragments one file per transaction.
type Service struct {
	docs      fs.FS
	fragments repositories.FragmentRepository
	txManager repositories.TransactionManager
	embedder  embedding.Embedder
	chunker   *rag.Chunker
	logger    *zap.Logger
}

// NewService creates an ingestion service over docs, whose top-level
// directories are language codes
func NewService(
	docs fs.FS,
	fragments repositories.FragmentRepository,
	txManager repositories.TransactionManager,
	embedder embedding.Embedder,
	chunker *rag.Chunker,
	logger *zap.Logger,
) *Service {
	if chunker == nil {
		chunker = rag.NewChunker(rag.DefaultChunkerConfig())
	}
	return &Service{
		docs:      docs,
		fragments: fragments,
		txManager: txManager,
		embedder:  embedder,
		chunker:   chunker,
		logger:    logger,
	}
}

// pending is one chunk waiting to be stored
type pending struct {
	content string
	meta    models.FragmentMetadata
}

// IngestLanguage ingests every markdown file of one language. A chunk that
// fails to embed or store is counted and skipped; only an unreadable
// documentation directory is an error.
func (s *Service) IngestLanguage(ctx context.Context, lang models.Language) (Stats, error) {
	stats := Stats{Language: lang}
	if !lang.Valid() {
		return stats, services.ErrInvalidLanguage
	}
	start := time.Now()

	files, err := fs.Glob(s.docs, path.Join(string(lang), "*.md"))
	if err != nil {
		return stats, fmt.Errorf("listing %s docs: %w", lang, err)
	}
	if len(files) == 0 {
		if _, err := fs.Stat(s.docs, string(lang)); err != nil {
			return stats, fmt.Errorf("reading %s docs: %w", lang, err)
		}
	}
	sort.Strings(files)

	s.logger.Info("ingesting documentation",
		zap.String("language", string(lang)),
		zap.Int("files", len(files)))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw, err := fs.ReadFile(s.docs, file)
		if err != nil {
			s.logger.Warn("skipping unreadable file", zap.String("file", file), zap.Error(err))
			continue
		}
		stats.Files++

		chunks := s.chunker.Split(string(raw))
		stats.Chunks += len(chunks)

		batch := make([]pending, 0, len(chunks))
		for _, c := range chunks {
			meta := rag.ClassifyFragment(file, c.Text, lang)
			meta.ChunkIndex = c.Index
			batch = append(batch, pending{content: c.Text, meta: meta})
		}

		fragments, failed := s.embed(ctx, file, batch)
		stats.Errors += failed
		if len(fragments) == 0 {
			continue
		}

		stored, err := s.store(ctx, fragments)
		if err != nil {
			stats.Errors += len(fragments)
			s.logger.Warn("failed to store file fragments",
				zap.String("file", file),
				zap.Int("fragments", len(fragments)),
				zap.Error(err))
			continue
		}
		stats.Ingested += stored

		s.logger.Debug("file ingested",
			zap.String("file", file),
			zap.Int("chunks", len(chunks)),
			zap.Int("stored", stored))
	}

	stats.Duration = time.Since(start)
	s.logger.Info("ingestion completed",
		zap.String("language", string(lang)),
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("ingested", stats.Ingested),
		zap.Int("errors", stats.Errors),
		zap.Float64("success_rate", stats.SuccessRate()),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// embed embeds a file's chunks in one call, falling back to one call per
// chunk when the batch fails so a single bad chunk costs only itself
func (s *Service) embed(ctx context.Context, file string, batch []pending) ([]*models.Fragment, int) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) == len(batch) {
		out := make([]*models.Fragment, len(batch))
		for i, p := range batch {
			out[i] = models.NewFragment(p.content, p.meta, vectors[i])
		}
		return out, 0
	}

	s.logger.Warn("batch embedding failed, retrying chunk by chunk",
		zap.String("file", file),
		zap.Int("chunks", len(batch)),
		zap.Error(err))

	out := make([]*models.Fragment, 0, len(batch))
	failed := 0
	for _, p := range batch {
		vec, err := s.embedder.Embed(ctx, []string{p.content})
		if err != nil || len(vec) != 1 {
			failed++
			s.logger.Warn("chunk embedding failed",
				zap.String("file", file),
				zap.Int("chunk", p.meta.ChunkIndex),
				zap.Error(err))
			continue
		}
		out = append(out, models.NewFragment(p.content, p.meta, vec[0]))
	}
	return out, failed
}

func (s *Service) store(ctx context.Context, fragments []*models.Fragment) (int, error) {
	return services.RunInTransaction(ctx, s.txManager, func(ctx context.Context) (int, error) {
		for _, f := range fragments {
			if err := s.fragments.Insert(ctx, f); err != nil {
				return 0, fmt.Errorf("inserting %s chunk %d: %w", f.Metadata.File, f.Metadata.ChunkIndex, err)
			}
		}
		return len(fragments), nil
	})
}

// Reingest clears the store and ingests every language. A language that
// fails is reported in its Stats and does not stop the others.
func (s *Service) Reingest(ctx context.Context) (*ReingestStats, error) {
	deleted, err := s.fragments.DeleteAll(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to clear fragments", err)
	}
	s.logger.Info("fragment store cleared", zap.Int64("deleted", deleted))

	out := &ReingestStats{Deleted: deleted}
	for _, lang := range Languages {
		stats, err := s.IngestLanguage(ctx, lang)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			stats.Error = err.Error()
			s.logger.Error("language ingestion failed",
				zap.String("language", string(lang)),
				zap.Error(err))
		}
		out.Languages = append(out.Languages, stats)
	}
	return out, nil
}
