// Package retrieval turns a question into the ordered documentation context
// handed to the prompt builder.
package retrieval

import (
	"context"
	"strings"

	"github.com/upb/sorobai/backend/internal/rag"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
	"github.com/upb/sorobai/backend/services"
	"github.com/upb/sorobai/backend/services/embedding"
	"go.uber.org/zap"
)

const (
	minOverfetch     = 3
	maxOverfetch     = 5
	canonicalLookups = 50
)

// Request is one retrieval call
type Request struct {
	Query string
	K     int
	// Language forces the query language; empty means detect it
	Language models.Language
}

// Result is the selected context plus what led to it
type Result struct {
	Intent        rag.QueryIntent
	Fragments     []*models.Fragment
	Candidates    int
	CanonicalUsed bool
}

// Service runs embed, search, canonical lookup and re-ranking for one query
type Service struct {
	fragments  repositories.FragmentRepository
	embedder   embedding.Embedder
	classifier *rag.Classifier
	selector   *rag.Selector
	overfetch  int
	logger     *zap.Logger
}

// NewService creates a retrieval service. overfetch is clamped to 3..5.
func NewService(
	fragments repositories.FragmentRepository,
	embedder embedding.Embedder,
	classifier *rag.Classifier,
	selector *rag.Selector,
	overfetch int,
	logger *zap.Logger,
) *Service {
	if overfetch < minOverfetch {
		overfetch = minOverfetch
	}
	if overfetch > maxOverfetch {
		overfetch = maxOverfetch
	}
	return &Service{
		fragments:  fragments,
		embedder:   embedder,
		classifier: classifier,
		selector:   selector,
		overfetch:  overfetch,
		logger:     logger,
	}
}

// Classify derives the intent of a query without touching the store
func (s *Service) Classify(query string, language models.Language) rag.QueryIntent {
	return s.classifier.ClassifyWithLanguage(query, language)
}

// Retrieve returns at most req.K fragments for the query. An empty result is
// not an error; the caller answers with the no-context message.
func (s *Service) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, services.ErrEmptyQuery
	}
	if req.K < 1 {
		return nil, services.ErrInvalidK
	}

	intent := s.Classify(req.Query, req.Language)

	vec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.NewTimeoutError("embedding", ctx.Err())
		}
		return nil, services.WrapExternal("failed to embed query", err)
	}

	candidates, err := s.fragments.Search(ctx, vec, req.K*s.overfetch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.NewTimeoutError("vector_search", ctx.Err())
		}
		return nil, services.WrapExternal("vector search failed", err)
	}

	result := &Result{Intent: intent, Candidates: len(candidates)}

	var canonical []*models.Fragment
	if s.selector.NeedsCanonical(req.Query, intent) {
		file := s.selector.Config().CanonicalFile
		canonical, err = s.fragments.FindByFile(ctx, file, canonicalLookups)
		if err != nil {
			// Fall back to plain ranking
			s.logger.Warn("canonical lookup failed",
				zap.String("file", file),
				zap.Error(err))
			canonical = nil
		}
	}

	result.Fragments = s.selector.Select(rag.SelectInput{
		Query:      req.Query,
		Intent:     intent,
		Candidates: candidates,
		Canonical:  canonical,
		K:          req.K,
		Language:   intent.Language,
	})
	for _, f := range result.Fragments {
		if len(canonical) > 0 && f.Metadata.File == s.selector.Config().CanonicalFile {
			result.CanonicalUsed = true
			break
		}
	}

	s.logger.Debug("context retrieved",
		zap.String("language", string(intent.Language)),
		zap.Bool("wants_code", intent.WantsCode),
		zap.Bool("wants_full_token_contract", intent.WantsFullTokenContract),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(result.Fragments)),
		zap.Bool("canonical", result.CanonicalUsed))

	return result, nil
}
