package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/internal/rag"
	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services"
)

const canonicalFile = "examples_token_contract.md"

// MockFragmentRepository is a mock implementation of FragmentRepository
type MockFragmentRepository struct {
	mock.Mock
}

func (m *MockFragmentRepository) Insert(ctx context.Context, fragment *models.Fragment) error {
	args := m.Called(ctx, fragment)
	return args.Error(0)
}

func (m *MockFragmentRepository) Search(ctx context.Context, embedding []float32, limit int) ([]*models.Fragment, error) {
	args := m.Called(ctx, embedding, limit)
	if out := args.Get(0); out != nil {
		return out.([]*models.Fragment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFragmentRepository) FindByFile(ctx context.Context, file string, limit int) ([]*models.Fragment, error) {
	args := m.Called(ctx, file, limit)
	if out := args.Get(0); out != nil {
		return out.([]*models.Fragment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFragmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFragmentRepository) CountByLanguage(ctx context.Context) (map[models.Language]int, error) {
	args := m.Called(ctx)
	if out := args.Get(0); out != nil {
		return out.(map[models.Language]int), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, s.err
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) Model() string   { return "stub" }

func fragment(file string, docType models.DocType, lang models.Language, similarity float64, i int) *models.Fragment {
	f := models.NewFragment(fmt.Sprintf("%s chunk %d", file, i), models.FragmentMetadata{
		File:        file,
		Topic:       "token",
		Section:     "examples",
		DocType:     docType,
		ContentType: models.ContentTypeMixed,
		LanguageDoc: lang,
		ChunkIndex:  i,
	}, nil)
	f.Similarity = similarity
	return f
}

func newTestService(repo *MockFragmentRepository, embedder *stubEmbedder, overfetch int) *Service {
	return NewService(
		repo,
		embedder,
		rag.NewClassifier(rag.DefaultVocabulary()),
		rag.NewSelector(rag.DefaultSelectorConfig()),
		overfetch,
		zap.NewNop(),
	)
}

func TestNewService_ClampsOverfetch(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 3},
		{3, 3},
		{4, 4},
		{5, 5},
		{9, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			s := newTestService(new(MockFragmentRepository), &stubEmbedder{}, tt.in)
			assert.Equal(t, tt.want, s.overfetch)
		})
	}
}

func TestRetrieve_PlainRanking(t *testing.T) {
	repo := new(MockFragmentRepository)
	candidates := []*models.Fragment{
		fragment("storage.md", models.DocTypeOther, models.LanguageEnglish, 0.9, 0),
		fragment("auth.md", models.DocTypeOther, models.LanguageEnglish, 0.8, 0),
		fragment("events.md", models.DocTypeOther, models.LanguageEnglish, 0.7, 0),
		fragment("almacenamiento.md", models.DocTypeOther, models.LanguageSpanish, 0.95, 0),
	}
	repo.On("Search", mock.Anything, []float32{1, 0, 0}, 8).Return(candidates, nil)

	s := newTestService(repo, &stubEmbedder{}, 4)
	res, err := s.Retrieve(context.Background(), Request{Query: "explain how persistent storage works", K: 2})
	require.NoError(t, err)

	assert.Equal(t, models.LanguageEnglish, res.Intent.Language)
	assert.Equal(t, 4, res.Candidates)
	assert.False(t, res.CanonicalUsed)
	require.Len(t, res.Fragments, 2)
	for _, f := range res.Fragments {
		assert.Equal(t, models.LanguageEnglish, f.Metadata.LanguageDoc, "fragments in another language are excluded")
	}
	repo.AssertNotCalled(t, "FindByFile", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestRetrieve_CanonicalOverride(t *testing.T) {
	repo := new(MockFragmentRepository)
	candidates := []*models.Fragment{
		fragment("examples_token.md", models.DocTypePatternsGuide, models.LanguageEnglish, 0.92, 0),
		fragment("examples_token.md", models.DocTypePatternsGuide, models.LanguageEnglish, 0.91, 1),
		fragment("storage.md", models.DocTypeOther, models.LanguageEnglish, 0.9, 0),
	}
	var canonical []*models.Fragment
	for i := 0; i < 6; i++ {
		canonical = append(canonical, fragment(canonicalFile, models.DocTypeCompleteContract, models.LanguageEnglish, 0, i))
	}
	repo.On("Search", mock.Anything, mock.Anything, 15).Return(candidates, nil)
	repo.On("FindByFile", mock.Anything, canonicalFile, canonicalLookups).Return(canonical, nil)

	s := newTestService(repo, &stubEmbedder{}, 3)
	res, err := s.Retrieve(context.Background(), Request{Query: "Create a full token contract with allowances", K: 5})
	require.NoError(t, err)

	assert.True(t, res.Intent.WantsFullTokenContract)
	assert.True(t, res.CanonicalUsed)
	require.Len(t, res.Fragments, 5)

	fromCanonical := 0
	for _, f := range res.Fragments {
		if f.Metadata.File == canonicalFile {
			fromCanonical++
		}
	}
	assert.GreaterOrEqual(t, fromCanonical, 4)
	repo.AssertExpectations(t)
}

func TestRetrieve_CanonicalLookupFailureFallsBack(t *testing.T) {
	repo := new(MockFragmentRepository)
	candidates := []*models.Fragment{
		fragment("storage.md", models.DocTypeOther, models.LanguageEnglish, 0.9, 0),
	}
	repo.On("Search", mock.Anything, mock.Anything, 9).Return(candidates, nil)
	repo.On("FindByFile", mock.Anything, canonicalFile, canonicalLookups).Return(nil, errors.New("connection reset"))

	s := newTestService(repo, &stubEmbedder{}, 3)
	res, err := s.Retrieve(context.Background(), Request{Query: "Create a full token contract with allowances", K: 3})
	require.NoError(t, err)
	assert.False(t, res.CanonicalUsed)
	assert.Len(t, res.Fragments, 1)
}

func TestRetrieve_EmptyStoreIsNotAnError(t *testing.T) {
	repo := new(MockFragmentRepository)
	repo.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Fragment{}, nil)

	s := newTestService(repo, &stubEmbedder{}, 3)
	res, err := s.Retrieve(context.Background(), Request{Query: "explain events", K: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Fragments)
	assert.Equal(t, 0, res.Candidates)
}

func TestRetrieve_LanguageHint(t *testing.T) {
	repo := new(MockFragmentRepository)
	candidates := []*models.Fragment{
		fragment("storage.md", models.DocTypeOther, models.LanguageEnglish, 0.9, 0),
		fragment("almacenamiento.md", models.DocTypeOther, models.LanguageSpanish, 0.8, 0),
	}
	repo.On("Search", mock.Anything, mock.Anything, 9).Return(candidates, nil)

	s := newTestService(repo, &stubEmbedder{}, 3)
	res, err := s.Retrieve(context.Background(), Request{Query: "explain storage", K: 3, Language: models.LanguageSpanish})
	require.NoError(t, err)
	assert.Equal(t, models.LanguageSpanish, res.Intent.Language)
	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "almacenamiento.md", res.Fragments[0].Metadata.File)
}

func TestRetrieve_Errors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		s := newTestService(new(MockFragmentRepository), &stubEmbedder{}, 3)
		_, err := s.Retrieve(context.Background(), Request{Query: "   ", K: 3})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("invalid k", func(t *testing.T) {
		s := newTestService(new(MockFragmentRepository), &stubEmbedder{}, 3)
		_, err := s.Retrieve(context.Background(), Request{Query: "q", K: 0})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("embedding failure is external", func(t *testing.T) {
		s := newTestService(new(MockFragmentRepository), &stubEmbedder{err: errors.New("401 unauthorized")}, 3)
		_, err := s.Retrieve(context.Background(), Request{Query: "q", K: 3})
		assert.True(t, services.IsExternalError(err))
		assert.ErrorContains(t, err, "401 unauthorized")
	})

	t.Run("search failure is external", func(t *testing.T) {
		repo := new(MockFragmentRepository)
		repo.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("relation does not exist"))
		s := newTestService(repo, &stubEmbedder{}, 3)
		_, err := s.Retrieve(context.Background(), Request{Query: "q", K: 3})
		assert.True(t, services.IsExternalError(err))
	})

	t.Run("expired context is a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := newTestService(new(MockFragmentRepository), &stubEmbedder{err: context.Canceled}, 3)
		_, err := s.Retrieve(ctx, Request{Query: "q", K: 3})
		assert.True(t, services.IsTimeoutError(err))
	})
}
