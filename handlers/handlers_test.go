package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/repositories"
)

// MockChatRequestRepository is a mock implementation of repositories.ChatRequestRepository
type MockChatRequestRepository struct {
	mock.Mock
}

func (m *MockChatRequestRepository) Create(ctx context.Context, req *models.ChatRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockChatRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRequest), args.Error(1)
}

func (m *MockChatRequestRepository) List(ctx context.Context, limit, offset int) ([]*models.ChatRequest, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatRequest), args.Error(1)
}

func newRequestLogRouter(repo repositories.ChatRequestRepository) http.Handler {
	h := NewRequestLogHandler(repo, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/api/v1/requests", h.HandleList)
	r.Get("/api/v1/requests/{id}", h.HandleGet)
	return r
}

func TestRequestLogHandler_List(t *testing.T) {
	t.Run("default page", func(t *testing.T) {
		repo := new(MockChatRequestRepository)
		repo.On("List", mock.Anything, 50, 0).Return([]*models.ChatRequest{
			{ID: uuid.New(), RequestID: "a", Status: models.ChatRequestStatusCompleted},
			{ID: uuid.New(), RequestID: "b", Status: models.ChatRequestStatusFailed},
		}, nil)

		w := httptest.NewRecorder()
		newRequestLogRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Len(t, data["requests"], 2)
		assert.Equal(t, float64(50), data["limit"])

		repo.AssertExpectations(t)
	})

	t.Run("empty log is an empty array", func(t *testing.T) {
		repo := new(MockChatRequestRepository)
		repo.On("List", mock.Anything, 10, 20).Return(nil, nil)

		w := httptest.NewRecorder()
		newRequestLogRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/requests?limit=10&offset=20", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"requests":[]`)
	})

	t.Run("bad pagination", func(t *testing.T) {
		repo := new(MockChatRequestRepository)

		w := httptest.NewRecorder()
		newRequestLogRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/requests?limit=0", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := new(MockChatRequestRepository)
		repo.On("List", mock.Anything, 50, 0).Return(nil, errors.New("disk I/O error"))

		w := httptest.NewRecorder()
		newRequestLogRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "disk")
	})
}

func TestRequestLogHandler_Get(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name           string
		path           string
		setup          func(*MockChatRequestRepository)
		expectedStatus int
	}{
		{
			name: "found",
			path: "/api/v1/requests/" + id.String(),
			setup: func(m *MockChatRequestRepository) {
				m.On("GetByID", mock.Anything, id).Return(&models.ChatRequest{ID: id, RequestID: "req-1"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found",
			path: "/api/v1/requests/" + id.String(),
			setup: func(m *MockChatRequestRepository) {
				m.On("GetByID", mock.Anything, id).Return(nil, fmt.Errorf("chat request %s: %w", id, repositories.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "store failure",
			path: "/api/v1/requests/" + id.String(),
			setup: func(m *MockChatRequestRepository) {
				m.On("GetByID", mock.Anything, id).Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "malformed id",
			path:           "/api/v1/requests/not-a-uuid",
			setup:          func(m *MockChatRequestRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockChatRequestRepository)
			tt.setup(repo)

			w := httptest.NewRecorder()
			newRequestLogRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			repo.AssertExpectations(t)
		})
	}
}
