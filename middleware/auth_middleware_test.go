package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token allows request", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		claims := &Claims{Sub: "operator", Roles: []string{RoleAdmin}}
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			extracted := GetClaimsFromContext(r.Context())
			assert.NotNil(t, extracted)
			assert.Equal(t, "operator", extracted.Sub)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("lowercase scheme is accepted", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mockValidator.On("ValidateToken", mock.Anything, "tok").Return(&Claims{Sub: "a"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer tok")
		w := httptest.NewRecorder()
		NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name+" is rejected", func(t *testing.T) {
			mockValidator := new(MockTokenValidator)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
		})
	}

	t.Run("invalid token is rejected", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mockValidator.On("ValidateToken", mock.Anything, "expired").Return(nil, ErrTokenExpired)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer expired")
		w := httptest.NewRecorder()
		NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
	})

	t.Run("disabled auth lets everything through", func(t *testing.T) {
		middleware := NewAuthMiddleware(nil, logger)
		assert.False(t, middleware.Enabled())

		w := httptest.NewRecorder()
		middleware.RequireAuth(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		claims     *Claims
		wantStatus int
	}{
		{"admin passes", &Claims{Sub: "a", Roles: []string{"reader", RoleAdmin}}, http.StatusOK},
		{"other roles are forbidden", &Claims{Sub: "b", Roles: []string{"reader"}}, http.StatusForbidden},
		{"no claims is unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAuthMiddleware(new(MockTokenValidator), logger)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()
			middleware.RequireRole(RoleAdmin)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("disabled auth skips the role check", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewAuthMiddleware(nil, logger).RequireRole(RoleAdmin)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
	assert.Empty(t, GetRequestIDFromContext(context.Background()))

	assert.Nil(t, GetClaimsFromContext(ctx))
	ctx = WithClaims(ctx, &Claims{Sub: "x"})
	assert.Equal(t, "x", GetClaimsFromContext(ctx).Sub)
}

func TestAuthWithRealValidator(t *testing.T) {
	validator := NewHMACValidator("test-secret", "sorobai")
	token, err := validator.IssueToken("operator", []string{RoleAdmin}, 0)
	if !assert.NoError(t, err) {
		return
	}

	// A zero TTL token is already expired
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	NewAuthMiddleware(validator, zap.NewNop()).RequireAuth(okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err = validator.ValidateToken(context.Background(), token)
	assert.True(t, errors.Is(err, ErrTokenExpired))
}
