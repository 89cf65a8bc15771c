package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACValidator_RoundTrip(t *testing.T) {
	v := NewHMACValidator("s3cret", "sorobai")

	token, err := v.IssueToken("operator", []string{RoleAdmin}, time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Sub)
	assert.Equal(t, "sorobai", claims.Issuer)
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.False(t, claims.HasRole("reader"))
	assert.Greater(t, claims.Exp, claims.Iat)
}

func TestHMACValidator_Rejects(t *testing.T) {
	v := NewHMACValidator("s3cret", "sorobai")
	ctx := context.Background()

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(iss string) jwtClaims {
		return jwtClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			Issuer:    iss,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), valid("sorobai")), ErrInvalidToken},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte("s3cret"), valid("someone-else")), ErrInvalidIssuer},
		{"other HMAC size", sign(jwt.SigningMethodHS512, []byte("s3cret"), valid("sorobai")), ErrInvalidToken},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid("sorobai")), ErrInvalidToken},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte("s3cret"), jwtClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "sorobai"}}), ErrInvalidToken},
		{"expired", sign(jwt.SigningMethodHS256, []byte("s3cret"), jwtClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			Issuer:    "sorobai",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}), ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(ctx, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHMACValidator_AnyIssuer(t *testing.T) {
	issuer := NewHMACValidator("s3cret", "ci")
	token, err := issuer.IssueToken("bot", nil, time.Minute)
	require.NoError(t, err)

	claims, err := NewHMACValidator("s3cret", "").ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ci", claims.Issuer)
}
