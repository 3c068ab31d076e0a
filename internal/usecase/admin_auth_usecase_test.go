package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAdminAuth(t *testing.T) *usecase.AdminAuthUsecase {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return usecase.NewAdminAuthUsecase(config.Config{
		JWTSecret:         "test-secret",
		AdminEmail:        "Admin@Example.com",
		AdminPasswordHash: string(hash),
		AdminTokenTTL:     time.Hour,
	}, nil)
}

func TestAdminAuth_LoginAndVerify(t *testing.T) {
	u := newAdminAuth(t)

	res, err := u.Login(context.Background(), usecase.AdminLoginRequest{Email: "admin@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, 3600, res.ExpiresIn)

	p, err := u.VerifyAdminToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", p.Email)
	assert.Equal(t, "admin:admin@example.com", p.Actor())
}

func TestAdminAuth_LoginFailures(t *testing.T) {
	u := newAdminAuth(t)
	ctx := context.Background()

	_, err := u.Login(ctx, usecase.AdminLoginRequest{Email: "admin@example.com"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = u.Login(ctx, usecase.AdminLoginRequest{Email: "admin@example.com", Password: "wrong"})
	requireHTTPStatus(t, err, http.StatusUnauthorized)

	_, err = u.Login(ctx, usecase.AdminLoginRequest{Email: "other@example.com", Password: "s3cret"})
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAdminAuth_VerifyRejects(t *testing.T) {
	u := newAdminAuth(t)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", sign(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a@x", "role": "ADMIN", "exp": exp})},
		{"wrong role", sign(t, "test-secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a@x", "role": "USER", "exp": exp})},
		{"no sub", sign(t, "test-secret", jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN", "exp": exp})},
		{"expired", sign(t, "test-secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a@x", "role": "ADMIN", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"hs512", sign(t, "test-secret", jwt.SigningMethodHS512, jwt.MapClaims{"sub": "a@x", "role": "ADMIN", "exp": exp})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.VerifyAdminToken(tt.token)
			assert.ErrorIs(t, err, usecase.ErrUnauthorized)
		})
	}
}
