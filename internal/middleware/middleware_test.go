package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mwErrorResponse struct {
	Error string `json:"error"`
}

type VerifierMock struct{ mock.Mock }

func (m *VerifierMock) VerifyAdminToken(token string) (usecase.Principal, error) {
	args := m.Called(token)
	p, _ := args.Get(0).(usecase.Principal)
	return p, args.Error(1)
}

func newAdminEcho(v middleware.AdminTokenVerifier) *echo.Echo {
	e := echo.New()
	g := e.Group("/admin", middleware.AuthJWT(v), middleware.AdminRoleGuard())
	g.GET("/me", func(c echo.Context) error {
		p, ok := middleware.PrincipalFrom(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, map[string]string{"email": p.Email})
	})
	return e
}

func TestAuthJWT(t *testing.T) {
	v := &VerifierMock{}
	v.On("VerifyAdminToken", "good").Return(usecase.Principal{Email: "admin@example.com", Role: usecase.RoleAdmin}, nil)
	v.On("VerifyAdminToken", "user").Return(usecase.Principal{Email: "u@example.com", Role: "USER"}, nil)
	v.On("VerifyAdminToken", "bad").Return(nil, usecase.ErrUnauthorized)
	e := newAdminEcho(v)

	tests := []struct {
		name   string
		authz  string
		status int
	}{
		{"ok", "Bearer good", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"not admin", "Bearer user", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				var body mwErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestRequestLogger_InjectsLoggerAndRequestID(t *testing.T) {
	e := echo.New()
	e.Use(middleware.RequestLogger(logging.Base()), middleware.Metrics())
	e.GET("/ping", func(c echo.Context) error {
		assert.NotNil(t, logging.FromCtx(c.Request().Context()))
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/fail", func(c echo.Context) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/fail", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}
