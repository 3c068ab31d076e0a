package middleware

import (
	"net/http"
	"strings"

	"storefront/internal/logging"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	CtxPrincipalKey = "admin_principal" // usecase.Principal
	CtxUserRoleKey  = "user_role"       // string
)

// 管理者トークンの検証（usecase.AdminAuthUsecaseが実装）
type AdminTokenVerifier interface {
	VerifyAdminToken(token string) (usecase.Principal, error)
}

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(verifier AdminTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			p, err := verifier.VerifyAdminToken(rawToken)
			if err != nil {
				logging.FromCtx(c.Request().Context()).Warn("admin token rejected", "err", err)
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxPrincipalKey, p)
			c.Set(CtxUserRoleKey, p.Role)

			return next(c)
		}
	}
}

// AuthJWTが入れた管理者
func PrincipalFrom(c echo.Context) (usecase.Principal, bool) {
	p, ok := c.Get(CtxPrincipalKey).(usecase.Principal)
	return p, ok && p.Email != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
