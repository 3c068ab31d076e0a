package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logging"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// 管理者ロール（単一マーチャントなのでADMINのみ）
const RoleAdmin = "ADMIN"

var ErrUnauthorized = errors.New("unauthorized")

// 検証済みトークンの持ち主
type Principal struct {
	Email string
	Role  string
}

// 監査ログのactor表記
func (p Principal) Actor() string {
	return "admin:" + p.Email
}

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type AdminAuthUsecase struct {
	secret       []byte
	email        string
	passwordHash []byte
	ttl          time.Duration
	now          Clock
}

func NewAdminAuthUsecase(cfg config.Config, now Clock) *AdminAuthUsecase {
	if now == nil {
		now = time.Now
	}
	ttl := cfg.AdminTokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AdminAuthUsecase{
		secret:       []byte(cfg.JWTSecret),
		email:        strings.ToLower(strings.TrimSpace(cfg.AdminEmail)),
		passwordHash: []byte(cfg.AdminPasswordHash),
		ttl:          ttl,
		now:          now,
	}
}

func (u *AdminAuthUsecase) Login(ctx context.Context, req AdminLoginRequest) (AdminLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return AdminLoginResponse{}, NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	//メールとパスワードの両方を必ず検査する
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(u.email)) == 1
	pwErr := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(req.Password))
	if !emailOK || pwErr != nil {
		logging.FromCtx(ctx).Warn("admin login failed", "email", email)
		return AdminLoginResponse{}, WrapHTTPError(http.StatusUnauthorized, "invalid credentials", ErrUnauthorized)
	}

	token, err := u.issueAccessToken(email)
	if err != nil {
		return AdminLoginResponse{}, WrapHTTPError(http.StatusInternalServerError, "internal error", err)
	}
	return AdminLoginResponse{AccessToken: token, ExpiresIn: int(u.ttl.Seconds())}, nil
}

func (u *AdminAuthUsecase) issueAccessToken(email string) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"sub":  email,
		"role": RoleAdmin,
		"iat":  now.Unix(),
		"exp":  now.Add(u.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(u.secret)
}

// VerifyAdminToken はHS256署名・有効期限・roleを確認する
func (u *AdminAuthUsecase) VerifyAdminToken(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrUnauthorized
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return u.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role != RoleAdmin {
		return Principal{}, ErrUnauthorized
	}
	return Principal{Email: sub, Role: role}, nil
}
