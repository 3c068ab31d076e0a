package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/handler"
	"storefront/internal/logging"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// 起動時に組み立てるハンドラ一式
type Handlers struct {
	Products    *handler.ProductHandler
	Checkout    *handler.CheckoutHandler
	Payments    *handler.PaymentHandler
	AdminAuth   *handler.AdminAuthHandler
	AdminOrders *handler.AdminOrderHandler
}

// /healthz で呼ぶ（DBのpingなど）。nilなら常にok。
type HealthFunc func(ctx context.Context) error

// New はミドルウェアとルートを登録したechoを返す
func New(h Handlers, verifier middleware.AdminTokenVerifier, health HealthFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logging.New("http")))
	e.Use(middleware.Metrics())

	RegisterRoutes(e, h, verifier, health)
	return e
}

func Start(e *echo.Echo, addr string) error {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func Shutdown(e *echo.Echo, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.Shutdown(ctx)
}
