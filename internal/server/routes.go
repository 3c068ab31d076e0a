package server

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo, h Handlers, verifier middleware.AdminTokenVerifier, health HealthFunc) {
	e.GET("/healthz", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, handler.ErrorResponse{Error: "unhealthy"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h.Products.RegisterRoutes(e)
	h.Checkout.RegisterRoutes(e)
	h.Payments.RegisterRoutes(e)
	h.AdminAuth.RegisterRoutes(e)
	h.AdminOrders.RegisterRoutes(e, verifier)
}
