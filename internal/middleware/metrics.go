package middleware

import (
	"net/http"
	"time"

	"storefront/internal/metrics"

	"github.com/labstack/echo/v4"
)

// pathはルート定義（/orders/:id）で集計する
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			metrics.HTTPRequests.WithLabelValues(method, path, http.StatusText(c.Response().Status)).Inc()
			metrics.HTTPDuration.WithLabelValues(method, path).Observe(float64(time.Since(start).Milliseconds()))
			return nil
		}
	}
}
