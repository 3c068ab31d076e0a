package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ゲスト購入（ログイン不要）
type CheckoutHandler struct {
	checkout *usecase.CheckoutUsecase
	orders   *usecase.OrderUsecase
}

func NewCheckoutHandler(checkout *usecase.CheckoutUsecase, orders *usecase.OrderUsecase) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, orders: orders}
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/checkout", h.create)
	e.POST("/orders/:id/invoice", h.invoice)
	e.GET("/orders/:id", h.detail)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	var req usecase.CheckoutInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.checkout.Checkout(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CheckoutHandler) invoice(c echo.Context) error {
	out, err := h.checkout.CreateInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	status := http.StatusCreated
	if out.Reused {
		status = http.StatusOK
	}
	return c.JSON(status, out)
}

func (h *CheckoutHandler) detail(c echo.Context) error {
	out, err := h.orders.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
