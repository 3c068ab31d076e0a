package handler

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// webhookの最大ボディ
const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	uc       *usecase.ReconcileUsecase
	provider string
}

// providerはwebhookのパス（/webhooks/midtrans など）
func NewPaymentHandler(uc *usecase.ReconcileUsecase, provider string) *PaymentHandler {
	return &PaymentHandler{uc: uc, provider: provider}
}

type WebhookResponse struct {
	Received bool            `json:"received"`
	Outcome  usecase.Outcome `json:"outcome"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/payments/status", h.status)
	e.POST("/webhooks/"+h.provider, h.webhook)
}

func (h *PaymentHandler) status(c echo.Context) error {
	out, err := h.uc.OnStatusPoll(c.Request().Context(), usecase.StatusQuery{
		OrderID:   c.QueryParam("order_id"),
		PaymentID: c.QueryParam("payment_id"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 署名検証のため生のボディを読む（Bindしない）
func (h *PaymentHandler) webhook(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.OnProviderPush(req.Context(), body, req.Header)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, WebhookResponse{Received: true, Outcome: res.Outcome})
}
