package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type OrderUsecase struct {
	orders   repo.OrderRepository
	payments repo.PaymentRepository
}

func NewOrderUsecase(orders repo.OrderRepository, payments repo.PaymentRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders, payments: payments}
}

type PaymentOutput struct {
	ID             string              `json:"id"`
	Provider       string              `json:"provider"`
	Status         model.PaymentStatus `json:"status"`
	Amount         int64               `json:"amount"`
	RedirectURL    string              `json:"redirect_url"`
	Token          string              `json:"token,omitempty"`
	PaymentMethod  string              `json:"payment_method,omitempty"`
	PaymentChannel string              `json:"payment_channel,omitempty"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	ExpiryDate     *time.Time          `json:"expiry_date,omitempty"`
}

type OrderDetailOutput struct {
	Order   model.Order    `json:"order"`
	Payment *PaymentOutput `json:"payment,omitempty"`
}

func toPaymentOutput(p model.Payment) *PaymentOutput {
	return &PaymentOutput{
		ID:             p.ID,
		Provider:       p.Provider,
		Status:         p.Status,
		Amount:         p.Amount,
		RedirectURL:    p.ProviderRedirectURL,
		Token:          p.ProviderToken,
		PaymentMethod:  p.PaymentMethod,
		PaymentChannel: p.PaymentChannel,
		PaidAt:         p.PaidAt,
		ExpiryDate:     p.ExpiryDate,
	}
}

// 注文と最新の決済
func (u *OrderUsecase) GetOrder(ctx context.Context, orderID string) (OrderDetailOutput, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderDetailOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return OrderDetailOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}

	out := OrderDetailOutput{Order: o}
	p, err := u.payments.FindLatestByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		out.Payment = toPaymentOutput(p)
	case errors.Is(err, repo.ErrNotFound):
	default:
		return OrderDetailOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	return out, nil
}
