package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 遷移と同時に書き込む項目。空文字は上書きしない。
type PaymentTransitionFields struct {
	PaymentMethod         string
	PaymentChannel        string
	ProviderTransactionID string
	PaidAt                *time.Time
}

type PaymentRepository interface {
	// ユニーク制約違反はErrDuplicate
	Create(ctx context.Context, p model.Payment) error
	FindByID(ctx context.Context, paymentID string) (model.Payment, error)

	//注文のPENDING決済（無ければErrNotFound）
	FindActiveByOrderID(ctx context.Context, orderID string) (model.Payment, error)
	//注文の最新の決済
	FindLatestByOrderID(ctx context.Context, orderID string) (model.Payment, error)

	FindByProviderInvoiceID(ctx context.Context, invoiceID string) (model.Payment, error)
	FindByProviderRef(ctx context.Context, ref string) (model.Payment, error)

	// OrderRepository.Transitionと同じ約束
	Transition(ctx context.Context, paymentID string, to model.PaymentStatus, f PaymentTransitionFields) (model.Payment, bool, error)

	//作成から時間が経ったPENDING決済（古い順）
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]model.Payment, error)
}
