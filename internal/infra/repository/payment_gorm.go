package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

var _ repo.PaymentRepository = (*PaymentGormRepository)(nil)

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) error {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *PaymentGormRepository) first(ctx context.Context, query string, args ...interface{}) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where(query, args...).Order("created_at desc").First(&p).Error
	if err != nil {
		return model.Payment{}, translateError(err)
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID string) (model.Payment, error) {
	return r.first(ctx, "id = ?", paymentID)
}

func (r *PaymentGormRepository) FindActiveByOrderID(ctx context.Context, orderID string) (model.Payment, error) {
	return r.first(ctx, "order_id = ? AND status = ?", orderID, model.PaymentStatusPending)
}

func (r *PaymentGormRepository) FindLatestByOrderID(ctx context.Context, orderID string) (model.Payment, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *PaymentGormRepository) FindByProviderInvoiceID(ctx context.Context, invoiceID string) (model.Payment, error) {
	if invoiceID == "" {
		return model.Payment{}, repo.ErrNotFound
	}
	return r.first(ctx, "provider_invoice_id = ?", invoiceID)
}

func (r *PaymentGormRepository) FindByProviderRef(ctx context.Context, ref string) (model.Payment, error) {
	if ref == "" {
		return model.Payment{}, repo.ErrNotFound
	}
	return r.first(ctx, "provider_transaction_ref = ?", ref)
}

func (r *PaymentGormRepository) Transition(ctx context.Context, paymentID string, to model.PaymentStatus, f repo.PaymentTransitionFields) (model.Payment, bool, error) {
	if !to.IsTerminal() {
		return model.Payment{}, false, repo.ErrInvalidTransition
	}

	updates := map[string]interface{}{"status": to}
	if f.PaymentMethod != "" {
		updates["payment_method"] = f.PaymentMethod
	}
	if f.PaymentChannel != "" {
		updates["payment_channel"] = f.PaymentChannel
	}
	if f.ProviderTransactionID != "" {
		updates["provider_transaction_id"] = f.ProviderTransactionID
	}
	if to == model.PaymentStatusPaid {
		at := time.Now()
		if f.PaidAt != nil {
			at = *f.PaidAt
		}
		updates["paid_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return model.Payment{}, false, translateError(res.Error)
	}

	cur, err := r.FindByID(ctx, paymentID)
	if err != nil {
		return model.Payment{}, false, err
	}
	if res.RowsAffected > 0 {
		return cur, true, nil
	}
	if cur.Status == to {
		return cur, false, nil
	}
	return cur, false, repo.ErrConflictingStatusTransition
}

func (r *PaymentGormRepository) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]model.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var items []model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.PaymentStatusPending, before).
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Payment{}, err
	}
	return items, nil
}
