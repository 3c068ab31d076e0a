package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

var _ repo.OrderRepository = (*OrderGormRepository)(nil)

func withLineItems(db *gorm.DB) *gorm.DB {
	return db.Preload("LineItems", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position asc")
	})
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) error {
	//明細はassociationで一緒に入る
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := withLineItems(r.db.WithContext(ctx)).Where("id = ?", orderID).First(&o).Error
	if err != nil {
		return model.Order{}, translateError(err)
	}
	return o, nil
}

func (r *OrderGormRepository) Transition(ctx context.Context, orderID string, to model.OrderStatus, paidAt *time.Time) (model.Order, bool, error) {
	if !to.IsTerminal() {
		return model.Order{}, false, repo.ErrInvalidTransition
	}

	updates := map[string]interface{}{"status": to}
	if to == model.OrderStatusPaid {
		at := time.Now()
		if paidAt != nil {
			at = *paidAt
		}
		updates["paid_at"] = at
	}

	//PENDINGの行だけ更新（同時に来たwebhookはどちらか一方だけが勝つ）
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return model.Order{}, false, res.Error
	}

	cur, err := r.FindByID(ctx, orderID)
	if err != nil {
		return model.Order{}, false, err
	}
	if res.RowsAffected > 0 {
		return cur, true, nil
	}
	// 同じ終端ステータスの再適用は何もしない
	if cur.Status == to {
		return cur, false, nil
	}
	return cur, false, repo.ErrConflictingStatusTransition
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := withLineItems(q).Order("created_at desc").Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListPaid(ctx context.Context, from *time.Time, to *time.Time) ([]model.Order, error) {
	q := withLineItems(r.db.WithContext(ctx)).Where("status = ?", model.OrderStatusPaid)
	if from != nil {
		q = q.Where("paid_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("paid_at <= ?", *to)
	}

	var orders []model.Order
	if err := q.Order("paid_at asc").Find(&orders).Error; err != nil {
		return []model.Order{}, err
	}
	return orders, nil
}
