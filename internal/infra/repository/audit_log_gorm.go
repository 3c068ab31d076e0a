package repository

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

// Create は遷移と同じtxで呼ばれる前提。作成時刻が空なら今を入れる。
func (r *auditLogGormRepository) Create(ctx context.Context, entry model.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.db.NowFunc()
	}
	return translateError(r.db.WithContext(ctx).Create(&entry).Error)
}

func (r *auditLogGormRepository) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditLog{})

	if filter.Actor != "" {
		q = q.Where("actor = ?", filter.Actor)
	}
	if src := strings.ToLower(strings.TrimSpace(filter.Source)); src != "" {
		// admin は admin:<email> で保存している
		q = q.Where("actor = ? OR actor LIKE ?", src, src+":%")
	}
	if filter.OrderID != "" {
		payments := r.db.Model(&model.Payment{}).Select("id").Where("order_id = ?", filter.OrderID)
		q = q.Where(
			r.db.Where("resource_type = ? AND resource_id = ?", model.AuditResourceOrder, filter.OrderID).
				Or("resource_type = ? AND resource_id IN (?)", model.AuditResourcePayment, payments),
		)
	}
	if filter.Action != nil {
		q = q.Where("action = ?", *filter.Action)
	}
	if filter.ResourceType != nil {
		q = q.Where("resource_type = ?", *filter.ResourceType)
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	//新しい順。同じ時刻なら挿入順の逆。
	var logs []model.AuditLog
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return logs, nil
}
