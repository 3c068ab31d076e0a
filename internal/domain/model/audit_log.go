package model

import "time"

type AuditAction string

const (
	//決済ステータスの遷移（webhook/poll/admin）
	AuditActionPaymentStatusChanged AuditAction = "PAYMENT_STATUS_CHANGED"
	//注文ステータスの遷移
	AuditActionOrderStatusChanged AuditAction = "ORDER_STATUS_CHANGED"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourcePayment AuditResourceType = "payment"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//webhook / poll / admin:<email>
	Actor string `gorm:"type:varchar(255);not null;index" json:"actor"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
