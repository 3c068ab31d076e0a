package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s.IsTerminal()
}

// 注文側のステータスに写す（値は同じ語彙）
func (s PaymentStatus) OrderStatus() OrderStatus {
	return OrderStatus(s)
}

// 決済プロバイダ側の取引と注文を結びつけるレコード。
// 1注文につきPENDINGのPaymentは1件まで（部分ユニークインデックス）。
type Payment struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID string `gorm:"type:varchar(36);not null;index:idx_payments_order_id;uniqueIndex:idx_payments_active_order,where:status = 'PENDING'" json:"order_id"`

	Provider string `gorm:"type:varchar(20);not null" json:"provider"`
	// 注文IDから導出する参照（Midtrans order_id / Xendit external_id）
	ProviderTransactionRef string `gorm:"type:varchar(128);not null;uniqueIndex" json:"provider_transaction_ref"`
	// プロバイダ採番のID（Midtrans transaction_id / Xendit invoice id）
	ProviderTransactionID string `gorm:"type:varchar(128)" json:"provider_transaction_id,omitempty"`
	ProviderInvoiceID     string `gorm:"type:varchar(128);index" json:"provider_invoice_id,omitempty"`
	ProviderRedirectURL   string `gorm:"type:varchar(1024)" json:"provider_redirect_url"`
	ProviderToken         string `gorm:"type:varchar(255)" json:"provider_token,omitempty"`

	Amount         int64         `gorm:"not null" json:"amount"`
	Status         PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod  string        `gorm:"type:varchar(64)" json:"payment_method,omitempty"`
	PaymentChannel string        `gorm:"type:varchar(64)" json:"payment_channel,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	ExpiryDate     *time.Time    `json:"expiry_date,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ステータス照会に使う参照。請求書IDがあればそれを優先する。
func (p Payment) LookupRef() string {
	if p.ProviderInvoiceID != "" {
		return p.ProviderInvoiceID
	}
	return p.ProviderTransactionRef
}
