package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PENDING以外はすべて終端
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusFailed, OrderStatusExpired, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s.IsTerminal()
}

// 注文者情報（ゲスト購入なのでユーザーテーブルは持たない）
type Customer struct {
	Name  string `gorm:"column:customer_name;type:varchar(255);not null" json:"name"`
	Email string `gorm:"column:customer_email;type:varchar(255)" json:"email"`
	Phone string `gorm:"column:customer_phone;type:varchar(32)" json:"phone,omitempty"`
}

// Checkout（注文）
// TotalAmountは作成時点の明細合計。PaidAtはPAIDのときだけ入る。
type Order struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount int64       `gorm:"not null" json:"total_amount"`
	Customer    Customer    `gorm:"embedded" json:"customer"`
	LineItems   []LineItem  `gorm:"foreignKey:OrderID" json:"line_items"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	CreatedAt   time.Time   `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 明細の合計を計算する
func (o Order) ComputeTotal() int64 {
	var total int64
	for _, it := range o.LineItems {
		total += it.Subtotal()
	}
	return total
}
