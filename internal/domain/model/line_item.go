package model

// 注文明細
// 注文時点の商品名・価格をスナップショットとして持つ。
type LineItem struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID    string `gorm:"type:varchar(36);not null;index" json:"-"`
	Position   int    `gorm:"not null" json:"-"`
	ProductRef string `gorm:"type:varchar(64)" json:"product_ref,omitempty"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	Category   string `gorm:"type:varchar(100)" json:"category,omitempty"`
	UnitPrice  int64  `gorm:"not null" json:"unit_price"`
	Quantity   int64  `gorm:"not null" json:"quantity"`
	ImageRef   string `gorm:"type:varchar(512)" json:"image_ref,omitempty"`
}

func (LineItem) TableName() string {
	return "order_line_items"
}

func (it LineItem) Subtotal() int64 {
	return it.UnitPrice * it.Quantity
}
