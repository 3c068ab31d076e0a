package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	//注文と明細をまとめて保存
	Create(ctx context.Context, order model.Order) error
	//明細つきで取得
	FindByID(ctx context.Context, orderID string) (model.Order, error)

	// PENDINGからの条件付き更新。
	// 同じ終端ステータスの再適用は変更なし（changed=false）で現在値を返す。
	// 別の終端ステータスならErrConflictingStatusTransition。
	Transition(ctx context.Context, orderID string, to model.OrderStatus, paidAt *time.Time) (model.Order, bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
	//売上集計用（PAIDのみ、明細つき）
	ListPaid(ctx context.Context, from *time.Time, to *time.Time) ([]model.Order, error)
}
