package usecase

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdminOrderUsecase struct {
	orders    repo.OrderRepository
	payments  repo.PaymentRepository
	auditRepo repo.AuditLogRepository
	reconcile *ReconcileUsecase
}

func NewAdminOrderUsecase(
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	auditRepo repo.AuditLogRepository,
	reconcile *ReconcileUsecase,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{orders: orders, payments: payments, auditRepo: auditRepo, reconcile: reconcile}
}

type AdminUpdateOrderStatusInput struct {
	Status string `json:"status"`
}

type AdminOrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return AdminOrderListOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return AdminOrderListOutput{Items: orders, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// UpdateStatus は手動でのステータス変更。webhookと同じ経路（先勝ち・監査ログ・通知）を通す。
// PENDING決済があれば決済ごと、無ければ注文だけを遷移させる。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actor Principal, orderID string, in AdminUpdateOrderStatusInput) (ReconcileResult, error) {
	if actor.Email == "" {
		return ReconcileResult{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ReconcileResult{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	status := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	//PENDINGへ戻すことはできない
	if !status.IsTerminal() {
		return ReconcileResult{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	if _, err := u.orders.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ReconcileResult{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return ReconcileResult{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}

	var (
		res ReconcileResult
		err error
	)
	p, ferr := u.payments.FindActiveByOrderID(ctx, orderID)
	switch {
	case ferr == nil:
		res, err = u.reconcile.ApplyStatus(ctx, StatusChange{
			PaymentID: p.ID,
			Status:    model.PaymentStatus(status),
			Source:    SourceAdmin,
			Actor:     actor.Actor(),
		})
	case errors.Is(ferr, repo.ErrNotFound):
		res, err = u.reconcile.ApplyOrderStatus(ctx, orderID, status, SourceAdmin, actor.Actor())
	default:
		return ReconcileResult{}, WrapHTTPError(http.StatusInternalServerError, "db error", ferr)
	}
	if err != nil {
		return ReconcileResult{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	if res.Outcome == OutcomeConflict {
		return res, NewHTTPError(http.StatusConflict, "order already in another terminal status")
	}
	return res, nil
}

type StatsPeriod string

const (
	StatsDaily   StatsPeriod = "daily"
	StatsWeekly  StatsPeriod = "weekly"
	StatsMonthly StatsPeriod = "monthly"
)

type ChartPoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
	Orders  int    `json:"orders"`
}

type BestSeller struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	TotalQuantity int64  `json:"totalQuantity"`
	TotalRevenue  int64  `json:"totalRevenue"`
	Image         string `json:"image"`
}

type StatsOutput struct {
	TotalRevenue      int64        `json:"totalRevenue"`
	TotalOrders       int          `json:"totalOrders"`
	AverageOrderValue int64        `json:"averageOrderValue"`
	ChartData         []ChartPoint `json:"chartData"`
	BestSellers       []BestSeller `json:"bestSellers"`
}

// 売れ筋の表示件数
const bestSellerLimit = 10

// 売上集計（PAIDの注文だけ）
func (u *AdminOrderUsecase) Stats(ctx context.Context, period string, from, to *time.Time) (StatsOutput, error) {
	p := StatsPeriod(strings.ToLower(strings.TrimSpace(period)))
	if p == "" {
		p = StatsDaily
	}
	if p != StatsDaily && p != StatsWeekly && p != StatsMonthly {
		return StatsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid period")
	}

	orders, err := u.orders.ListPaid(ctx, from, to)
	if err != nil {
		return StatsOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	return BuildStats(orders, p), nil
}

// BuildStats は集計本体。日付の区切りはUTC。
func BuildStats(orders []model.Order, period StatsPeriod) StatsOutput {
	out := StatsOutput{ChartData: []ChartPoint{}, BestSellers: []BestSeller{}}

	buckets := map[string]*ChartPoint{}
	sellers := map[string]*BestSeller{}
	for _, o := range orders {
		out.TotalRevenue += o.TotalAmount
		out.TotalOrders++

		at := o.CreatedAt
		if o.PaidAt != nil {
			at = *o.PaidAt
		}
		key := periodKey(at.UTC(), period)
		b, ok := buckets[key]
		if !ok {
			b = &ChartPoint{Date: key}
			buckets[key] = b
		}
		b.Revenue += o.TotalAmount
		b.Orders++

		for _, it := range o.LineItems {
			s, ok := sellers[it.Name]
			if !ok {
				s = &BestSeller{Name: it.Name, Category: it.Category, Image: it.ImageRef}
				sellers[it.Name] = s
			}
			s.TotalQuantity += it.Quantity
			s.TotalRevenue += it.Subtotal()
		}
	}
	if out.TotalOrders > 0 {
		out.AverageOrderValue = out.TotalRevenue / int64(out.TotalOrders)
	}

	for _, b := range buckets {
		out.ChartData = append(out.ChartData, *b)
	}
	sort.Slice(out.ChartData, func(i, j int) bool { return out.ChartData[i].Date < out.ChartData[j].Date })

	for _, s := range sellers {
		out.BestSellers = append(out.BestSellers, *s)
	}
	sort.Slice(out.BestSellers, func(i, j int) bool {
		if out.BestSellers[i].TotalRevenue != out.BestSellers[j].TotalRevenue {
			return out.BestSellers[i].TotalRevenue > out.BestSellers[j].TotalRevenue
		}
		return out.BestSellers[i].Name < out.BestSellers[j].Name
	})
	if len(out.BestSellers) > bestSellerLimit {
		out.BestSellers = out.BestSellers[:bestSellerLimit]
	}
	return out
}

// daily: 2006-01-02 / weekly: 週の日曜日 / monthly: 2006-01
func periodKey(t time.Time, period StatsPeriod) string {
	switch period {
	case StatsWeekly:
		return t.AddDate(0, 0, -int(t.Weekday())).Format("2006-01-02")
	case StatsMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// 監査ログ一覧
func (u *AdminOrderUsecase) AuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if f.Limit < 0 || f.Limit > 200 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Offset < 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}
	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}

// 期間パラメータでtime.Timeが必要なら、handlerでtime.Parseしてここに入れる
func ParseDateTime(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, true
	}
	return nil, false
}
