package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAdmin = usecase.Principal{Email: "admin@example.com", Role: usecase.RoleAdmin}

func TestAdminUpdateStatus_ThroughActivePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := checkedOut(t, h)

	res, err := h.admin.UpdateStatus(ctx, testAdmin, out.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeApplied, res.Outcome)

	p, err := h.payments.FindByID(ctx, out.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCancelled, p.Status)

	o, err := h.orders.FindByID(ctx, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, o.Status)

	logs, err := h.admin.AuditLogs(ctx, repo.AuditLogFilter{Actor: "admin:admin@example.com"})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestAdminUpdateStatus_OrderWithoutPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.orders.Create(ctx, model.Order{
		ID:          "o-1",
		Status:      model.OrderStatusPending,
		TotalAmount: 1000,
		Customer:    model.Customer{Name: "Guest", Phone: "0812"},
		LineItems:   []model.LineItem{{Name: "Tea", UnitPrice: 1000, Quantity: 1}},
	}))

	res, err := h.admin.UpdateStatus(ctx, testAdmin, "o-1", usecase.AdminUpdateOrderStatusInput{Status: "PAID"})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeApplied, res.Outcome)

	o, err := h.orders.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, o.Status)
	assert.NotNil(t, o.PaidAt)
	assert.Equal(t, 1, h.notifier.count(notify.ChannelCustomer, notify.TemplatePaymentSuccess))

	// 同じ値の再適用は変化なし
	res, err = h.admin.UpdateStatus(ctx, testAdmin, "o-1", usecase.AdminUpdateOrderStatusInput{Status: "PAID"})
	require.NoError(t, err)
	assert.Equal(t, usecase.OutcomeNoop, res.Outcome)
	assert.Equal(t, 1, h.notifier.count(notify.ChannelCustomer, notify.TemplatePaymentSuccess))
}

func TestAdminUpdateStatus_ConflictAndValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := checkedOut(t, h)

	_, err := h.admin.UpdateStatus(ctx, testAdmin, out.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "PAID"})
	require.NoError(t, err)

	_, err = h.admin.UpdateStatus(ctx, testAdmin, out.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	requireHTTPStatus(t, err, http.StatusConflict)

	_, err = h.admin.UpdateStatus(ctx, testAdmin, out.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "PENDING"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = h.admin.UpdateStatus(ctx, testAdmin, "missing", usecase.AdminUpdateOrderStatusInput{Status: "PAID"})
	requireHTTPStatus(t, err, http.StatusNotFound)

	_, err = h.admin.UpdateStatus(ctx, usecase.Principal{}, out.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "PAID"})
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestAdminList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	checkedOut(t, h)
	checkedOut(t, h)

	out, err := h.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
	assert.Len(t, out.Items, 2)

	_, err = h.admin.List(ctx, repo.AdminOrderListFilter{Page: 0, Limit: 10})
	requireHTTPStatus(t, err, http.StatusBadRequest)
	_, err = h.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 10, Status: "SHIPPED"})
	requireHTTPStatus(t, err, http.StatusBadRequest)
}

func paidOrder(id string, paidAt time.Time, items ...model.LineItem) model.Order {
	o := model.Order{ID: id, Status: model.OrderStatusPaid, LineItems: items, PaidAt: &paidAt, CreatedAt: paidAt}
	o.TotalAmount = o.ComputeTotal()
	return o
}

func TestBuildStats(t *testing.T) {
	// 2026-03-04は水曜日
	wed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	fri := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	nextMon := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	orders := []model.Order{
		paidOrder("a", wed,
			model.LineItem{Name: "Burger", Category: "Main Course", UnitPrice: 25000, Quantity: 2, ImageRef: "/img/burger.png"},
			model.LineItem{Name: "Tea", Category: "Drink", UnitPrice: 5000, Quantity: 1}),
		paidOrder("b", fri, model.LineItem{Name: "Burger", Category: "Main Course", UnitPrice: 25000, Quantity: 1}),
		paidOrder("c", nextMon, model.LineItem{Name: "Fries", Category: "Snack", UnitPrice: 15000, Quantity: 1}),
	}

	t.Run("daily", func(t *testing.T) {
		s := usecase.BuildStats(orders, usecase.StatsDaily)
		assert.Equal(t, int64(95000), s.TotalRevenue)
		assert.Equal(t, 3, s.TotalOrders)
		assert.Equal(t, int64(31666), s.AverageOrderValue)
		assert.Equal(t, []usecase.ChartPoint{
			{Date: "2026-03-04", Revenue: 55000, Orders: 1},
			{Date: "2026-03-06", Revenue: 25000, Orders: 1},
			{Date: "2026-03-09", Revenue: 15000, Orders: 1},
		}, s.ChartData)

		require.Len(t, s.BestSellers, 3)
		assert.Equal(t, usecase.BestSeller{Name: "Burger", Category: "Main Course", TotalQuantity: 3, TotalRevenue: 75000, Image: "/img/burger.png"}, s.BestSellers[0])
		assert.Equal(t, "Fries", s.BestSellers[1].Name)
		assert.Equal(t, "Tea", s.BestSellers[2].Name)
	})

	t.Run("weekly starts on sunday", func(t *testing.T) {
		s := usecase.BuildStats(orders, usecase.StatsWeekly)
		assert.Equal(t, []usecase.ChartPoint{
			{Date: "2026-03-01", Revenue: 80000, Orders: 2},
			{Date: "2026-03-08", Revenue: 15000, Orders: 1},
		}, s.ChartData)
	})

	t.Run("monthly", func(t *testing.T) {
		s := usecase.BuildStats(orders, usecase.StatsMonthly)
		assert.Equal(t, []usecase.ChartPoint{{Date: "2026-03", Revenue: 95000, Orders: 3}}, s.ChartData)
	})

	t.Run("empty", func(t *testing.T) {
		s := usecase.BuildStats(nil, usecase.StatsDaily)
		assert.Zero(t, s.TotalRevenue)
		assert.Zero(t, s.AverageOrderValue)
		assert.NotNil(t, s.ChartData)
		assert.NotNil(t, s.BestSellers)
	})
}

func TestAdminStats_InvalidPeriod(t *testing.T) {
	h := newHarness(t)
	_, err := h.admin.Stats(context.Background(), "yearly", nil, nil)
	requireHTTPStatus(t, err, http.StatusBadRequest)
}

func TestAdminStats_FromPaidOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := checkedOut(t, h)
	checkedOut(t, h)

	_, err := h.admin.UpdateStatus(ctx, testAdmin, out.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "PAID"})
	require.NoError(t, err)

	s, err := h.admin.Stats(ctx, "monthly", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalOrders)
	assert.Equal(t, int64(25000), s.TotalRevenue)
	require.Len(t, s.BestSellers, 1)
	assert.Equal(t, "Burger", s.BestSellers[0].Name)
}
