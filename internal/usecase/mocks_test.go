package usecase_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"storefront/internal/domain/cart"
	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	"storefront/internal/infra/db/dbtest"
	"storefront/internal/infra/lock"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// =====================
// Mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Name() string { return "midtrans" }

func (m *GatewayMock) CreateTransaction(ctx context.Context, order model.Order) (gateway.CreatedTransaction, error) {
	args := m.Called(ctx, order)
	if fn, ok := args.Get(0).(func(model.Order) gateway.CreatedTransaction); ok {
		return fn(order), args.Error(1)
	}
	tx, _ := args.Get(0).(gateway.CreatedTransaction)
	return tx, args.Error(1)
}

func (m *GatewayMock) QueryStatus(ctx context.Context, ref string) (gateway.Snapshot, error) {
	args := m.Called(ctx, ref)
	snap, _ := args.Get(0).(gateway.Snapshot)
	return snap, args.Error(1)
}

func (m *GatewayMock) InterpretCallback(ctx context.Context, body []byte, header http.Header) (gateway.Snapshot, error) {
	args := m.Called(ctx, body, header)
	snap, _ := args.Get(0).(gateway.Snapshot)
	return snap, args.Error(1)
}

// 注文IDから参照を作る（実際のプロバイダと同じ規則）
func createdFor(order model.Order) gateway.CreatedTransaction {
	return gateway.CreatedTransaction{
		TransactionRef: gateway.MidtransOrderRef(order.ID),
		RedirectURL:    "https://app.sandbox.midtrans.com/snap/v4/redirection/" + order.ID,
		Token:          "tok-" + order.ID,
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(ev notify.Event) notify.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return notify.OutcomeQueued
}

func (n *recordingNotifier) count(ch notify.Channel, tpl notify.Template) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Channel == ch && ev.Template == tpl {
			c++
		}
	}
	return c
}

// =====================
// Harness（sqlite + 本物のGORMリポジトリ）
// =====================

type harness struct {
	gdb       *gorm.DB
	orders    *infraRepo.OrderGormRepository
	payments  *infraRepo.PaymentGormRepository
	audit     repo.AuditLogRepository
	locker    *lock.MemoryLocker
	gw        *GatewayMock
	notifier  *recordingNotifier
	checkout  *usecase.CheckoutUsecase
	reconcile *usecase.ReconcileUsecase
	admin     *usecase.AdminOrderUsecase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := dbtest.Open(t)

	h := &harness{
		gdb:      gdb,
		orders:   infraRepo.NewOrderGormRepository(gdb),
		payments: infraRepo.NewPaymentGormRepository(gdb),
		audit:    infraRepo.NewAuditLogGormRepository(gdb),
		locker:   lock.NewMemoryLocker(),
		gw:       &GatewayMock{},
		notifier: &recordingNotifier{},
	}

	var (
		mu  sync.Mutex
		seq int
	)
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%d", seq)
	}

	products := infraRepo.NewProductGormRepository(gdb)
	h.checkout = usecase.NewCheckoutUsecase(h.orders, h.payments, products, h.gw, h.locker, h.notifier, newID, nil)
	h.reconcile = usecase.NewReconcileUsecase(infraRepo.NewTxManagerGorm(gdb), h.orders, h.payments, h.gw, h.notifier, nil)
	h.admin = usecase.NewAdminOrderUsecase(h.orders, h.payments, h.audit, h.reconcile)
	return h
}

func burgerCheckout() usecase.CheckoutInput {
	return usecase.CheckoutInput{
		Items: []cart.RawItem{
			{Name: "Burger", Price: cart.PriceOf(25000), Quantity: 1},
		},
		TotalPrice: cart.PriceOf(25000),
		Customer:   usecase.CustomerInput{Name: "Budi", Email: "budi@example.com", Phone: "08123456789"},
	}
}

func settlement(ref string) gateway.Snapshot {
	return gateway.Snapshot{ProviderRef: ref, TransactionID: "trx-1", RawStatus: "settlement", PaymentMethod: "bank_transfer", PaymentChannel: "bca"}
}

func statusSnap(ref, raw string) gateway.Snapshot {
	return gateway.Snapshot{ProviderRef: ref, RawStatus: raw}
}
