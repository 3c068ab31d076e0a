package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/cart"
	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
)

// 決済作成のロック範囲
const checkoutLockScope = "checkout"

type CheckoutUsecase struct {
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	products repo.ProductRepository
	gw       gateway.Gateway
	locker   Locker
	notifier Notifier
	newID    IDGenerator
	now      Clock
}

func NewCheckoutUsecase(
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	products repo.ProductRepository,
	gw gateway.Gateway,
	locker Locker,
	notifier Notifier,
	newID IDGenerator,
	now Clock,
) *CheckoutUsecase {
	if now == nil {
		now = time.Now
	}
	return &CheckoutUsecase{
		orders:   orders,
		payments: payments,
		products: products,
		gw:       gw,
		locker:   locker,
		notifier: notifier,
		newID:    newID,
		now:      now,
	}
}

type CustomerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CheckoutInput struct {
	Items      []cart.RawItem `json:"items"`
	TotalPrice cart.Price     `json:"total_price"`
	Customer   CustomerInput  `json:"customer"`
}

type CheckoutOutput struct {
	OrderID            string            `json:"order_id"`
	Status             model.OrderStatus `json:"status"`
	TotalAmount        int64             `json:"total_amount"`
	TotalMismatch      bool              `json:"total_mismatch"`
	PaymentID          string            `json:"payment_id"`
	PaymentRedirectURL string            `json:"payment_redirect_url"`
	PaymentToken       string            `json:"payment_token,omitempty"`
	Warnings           []cart.Warning    `json:"warnings,omitempty"`
}

type InvoiceOutput struct {
	OrderID     string              `json:"order_id"`
	PaymentID   string              `json:"payment_id"`
	Status      model.PaymentStatus `json:"status"`
	RedirectURL string              `json:"redirect_url"`
	Token       string              `json:"token,omitempty"`
	ExpiryDate  *time.Time          `json:"expiry_date,omitempty"`
	Reused      bool                `json:"reused"`
}

func validateCheckout(in CheckoutInput) error {
	if len(in.Items) == 0 {
		return NewHTTPError(http.StatusUnprocessableEntity, "cart is empty")
	}
	if len(in.Items) > 200 {
		return NewHTTPError(http.StatusUnprocessableEntity, "too many items")
	}
	if !in.TotalPrice.Resolved || in.TotalPrice.Amount <= 0 {
		return NewHTTPError(http.StatusUnprocessableEntity, "invalid total price")
	}
	if len(in.Customer.Name) > 255 || len(in.Customer.Email) > 255 || len(in.Customer.Phone) > 32 {
		return NewHTTPError(http.StatusUnprocessableEntity, "invalid customer")
	}
	if e := strings.TrimSpace(in.Customer.Email); e != "" && !strings.Contains(e, "@") {
		return NewHTTPError(http.StatusUnprocessableEntity, "invalid email")
	}
	return nil
}

// カタログにある商品は価格をサーバ側で上書きする
func (u *CheckoutUsecase) resolvePrices(ctx context.Context, items []cart.RawItem) ([]cart.RawItem, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if ref := strings.TrimSpace(it.ProductRef); ref != "" {
			ids = append(ids, ref)
		}
	}
	if len(ids) == 0 {
		return items, nil
	}

	products, err := u.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]cart.RawItem, len(items))
	for i, it := range items {
		if p, ok := byID[strings.TrimSpace(it.ProductRef)]; ok {
			it.Price = cart.PriceOf(p.Price)
			if it.Name == "" {
				it.Name = p.Name
			}
			if it.Category == "" {
				it.Category = p.Category
			}
			if it.ImageRef == "" {
				it.ImageRef = p.ImageURL
			}
		}
		out[i] = it
	}
	return out, nil
}

// Checkout は注文（PENDING）と決済（PENDING）を作る。
// プロバイダ呼び出しに失敗したら注文はFAILEDにして502を返す。
func (u *CheckoutUsecase) Checkout(ctx context.Context, in CheckoutInput) (CheckoutOutput, error) {
	l := logging.FromCtx(ctx)

	if err := validateCheckout(in); err != nil {
		metrics.Checkouts.WithLabelValues("validation_error").Inc()
		return CheckoutOutput{}, err
	}

	items, err := u.resolvePrices(ctx, in.Items)
	if err != nil {
		return CheckoutOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}

	lines, total, warnings := cart.Normalize(items)
	for _, w := range warnings {
		l.Warn("cart item data quality", "kind", w.Kind, "index", w.Index, "key", w.Key)
	}
	if len(lines) == 0 || total <= 0 {
		metrics.Checkouts.WithLabelValues("validation_error").Inc()
		return CheckoutOutput{}, NewHTTPError(http.StatusUnprocessableEntity, "no payable items")
	}

	//金額はサーバ計算が正。クライアントの値は突き合わせだけ。
	mismatch := total != in.TotalPrice.Amount
	if mismatch {
		l.Warn("client total differs from computed total", "client_total", in.TotalPrice.Amount, "computed_total", total)
	}

	now := u.now()
	name := strings.TrimSpace(in.Customer.Name)
	if name == "" {
		name = "Guest"
	}
	order := model.Order{
		ID:          u.newID(),
		Status:      model.OrderStatusPending,
		TotalAmount: total,
		Customer: model.Customer{
			Name:  name,
			Email: strings.TrimSpace(in.Customer.Email),
			Phone: strings.TrimSpace(in.Customer.Phone),
		},
		LineItems: lines,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.orders.Create(ctx, order); err != nil {
		return CheckoutOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	l = l.With("order_id", order.ID)
	l.Info("checkout created", "total", total, "lines", len(lines))

	p, reused, err := u.ensurePayment(ctx, order)
	if err != nil {
		// 決済のない注文をPENDINGで残さない
		u.markFailed(ctx, order.ID)
		return CheckoutOutput{}, err
	}
	if reused {
		metrics.Checkouts.WithLabelValues("reused").Inc()
	} else {
		metrics.Checkouts.WithLabelValues("created").Inc()
	}

	u.notifyCreated(order, p.ProviderRedirectURL)

	return CheckoutOutput{
		OrderID:            order.ID,
		Status:             order.Status,
		TotalAmount:        total,
		TotalMismatch:      mismatch,
		PaymentID:          p.ID,
		PaymentRedirectURL: p.ProviderRedirectURL,
		PaymentToken:       p.ProviderToken,
		Warnings:           warnings,
	}, nil
}

// CreateInvoice は未払いの注文に対して決済を用意する。既にPENDINGの決済があればそれを返す。
func (u *CheckoutUsecase) CreateInvoice(ctx context.Context, orderID string) (InvoiceOutput, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return InvoiceOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return InvoiceOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return InvoiceOutput{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	if order.Status != model.OrderStatusPending {
		return InvoiceOutput{}, NewHTTPError(http.StatusConflict, "order is not payable")
	}

	p, reused, err := u.ensurePayment(ctx, order)
	if err != nil {
		return InvoiceOutput{}, err
	}
	if reused {
		metrics.Checkouts.WithLabelValues("reused").Inc()
	} else {
		metrics.Checkouts.WithLabelValues("created").Inc()
	}

	return InvoiceOutput{
		OrderID:     order.ID,
		PaymentID:   p.ID,
		Status:      p.Status,
		RedirectURL: p.ProviderRedirectURL,
		Token:       p.ProviderToken,
		ExpiryDate:  p.ExpiryDate,
		Reused:      reused,
	}, nil
}

// ensurePayment は「PENDING決済の確認 → プロバイダで作成 → 保存」を注文単位のロック内で行う
func (u *CheckoutUsecase) ensurePayment(ctx context.Context, order model.Order) (model.Payment, bool, error) {
	l := logging.FromCtx(ctx).With("order_id", order.ID, "provider", u.gw.Name())

	release, ok, err := u.locker.TryLock(ctx, checkoutLockScope, order.ID)
	if err != nil {
		return model.Payment{}, false, WrapHTTPError(http.StatusServiceUnavailable, "lock unavailable", err)
	}
	if !ok {
		return model.Payment{}, false, NewHTTPError(http.StatusConflict, "checkout in progress")
	}
	defer release()

	active, err := u.payments.FindActiveByOrderID(ctx, order.ID)
	if err == nil {
		return active, true, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Payment{}, false, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}

	created, err := u.gw.CreateTransaction(ctx, order)
	if err != nil {
		l.Error("create provider transaction failed", "err", err)
		metrics.Checkouts.WithLabelValues("provider_error").Inc()
		// PENDINGのまま放置しない
		u.markFailed(ctx, order.ID)
		return model.Payment{}, false, WrapHTTPError(http.StatusBadGateway, "payment provider error", err)
	}

	p := model.Payment{
		ID:                     u.newID(),
		OrderID:                order.ID,
		Provider:               u.gw.Name(),
		ProviderTransactionRef: created.TransactionRef,
		ProviderInvoiceID:      created.InvoiceID,
		ProviderRedirectURL:    created.RedirectURL,
		ProviderToken:          created.Token,
		Amount:                 order.TotalAmount,
		Status:                 model.PaymentStatusPending,
		ExpiryDate:             created.ExpiresAt,
		CreatedAt:              u.now(),
		UpdatedAt:              u.now(),
	}
	if err := u.payments.Create(ctx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			//別プロセスが先に保存していたらそれを返す
			if existing, ferr := u.payments.FindByProviderRef(ctx, created.TransactionRef); ferr == nil {
				return existing, true, nil
			}
			if existing, ferr := u.payments.FindActiveByOrderID(ctx, order.ID); ferr == nil {
				return existing, true, nil
			}
		}
		return model.Payment{}, false, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}

	l.Info("payment created", "payment_id", p.ID, "ref", p.ProviderTransactionRef)
	return p, false, nil
}

// markFailed は未払いの注文をFAILEDにする。既に終端なら何もしない。
func (u *CheckoutUsecase) markFailed(ctx context.Context, orderID string) {
	_, changed, err := u.orders.Transition(context.WithoutCancel(ctx), orderID, model.OrderStatusFailed, nil)
	if err != nil && !errors.Is(err, repo.ErrConflictingStatusTransition) {
		logging.FromCtx(ctx).Error("mark order failed", "order_id", orderID, "err", err)
		return
	}
	if changed {
		logging.FromCtx(ctx).Warn("order marked failed", "order_id", orderID)
	}
}

func (u *CheckoutUsecase) notifyCreated(order model.Order, paymentURL string) {
	if u.notifier == nil {
		return
	}
	u.notifier.Notify(notify.Event{Channel: notify.ChannelCustomer, Template: notify.TemplateCheckoutCreated, Order: order, PaymentURL: paymentURL})
	u.notifier.Notify(notify.Event{Channel: notify.ChannelAdmin, Template: notify.TemplateCheckoutCreated, Order: order, PaymentURL: paymentURL})
}
