package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/gateway"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
)

// どこから来たステータスか（監査ログのactorにもなる）
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
	SourceAdmin   Source = "admin"
)

type Outcome string

const (
	OutcomeApplied  Outcome = "applied"  // 初めて終端に遷移した
	OutcomeNoop     Outcome = "noop"     // PENDINGのまま or 同じ終端の再適用
	OutcomeIgnored  Outcome = "ignored"  // 知らない決済
	OutcomeConflict Outcome = "conflict" // 別の終端が既にある（先勝ち）
)

type ReconcileResult struct {
	Outcome   Outcome             `json:"outcome"`
	OrderID   string              `json:"order_id,omitempty"`
	PaymentID string              `json:"payment_id,omitempty"`
	Status    model.PaymentStatus `json:"status,omitempty"`
}

// ApplyStatusの入力
type StatusChange struct {
	PaymentID string
	Status    model.PaymentStatus
	Fields    repo.PaymentTransitionFields
	Source    Source
	// 監査ログのactor。空ならSource。
	Actor string
}

type StatusQuery struct {
	OrderID   string
	PaymentID string
}

type PaymentStatusOutput struct {
	OrderID        string              `json:"order_id"`
	OrderStatus    model.OrderStatus   `json:"order_status"`
	PaymentID      string              `json:"payment_id,omitempty"`
	PaymentStatus  model.PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod  string              `json:"payment_method,omitempty"`
	PaymentChannel string              `json:"payment_channel,omitempty"`
	RedirectURL    string              `json:"redirect_url,omitempty"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	// プロバイダに問い合わせられず、保存済みの値を返した
	Stale   bool    `json:"stale"`
	Outcome Outcome `json:"outcome,omitempty"`
}

type SweepResult struct {
	Checked int `json:"checked"`
	Applied int `json:"applied"`
	Stale   int `json:"stale"`
	Failed  int `json:"failed"`
}

type ReconcileUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	gw       gateway.Gateway
	notifier Notifier
	now      Clock
	log      *slog.Logger
}

func NewReconcileUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	payments repo.PaymentRepository,
	gw gateway.Gateway,
	notifier Notifier,
	now Clock,
) *ReconcileUsecase {
	if now == nil {
		now = time.Now
	}
	return &ReconcileUsecase{
		tx:       tx,
		orders:   orders,
		payments: payments,
		gw:       gw,
		notifier: notifier,
		now:      now,
		log:      logging.New("reconcile"),
	}
}

// OnProviderPush はwebhookを処理する。
// 401/400はリトライ不要、5xxはプロバイダに再送させる。知らない決済は200で無視。
func (u *ReconcileUsecase) OnProviderPush(ctx context.Context, body []byte, header http.Header) (ReconcileResult, error) {
	l := logging.FromCtx(ctx).With("provider", u.gw.Name())

	snap, err := u.gw.InterpretCallback(ctx, body, header)
	if errors.Is(err, gateway.ErrUntrustedCallback) {
		l.Warn("untrusted payment callback", "event", "untrusted_callback", "err", err)
		metrics.ReconcileEvents.WithLabelValues(string(SourceWebhook), "untrusted").Inc()
		return ReconcileResult{}, WrapHTTPError(http.StatusUnauthorized, "invalid signature", err)
	}
	if err != nil {
		metrics.ReconcileEvents.WithLabelValues(string(SourceWebhook), "error").Inc()
		return ReconcileResult{}, WrapHTTPError(http.StatusBadRequest, "malformed payload", err)
	}

	p, err := u.findPayment(ctx, snap)
	if errors.Is(err, repo.ErrNotFound) {
		l.Info("callback for unknown payment ignored", "provider_ref", snap.ProviderRef, "invoice_id", snap.InvoiceID)
		metrics.ReconcileEvents.WithLabelValues(string(SourceWebhook), string(OutcomeIgnored)).Inc()
		return ReconcileResult{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		metrics.ReconcileEvents.WithLabelValues(string(SourceWebhook), "error").Inc()
		return ReconcileResult{}, WrapHTTPError(http.StatusServiceUnavailable, "temporarily unavailable", err)
	}

	res, err := u.ApplyStatus(ctx, StatusChange{
		PaymentID: p.ID,
		Status:    gateway.MapStatus(snap),
		Fields:    fieldsFromSnapshot(snap),
		Source:    SourceWebhook,
	})
	if err != nil {
		return ReconcileResult{}, WrapHTTPError(http.StatusServiceUnavailable, "temporarily unavailable", err)
	}
	return res, nil
}

// 請求書ID → 参照 の順で探す
func (u *ReconcileUsecase) findPayment(ctx context.Context, snap gateway.Snapshot) (model.Payment, error) {
	if snap.InvoiceID != "" {
		p, err := u.payments.FindByProviderInvoiceID(ctx, snap.InvoiceID)
		if err == nil || !errors.Is(err, repo.ErrNotFound) {
			return p, err
		}
	}
	return u.payments.FindByProviderRef(ctx, snap.ProviderRef)
}

func fieldsFromSnapshot(snap gateway.Snapshot) repo.PaymentTransitionFields {
	return repo.PaymentTransitionFields{
		PaymentMethod:         snap.PaymentMethod,
		PaymentChannel:        snap.PaymentChannel,
		ProviderTransactionID: snap.TransactionID,
		PaidAt:                snap.PaidAt,
	}
}

// OnStatusPoll は保存済みがPENDINGのときだけプロバイダに問い合わせる
func (u *ReconcileUsecase) OnStatusPoll(ctx context.Context, q StatusQuery) (PaymentStatusOutput, error) {
	q.OrderID = strings.TrimSpace(q.OrderID)
	q.PaymentID = strings.TrimSpace(q.PaymentID)
	if q.OrderID == "" && q.PaymentID == "" {
		return PaymentStatusOutput{}, NewHTTPError(http.StatusBadRequest, "order_id or payment_id is required")
	}

	order, p, hasPayment, err := u.load(ctx, q)
	if err != nil {
		return PaymentStatusOutput{}, err
	}
	if !hasPayment || p.Status != model.PaymentStatusPending {
		return toStatusOutput(order, p, hasPayment), nil
	}

	l := logging.FromCtx(ctx).With("order_id", order.ID, "payment_id", p.ID)

	snap, err := u.gw.QueryStatus(ctx, p.LookupRef())
	if err != nil {
		// 落とさずに保存済みの値を返す
		l.Warn("provider status query failed", "err", err)
		metrics.ReconcileEvents.WithLabelValues(string(SourcePoll), "error").Inc()
		out := toStatusOutput(order, p, true)
		out.Stale = true
		return out, nil
	}

	res, err := u.ApplyStatus(ctx, StatusChange{
		PaymentID: p.ID,
		Status:    gateway.MapStatus(snap),
		Fields:    fieldsFromSnapshot(snap),
		Source:    SourcePoll,
	})
	if err != nil {
		return PaymentStatusOutput{}, WrapHTTPError(http.StatusServiceUnavailable, "temporarily unavailable", err)
	}
	if res.Outcome == OutcomeNoop {
		out := toStatusOutput(order, p, true)
		out.Outcome = res.Outcome
		return out, nil
	}

	order, p, _, err = u.load(ctx, StatusQuery{PaymentID: p.ID})
	if err != nil {
		return PaymentStatusOutput{}, err
	}
	out := toStatusOutput(order, p, true)
	out.Outcome = res.Outcome
	return out, nil
}

func (u *ReconcileUsecase) load(ctx context.Context, q StatusQuery) (model.Order, model.Payment, bool, error) {
	if q.PaymentID != "" {
		p, err := u.payments.FindByID(ctx, q.PaymentID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, model.Payment{}, false, NewHTTPError(http.StatusNotFound, "payment not found")
		}
		if err != nil {
			return model.Order{}, model.Payment{}, false, WrapHTTPError(http.StatusInternalServerError, "db error", err)
		}
		o, err := u.orders.FindByID(ctx, p.OrderID)
		if err != nil {
			return model.Order{}, model.Payment{}, false, WrapHTTPError(http.StatusInternalServerError, "db error", err)
		}
		return o, p, true, nil
	}

	o, err := u.orders.FindByID(ctx, q.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, model.Payment{}, false, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return model.Order{}, model.Payment{}, false, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	p, err := u.payments.FindLatestByOrderID(ctx, o.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return o, model.Payment{}, false, nil
	}
	if err != nil {
		return model.Order{}, model.Payment{}, false, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}
	return o, p, true, nil
}

func toStatusOutput(o model.Order, p model.Payment, hasPayment bool) PaymentStatusOutput {
	out := PaymentStatusOutput{
		OrderID:     o.ID,
		OrderStatus: o.Status,
		PaidAt:      o.PaidAt,
	}
	if hasPayment {
		out.PaymentID = p.ID
		out.PaymentStatus = p.Status
		out.PaymentMethod = p.PaymentMethod
		out.PaymentChannel = p.PaymentChannel
		out.RedirectURL = p.ProviderRedirectURL
		if p.PaidAt != nil {
			out.PaidAt = p.PaidAt
		}
	}
	return out
}

// ApplyStatus は決済→注文の順に遷移させ、監査ログと一緒に1トランザクションで書く。
// 通知は決済が実際に遷移したときだけ出す（再送webhookで二重に送らない）。
func (u *ReconcileUsecase) ApplyStatus(ctx context.Context, ch StatusChange) (ReconcileResult, error) {
	l := logging.FromCtx(ctx).With("payment_id", ch.PaymentID, "source", ch.Source, "status", ch.Status)

	if !ch.Status.IsTerminal() {
		metrics.ReconcileEvents.WithLabelValues(string(ch.Source), string(OutcomeNoop)).Inc()
		return ReconcileResult{Outcome: OutcomeNoop, PaymentID: ch.PaymentID, Status: model.PaymentStatusPending}, nil
	}
	if ch.Status == model.PaymentStatusPaid && ch.Fields.PaidAt == nil {
		now := u.now()
		ch.Fields.PaidAt = &now
	}
	actor := ch.Actor
	if actor == "" {
		actor = string(ch.Source)
	}

	var (
		payment         model.Payment
		order           model.Order
		changed         bool
		conflicted      bool
		orderConflicted bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Payments().FindByID(ctx, ch.PaymentID)
		if err != nil {
			return err
		}

		p, ok, err := r.Payments().Transition(ctx, ch.PaymentID, ch.Status, ch.Fields)
		if errors.Is(err, repo.ErrConflictingStatusTransition) {
			payment, conflicted = p, true
			return nil
		}
		if err != nil {
			return err
		}
		payment, changed = p, ok
		if !ok {
			return nil
		}

		if err := r.AuditLogs().Create(ctx, auditEntry(actor, model.AuditActionPaymentStatusChanged, model.AuditResourcePayment, p.ID,
			statusJSON(string(before.Status), nil), statusJSON(string(p.Status), p.PaidAt), u.now())); err != nil {
			return err
		}

		var paidAt *time.Time
		if ch.Status == model.PaymentStatusPaid {
			paidAt = p.PaidAt
		}
		o, oChanged, err := r.Orders().Transition(ctx, p.OrderID, ch.Status.OrderStatus(), paidAt)
		if errors.Is(err, repo.ErrConflictingStatusTransition) {
			// 注文側だけ別の終端（管理者の手動変更など）。決済の遷移は残す。
			l.Warn("order already in another terminal status", "event", "conflicting_status_transition",
				"order_id", p.OrderID, "order_status", o.Status)
			order, orderConflicted = o, true
			return nil
		}
		if err != nil {
			return err
		}
		order = o
		if oChanged {
			return r.AuditLogs().Create(ctx, auditEntry(actor, model.AuditActionOrderStatusChanged, model.AuditResourceOrder, o.ID,
				statusJSON(string(model.OrderStatusPending), nil), statusJSON(string(o.Status), o.PaidAt), u.now()))
		}
		return nil
	})
	if err != nil {
		l.Error("apply status failed", "err", err)
		metrics.ReconcileEvents.WithLabelValues(string(ch.Source), "error").Inc()
		return ReconcileResult{}, err
	}

	res := ReconcileResult{OrderID: payment.OrderID, PaymentID: payment.ID, Status: payment.Status}
	switch {
	case conflicted:
		// 先に書いた方が勝つ。プロバイダにはエラーを返さない。
		l.Warn("conflicting payment status ignored", "event", "conflicting_status_transition", "current_status", payment.Status)
		res.Outcome = OutcomeConflict
	case !changed:
		res.Outcome = OutcomeNoop
	default:
		l.Info("payment status applied", "order_id", payment.OrderID)
		res.Outcome = OutcomeApplied
		// 注文が別の終端なら支払い完了の通知は出さない
		if payment.Status == model.PaymentStatusPaid && order.ID != "" && !orderConflicted {
			u.notifyPaid(order)
		}
	}
	metrics.ReconcileEvents.WithLabelValues(string(ch.Source), string(res.Outcome)).Inc()
	return res, nil
}

func (u *ReconcileUsecase) notifyPaid(order model.Order) {
	if u.notifier == nil {
		return
	}
	u.notifier.Notify(notify.Event{Channel: notify.ChannelCustomer, Template: notify.TemplatePaymentSuccess, Order: order})
	u.notifier.Notify(notify.Event{Channel: notify.ChannelAdmin, Template: notify.TemplatePaymentSuccess, Order: order})
}

// Sweep は作成から時間が経ったPENDING決済をまとめて問い合わせる（運用コマンド用）
func (u *ReconcileUsecase) Sweep(ctx context.Context, before time.Time, limit int) (SweepResult, error) {
	pending, err := u.payments.ListPendingBefore(ctx, before, limit)
	if err != nil {
		return SweepResult{}, WrapHTTPError(http.StatusInternalServerError, "db error", err)
	}

	var res SweepResult
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		out, err := u.OnStatusPoll(ctx, StatusQuery{PaymentID: p.ID})
		switch {
		case err != nil:
			u.log.Error("sweep poll failed", "payment_id", p.ID, "err", err)
			res.Failed++
		case out.Stale:
			res.Stale++
		case out.Outcome == OutcomeApplied:
			res.Applied++
		}
	}
	return res, nil
}

func auditEntry(actor string, action model.AuditAction, rt model.AuditResourceType, id, before, after string, at time.Time) model.AuditLog {
	return model.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: rt,
		ResourceID:   id,
		BeforeJSON:   before,
		AfterJSON:    after,
		CreatedAt:    at,
	}
}

func statusJSON(status string, paidAt *time.Time) string {
	v := map[string]interface{}{"status": status}
	if paidAt != nil {
		v["paid_at"] = paidAt.UTC().Format(time.RFC3339)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// ApplyOrderStatus は決済を持たない注文の手動変更。決済と同じ遷移規則に従う。
func (u *ReconcileUsecase) ApplyOrderStatus(ctx context.Context, orderID string, status model.OrderStatus, source Source, actor string) (ReconcileResult, error) {
	l := logging.FromCtx(ctx).With("order_id", orderID, "source", source, "status", status)
	if !status.IsTerminal() {
		return ReconcileResult{Outcome: OutcomeNoop, OrderID: orderID}, nil
	}
	if actor == "" {
		actor = string(source)
	}

	var (
		order      model.Order
		changed    bool
		conflicted bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var paidAt *time.Time
		if status == model.OrderStatusPaid {
			now := u.now()
			paidAt = &now
		}
		o, ok, err := r.Orders().Transition(ctx, orderID, status, paidAt)
		if errors.Is(err, repo.ErrConflictingStatusTransition) {
			order, conflicted = o, true
			return nil
		}
		if err != nil {
			return err
		}
		order, changed = o, ok
		if !ok {
			return nil
		}
		return r.AuditLogs().Create(ctx, auditEntry(actor, model.AuditActionOrderStatusChanged, model.AuditResourceOrder, o.ID,
			statusJSON(string(model.OrderStatusPending), nil), statusJSON(string(o.Status), o.PaidAt), u.now()))
	})
	if err != nil {
		metrics.ReconcileEvents.WithLabelValues(string(source), "error").Inc()
		return ReconcileResult{}, err
	}

	res := ReconcileResult{OrderID: order.ID, Status: model.PaymentStatus(order.Status)}
	switch {
	case conflicted:
		l.Warn("conflicting order status ignored", "event", "conflicting_status_transition", "current_status", order.Status)
		res.Outcome = OutcomeConflict
	case !changed:
		res.Outcome = OutcomeNoop
	default:
		res.Outcome = OutcomeApplied
		if order.Status == model.OrderStatusPaid {
			u.notifyPaid(order)
		}
	}
	metrics.ReconcileEvents.WithLabelValues(string(source), string(res.Outcome)).Inc()
	return res, nil
}
