// Package notify は注文イベントの通知（WhatsAppなど）を非同期に送る。
package notify

import (
	"context"

	"storefront/internal/domain/model"
)

type Channel string

const (
	ChannelCustomer Channel = "CUSTOMER"
	ChannelAdmin    Channel = "ADMIN"
)

type Template string

const (
	TemplateCheckoutCreated Template = "CHECKOUT_CREATED"
	TemplatePaymentSuccess  Template = "PAYMENT_SUCCESS"
)

// Notifyの受付結果（送信の成否はワーカー側でログ/メトリクスに残す）
type Outcome string

const (
	OutcomeQueued  Outcome = "queued"
	OutcomeSkipped Outcome = "skipped" // 宛先なし
	OutcomeDropped Outcome = "dropped" // キュー満杯/停止済み
)

type Event struct {
	Channel    Channel
	Template   Template
	Order      model.Order
	PaymentURL string
}

// 送信先（Fonnte / RabbitMQ / ログ）
type Sink interface {
	Send(ctx context.Context, target, message string) error
}
