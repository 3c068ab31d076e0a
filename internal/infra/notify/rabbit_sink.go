package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/notify"

	amqp "github.com/rabbitmq/amqp091-go"
)

// *amqp.Channel のうち使う部分
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// 外部のWhatsAppワーカー向けに送信依頼をpublishする
type RabbitSink struct {
	conn       *amqp.Connection
	ch         publisher
	exchange   string
	routingKey string
	now        func() time.Time
}

type whatsappMsg struct {
	Target  string    `json:"target"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// exchangeの宣言は起動時に1回だけ行う
func NewRabbitSink(url, exchange, routingKey string) (*RabbitSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitSink{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey, now: time.Now}, nil
}

var _ notify.Sink = (*RabbitSink)(nil)

// ワーカーが受け取るJSON。sent_atはUTC。
func newPublishing(target, message string, at time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(whatsappMsg{Target: target, Message: message, SentAt: at.UTC()})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at.UTC(),
		Body:         body,
	}, nil
}

func (s *RabbitSink) Send(ctx context.Context, target, message string) error {
	pub, err := newPublishing(target, message, s.now())
	if err != nil {
		return err
	}
	if err := s.ch.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (s *RabbitSink) Close() error {
	if err := s.ch.Close(); err != nil {
		if s.conn != nil {
			_ = s.conn.Close()
		}
		return err
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
