package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"storefront/internal/logging"
	"storefront/internal/metrics"
)

type Config struct {
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	AdminTarget string // 管理者のWhatsApp番号
}

type task struct {
	ev      Event
	target  string
	message string
}

// Dispatcher はキュー（chan）とワーカーで通知を送る。
// 呼び出し側（決済の反映処理）は送信結果を待たない。
type Dispatcher struct {
	sink   Sink
	cfg    Config
	log    *slog.Logger
	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		sink:  sink,
		cfg:   cfg,
		log:   logging.New("notify"),
		tasks: make(chan task, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) target(ev Event) string {
	if ev.Channel == ChannelAdmin {
		return strings.TrimSpace(d.cfg.AdminTarget)
	}
	return strings.TrimSpace(ev.Order.Customer.Phone)
}

// Notify はブロックしない。宛先が無ければskipped、キューが満杯ならdropped。
func (d *Dispatcher) Notify(ev Event) Outcome {
	target := d.target(ev)
	if target == "" {
		d.record(ev, string(OutcomeSkipped))
		return OutcomeSkipped
	}

	msg, err := Render(ev)
	if err != nil {
		d.log.Error("notification render failed", "template", ev.Template, "order_id", ev.Order.ID, "err", err)
		d.record(ev, "failed")
		return OutcomeDropped
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.record(ev, string(OutcomeDropped))
		return OutcomeDropped
	}

	select {
	case d.tasks <- task{ev: ev, target: target, message: msg}:
		return OutcomeQueued
	default:
		d.log.Error("notification queue full", "channel", ev.Channel, "template", ev.Template, "order_id", ev.Order.ID)
		d.record(ev, string(OutcomeDropped))
		return OutcomeDropped
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.send(t)
	}
}

func (d *Dispatcher) send(t task) {
	l := d.log.With("channel", t.ev.Channel, "template", t.ev.Template, "order_id", t.ev.Order.ID)

	//sinkのpanicでワーカーを落とさない
	defer func() {
		if r := recover(); r != nil {
			l.Error("notification send panicked", "err", fmt.Sprint(r))
			d.record(t.ev, "failed")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	if err := d.sink.Send(ctx, t.target, t.message); err != nil {
		l.Error("notification send failed", "err", err)
		d.record(t.ev, "failed")
		return
	}
	l.Info("notification sent")
	d.record(t.ev, "sent")
}

func (d *Dispatcher) record(ev Event, result string) {
	metrics.Notifications.WithLabelValues(string(ev.Channel), string(ev.Template), result).Inc()
}

// Close は受付を止めて、キューに残った分を送り切る
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.wg.Wait()
}
