package notify

import (
	"context"
	"log/slog"

	"storefront/internal/logging"
	"storefront/internal/notify"
)

// 開発用。送らずにログへ出す。
type LogSink struct {
	log *slog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{log: logging.New("notify.log_sink")}
}

var _ notify.Sink = (*LogSink)(nil)

func (s *LogSink) Send(_ context.Context, target, message string) error {
	s.log.Info("whatsapp message", "target", target, "message", message)
	return nil
}
