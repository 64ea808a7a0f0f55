package alert

import (
	"context"

	"go.uber.org/zap"
)

// Sink delivers finished alert text to one notification channel.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// LogSink writes alerts to the process log. It is the sink of last resort when
// no notification channel is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, text string) error {
	s.logger.Info("alert", zap.String("text", text))
	return nil
}

func sinkName(sink Sink) string {
	switch sink.(type) {
	case *TelegramSink:
		return "telegram"
	case *LogSink:
		return "log"
	default:
		return "unknown"
	}
}
