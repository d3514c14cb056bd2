package alert

import (
	"context"

	"go.uber.org/zap"
)

// NotifierFunc 函数适配器
type NotifierFunc func(ctx context.Context, msg Message) error

// Notify 实现 Notifier
func (f NotifierFunc) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogNotifier 将告警写入日志（未配置外部通道时的兜底）
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通道
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.With(zap.String("notifier", "log"))}
}

// Notify 实现 Notifier
func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Warn("ALERT",
		zap.String("system", msg.System),
		zap.String("context", msg.Context),
		zap.String("text", msg.Text),
		zap.Time("at", msg.At),
	)
	return nil
}
