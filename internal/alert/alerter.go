// Package alert 需要人工介入的告警：按上下文节流，部署后静默期内不发送
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/metrics"
)

// Config 告警配置
type Config struct {
	Name         string        // 系统名称（如门户域名），透传给发送通道
	Interval     time.Duration // 同一上下文两次告警的最小间隔
	DeploySnooze time.Duration // 进程启动后的静默期
	QueueSize    int
	SendTimeout  time.Duration
}

// DefaultConfig 默认配置：12h 节流，1h 部署静默
func DefaultConfig() Config {
	return Config{Interval: 12 * time.Hour, DeploySnooze: time.Hour, QueueSize: 256, SendTimeout: 30 * time.Second}
}

// Message 发往通道的告警
type Message struct {
	System  string    `json:"system"`
	Context string    `json:"context"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Notifier 告警发送通道
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Throttle 节流存储：判断某上下文此刻是否允许发送，允许时记录发送时间
type Throttle interface {
	Acquire(ctx context.Context, key string, now time.Time) (bool, error)
}

// Option 告警器选项
type Option func(*Alerter)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(a *Alerter) { a.now = now }
}

type pending struct {
	key  string
	text string
}

// Alerter 告警器
type Alerter struct {
	cfg       Config
	throttle  Throttle
	notifiers []Notifier
	logger    *zap.Logger
	metrics   *metrics.AppMetrics
	now       func() time.Time
	queue     chan pending
}

// New 创建告警器；throttle 为空时使用以当前时间为启动时刻的 MemoryStore
func New(cfg Config, throttle Throttle, notifiers []Notifier, logger *zap.Logger, m *metrics.AppMetrics, opts ...Option) *Alerter {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.DeploySnooze < 0 {
		cfg.DeploySnooze = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Alerter{
		cfg:       cfg,
		notifiers: notifiers,
		logger:    logger.With(zap.String("component", "alerter")),
		metrics:   m,
		now:       time.Now,
		queue:     make(chan pending, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(a)
	}
	if throttle == nil {
		throttle = NewMemoryStore(a.now(), cfg.Interval, cfg.DeploySnooze)
	}
	a.throttle = throttle
	return a
}

// Alert 同步执行节流判断与发送；key 为节流上下文（协调器使用检查项 ID），返回是否实际发送
func (a *Alerter) Alert(ctx context.Context, key, text string) (bool, error) {
	now := a.now()
	ok, err := a.throttle.Acquire(ctx, key, now)
	if err != nil {
		a.metrics.Alert("failed")
		return false, fmt.Errorf("alert throttle: %w", err)
	}
	if !ok {
		a.metrics.Alert("throttled")
		a.logger.Debug("alert throttled", zap.String("context", key),
			zap.String("text", text), zap.Duration("interval", a.cfg.Interval))
		return false, nil
	}

	a.logger.Info("broadcasting alert", zap.String("context", key), zap.String("text", text))
	msg := Message{System: a.cfg.Name, Context: key, Text: text, At: now}
	var errs []error
	for _, n := range a.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.metrics.Alert("failed")
		a.logger.Error("alert delivery failed", zap.String("context", key), zap.Error(err))
		return true, err
	}
	a.metrics.Alert("sent")
	return true, nil
}

// Notify 非阻塞入队，由 Run 异步执行；队满时丢弃
func (a *Alerter) Notify(key, text string) {
	select {
	case a.queue <- pending{key: key, text: text}:
	default:
		a.metrics.Dropped(metrics.StageAlertQueue)
		a.logger.Warn("alert dropped: queue full", zap.String("context", key))
	}
}

// Run 消费告警队列，阻塞直至 ctx 结束
func (a *Alerter) Run(ctx context.Context) {
	a.logger.Info("alerter started", zap.String("name", a.cfg.Name),
		zap.Duration("interval", a.cfg.Interval), zap.Duration("deploy_snooze", a.cfg.DeploySnooze),
		zap.Int("notifiers", len(a.notifiers)))
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-a.queue:
			sendCtx, cancel := context.WithTimeout(ctx, a.cfg.SendTimeout)
			_, _ = a.Alert(sendCtx, p.key, p.text)
			cancel()
		}
	}
}
