package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/alert"
	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/metrics"
	redisstorage "github.com/taoyao-code/healthportal/internal/storage/redis"
)

// ErrUnknownStore 未知的告警节流存储
var ErrUnknownStore = errors.New("unknown alerter store")

// NewNotifiers 按配置组装告警通道：日志通道、webhook 通道（配置了 url 才启用）
func NewNotifiers(cfg cfgpkg.AlerterConfig, logger *zap.Logger) []alert.Notifier {
	var out []alert.Notifier
	if cfg.Log {
		out = append(out, alert.NewLogNotifier(logger))
	}
	if cfg.Webhook.URL != "" {
		wh := alert.NewWebhookNotifier(&http.Client{Timeout: cfg.Webhook.Timeout},
			cfg.Webhook.URL, cfg.Webhook.APIKey, cfg.Webhook.Secret)
		if cfg.Webhook.Retries > 0 {
			wh.Retries = cfg.Webhook.Retries
		}
		out = append(out, alert.NewBreakerNotifier(wh, cfg.Webhook.BreakerThreshold, cfg.Webhook.BreakerCooldown))
	}
	if len(out) == 0 {
		logger.Warn("no alert notifier configured, alerts will only be counted")
	}
	return out
}

// withAlertDefaults 非正的节流间隔取 alert.DefaultConfig，负的静默期按 0 处理；
// 节流存储与告警器必须看到同一组值
func withAlertDefaults(cfg cfgpkg.AlerterConfig) cfgpkg.AlerterConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = alert.DefaultConfig().Interval
	}
	if cfg.DeploySnooze < 0 {
		cfg.DeploySnooze = 0
	}
	return cfg
}

// NewThrottle 选择节流存储；start 为部署静默期的起点
func NewThrottle(cfg cfgpkg.AlerterConfig, client *redisstorage.Client, start time.Time, logger *zap.Logger) (alert.Throttle, error) {
	cfg = withAlertDefaults(cfg)
	switch cfg.Store {
	case "", "memory":
		return alert.NewMemoryStore(start, cfg.Interval, cfg.DeploySnooze), nil
	case StoreRedis:
		if client == nil {
			return nil, fmt.Errorf("alerter store %q: %w", cfg.Store, redisstorage.ErrDisabled)
		}
		return alert.NewRedisStore(client, cfg.Name, start, cfg.Interval, cfg.DeploySnooze, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Store)
	}
}

// NewAlerter 创建告警器
func NewAlerter(cfg cfgpkg.AlerterConfig, client *redisstorage.Client, start time.Time, logger *zap.Logger, m *metrics.AppMetrics) (*alert.Alerter, error) {
	cfg = withAlertDefaults(cfg)
	throttle, err := NewThrottle(cfg, client, start, logger)
	if err != nil {
		return nil, err
	}
	a := alert.New(alert.Config{
		Name:         cfg.Name,
		Interval:     cfg.Interval,
		DeploySnooze: cfg.DeploySnooze,
		QueueSize:    cfg.QueueSize,
	}, throttle, NewNotifiers(cfg, logger), logger, m)
	logger.Info("alerter initialized",
		zap.String("store", cfg.Store),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("deploy_snooze", cfg.DeploySnooze))
	return a, nil
}
