package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/coordinator"
	"github.com/taoyao-code/healthportal/internal/localpool"
	"github.com/taoyao-code/healthportal/internal/metrics"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/workerhub"
)

// BuildIndex 由静态实体定义构建实体/检查项索引
func BuildIndex(cfg *cfgpkg.Config, registry *probe.Registry, version string) (*coordinator.Index, error) {
	return coordinator.Build(cfg.Entities, registry, coordinator.BuildOptions{
		ServerVersion: version,
		MaxJitter:     cfg.Scheduler.MaxJitter,
		Workers:       cfg.Workers,
	})
}

// NewLocalPool 创建本地执行池
func NewLocalPool(cfg cfgpkg.PoolConfig, registry *probe.Registry, logger *zap.Logger, m *metrics.AppMetrics) *localpool.Pool {
	return localpool.New(registry, localpool.Config{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		QueueTTL:     cfg.QueueTTL,
		ProbeTimeout: cfg.ProbeTimeout,
	}, logger, m)
}

// NewWorkerHub 创建远程 worker 通道
func NewWorkerHub(cfg *cfgpkg.Config, logger *zap.Logger, m *metrics.AppMetrics) *workerhub.Hub {
	h := cfg.Hub
	return workerhub.New(cfg.Workers, workerhub.Config{
		PingInterval:    h.PingInterval,
		PongWait:        h.PongWait,
		WriteWait:       h.WriteWait,
		WriteQueue:      h.WriteQueue,
		ReplyBuffer:     h.ReplyBuffer,
		MaxMessageBytes: h.MaxMessageBytes,
		HandshakeRate:   h.HandshakeRate,
		HandshakeBurst:  h.HandshakeBurst,
	}, logger, m)
}

// NewCoordinator 组装协调器
func NewCoordinator(cfg *cfgpkg.Config, index *coordinator.Index, pool *localpool.Pool, hub *workerhub.Hub,
	alerter coordinator.Alerter, logger *zap.Logger, m *metrics.AppMetrics,
) *coordinator.Coordinator {
	return coordinator.New(index, pool, hub, alerter, coordinator.Config{
		RemoteGrace:   cfg.Scheduler.RemoteGrace,
		SweepInterval: cfg.Scheduler.SweepInterval,
		DrainInterval: cfg.Pool.DrainInterval,
	}, logger, m)
}
