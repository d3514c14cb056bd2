package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	redisstorage "github.com/taoyao-code/healthportal/internal/storage/redis"
)

// StoreRedis 告警节流使用 Redis 存储
const StoreRedis = "redis"

// NeedsRedis 是否需要连接 Redis：显式启用，或告警节流存储选择了 redis
func NeedsRedis(cfg *cfgpkg.Config) bool {
	return cfg.Redis.Enabled || cfg.Alerter.Store == StoreRedis
}

// NewRedisClient 创建Redis客户端；不需要时返回 nil, nil
func NewRedisClient(ctx context.Context, cfg *cfgpkg.Config, logger *zap.Logger) (*redisstorage.Client, error) {
	if !NeedsRedis(cfg) {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	rc := cfg.Redis
	rc.Enabled = true
	client, err := redisstorage.NewClient(ctx, rc, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", rc.Addr),
		zap.Int("pool_size", rc.PoolSize))
	return client, nil
}
