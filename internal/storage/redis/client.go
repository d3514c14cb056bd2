package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
)

// KeyPrefix 所有键的公共前缀
const KeyPrefix = "healthportal"

// ErrDisabled 配置未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

// Client Redis客户端封装
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient 创建Redis客户端并验证连通性
func NewClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Client{Client: rdb, logger: logger}, nil
}

// Key 拼接带公共前缀的键
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

// Close 关闭Redis连接
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Stats 获取连接池统计
func (c *Client) Stats() *redis.PoolStats {
	return c.PoolStats()
}
