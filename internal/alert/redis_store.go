package alert

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const throttleKeyPrefix = "healthportal:alert"

// RedisStore 基于 Redis 的节流存储，协调器重启后节流窗口得以保留
//
// 使用 SetNX + TTL(interval) 实现原子占位；部署静默期仍按本进程启动时刻计算。
type RedisStore struct {
	redis    redis.Cmdable
	logger   *zap.Logger
	name     string
	start    time.Time
	interval time.Duration
	snooze   time.Duration
}

// NewRedisStore 创建 Redis 节流存储；name 用于隔离多个门户实例
func NewRedisStore(client redis.Cmdable, name string, start time.Time, interval, snooze time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		redis:    client,
		logger:   logger,
		name:     name,
		start:    start,
		interval: interval,
		snooze:   snooze,
	}
}

// Acquire 静默期内返回 false；否则 SetNX 成功即允许发送
func (s *RedisStore) Acquire(ctx context.Context, key string, now time.Time) (bool, error) {
	if s == nil || s.redis == nil {
		return false, fmt.Errorf("redis throttle not initialized")
	}
	if now.Sub(s.start) < s.snooze {
		return false, nil
	}
	ok, err := s.redis.SetNX(ctx, s.buildKey(key), strconv.FormatInt(now.Unix(), 10), s.interval).Result()
	if err != nil {
		s.logger.Error("alert throttle check failed", zap.String("context", key), zap.Error(err))
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Reset 删除某上下文的节流记录
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.redis.Del(ctx, s.buildKey(key)).Err()
}

func (s *RedisStore) buildKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", throttleKeyPrefix, s.name, key)
}
