package alert

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 使用测试用Redis客户端（需要真实Redis实例）
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisStore(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()
	start := time.Now()

	t.Run("静默期内拒绝", func(t *testing.T) {
		s := NewRedisStore(client, "snoozed", start, time.Hour, time.Hour, zap.NewNop())
		ok, err := s.Acquire(ctx, "c1", start.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("间隔内只允许一次", func(t *testing.T) {
		s := NewRedisStore(client, "portal", start, time.Hour, 0, zap.NewNop())
		ok, err := s.Acquire(ctx, "c1", start)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Acquire(ctx, "c1", start.Add(10*time.Second))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.Acquire(ctx, "c2", start)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.Reset(ctx, "c1"))
		ok, err = s.Acquire(ctx, "c1", start.Add(20*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
