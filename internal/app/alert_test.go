package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/alert"
	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	redisstorage "github.com/taoyao-code/healthportal/internal/storage/redis"
)

func TestNewThrottle(t *testing.T) {
	base := cfgpkg.AlerterConfig{Name: "portal", Interval: time.Hour, DeploySnooze: time.Minute}

	t.Run("默认内存存储", func(t *testing.T) {
		th, err := NewThrottle(base, nil, time.Now(), zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &alert.MemoryStore{}, th)
	})

	t.Run("零间隔回退到默认节流", func(t *testing.T) {
		cfg := base
		cfg.Interval = 0
		cfg.DeploySnooze = 0
		start := time.Unix(1000, 0)
		th, err := NewThrottle(cfg, nil, start, zap.NewNop())
		require.NoError(t, err)

		ok, err := th.Acquire(context.Background(), "c1", start)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = th.Acquire(context.Background(), "c1", start.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok, "默认 12h 内不应再次发送")
		ok, err = th.Acquire(context.Background(), "c1", start.Add(alert.DefaultConfig().Interval))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("redis存储缺少客户端", func(t *testing.T) {
		cfg := base
		cfg.Store = StoreRedis
		_, err := NewThrottle(cfg, nil, time.Now(), zap.NewNop())
		assert.ErrorIs(t, err, redisstorage.ErrDisabled)
	})

	t.Run("未知存储", func(t *testing.T) {
		cfg := base
		cfg.Store = "etcd"
		_, err := NewThrottle(cfg, nil, time.Now(), zap.NewNop())
		assert.ErrorIs(t, err, ErrUnknownStore)
	})
}

func TestNewNotifiers(t *testing.T) {
	assert.Empty(t, NewNotifiers(cfgpkg.AlerterConfig{}, zap.NewNop()))

	list := NewNotifiers(cfgpkg.AlerterConfig{
		Log:     true,
		Webhook: cfgpkg.WebhookConfig{URL: "http://hooks.local/alert", Secret: "s", Timeout: time.Second, Retries: 5},
	}, zap.NewNop())
	require.Len(t, list, 2)
	assert.IsType(t, &alert.LogNotifier{}, list[0])
	b, ok := list[1].(*alert.BreakerNotifier)
	require.True(t, ok)
	assert.Equal(t, alert.BreakerClosed, b.State())
}

func TestNeedsRedis(t *testing.T) {
	cfg := &cfgpkg.Config{}
	assert.False(t, NeedsRedis(cfg))
	cfg.Alerter.Store = StoreRedis
	assert.True(t, NeedsRedis(cfg))
}

func TestGenerateInstanceID(t *testing.T) {
	t.Setenv(EnvInstanceID, "")
	id := GenerateInstanceID("portal")
	assert.Contains(t, id, "portal-")

	t.Setenv(EnvInstanceID, "fixed")
	assert.Equal(t, "fixed", GenerateInstanceID("portal"))
}
