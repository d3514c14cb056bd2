package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/coordinator"
)

func testConfig() *cfgpkg.Config {
	cfg := &cfgpkg.Config{}
	cfg.App.Name = "portal"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Hub.Path = "/worker-websocket"
	cfg.Alerter.Store = "memory"
	cfg.Entities = []cfgpkg.EntityConfig{{
		Cls:  coordinator.KindHost,
		Name: "coordinator",
		Healthchecks: []map[string]any{
			{"cls": "Uptime", "interval": "1h"},
		},
	}}
	return cfg
}

func TestRun(t *testing.T) {
	t.Run("实体配置错误直接返回", func(t *testing.T) {
		cfg := testConfig()
		cfg.Entities[0].Cls = "Toaster"
		err := Run(context.Background(), cfg, zap.NewNop())
		assert.ErrorIs(t, err, coordinator.ErrInvalidEntity)
	})

	t.Run("未知告警存储直接返回", func(t *testing.T) {
		cfg := testConfig()
		cfg.Alerter.Store = "etcd"
		assert.Error(t, Run(context.Background(), cfg, zap.NewNop()))
	})

	t.Run("取消后正常退出", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- Run(ctx, testConfig(), zap.NewNop()) }()

		time.Sleep(100 * time.Millisecond)
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("未在超时内退出")
		}
	})
}
