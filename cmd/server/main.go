package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/logging"
)

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 信号处理，优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx, cfg, zap.L()); err != nil {
		zap.L().Fatal("healthportal exited", zap.Error(err))
	}
}
