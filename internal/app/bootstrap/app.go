package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taoyao-code/healthportal/internal/api"
	"github.com/taoyao-code/healthportal/internal/api/middleware"
	"github.com/taoyao-code/healthportal/internal/app"
	"github.com/taoyao-code/healthportal/internal/buildinfo"
	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/metrics"
	"github.com/taoyao-code/healthportal/internal/probe/builtin"
)

// shutdownTimeout HTTP 优雅关闭的最长等待
const shutdownTimeout = 10 * time.Second

// Run 统一启动流程，阻塞直到 ctx 取消或任一组件失败
//
// 顺序：指标 → 实体索引（配置错误直接返回）→ Redis → 执行池/通道/告警 → 协调器 → HTTP。
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	version := buildinfo.Get()
	log = log.With(zap.String("instance", app.GenerateInstanceID(cfg.App.Name)))
	log.Info("starting healthportal", zap.String("version", version), zap.String("env", cfg.App.Env))

	// ========== 阶段1: 基础组件 ==========
	reg, appm := app.NewMetrics(version)
	ready := health.New()

	// ========== 阶段2: 实体与检查项（未知类型、未知探针、非法间隔均为启动错误）==========
	registry := builtin.Registry()
	index, err := app.BuildIndex(cfg, registry, version)
	if err != nil {
		log.Error("invalid entity configuration", zap.Error(err))
		return err
	}
	entities, checks := index.Len()
	log.Info("entities loaded", zap.Int("entities", entities), zap.Int("checks", checks),
		zap.Strings("workers", index.WorkerNames()))

	// ========== 阶段3: Redis（可选）==========
	redisClient, err := app.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	defer func() { _ = redisClient.Close() }()

	// ========== 阶段4: 执行池、远程通道、告警器、协调器 ==========
	pool := app.NewLocalPool(cfg.Pool, registry, log, appm)
	hub := app.NewWorkerHub(cfg, log, appm)
	alerter, err := app.NewAlerter(cfg.Alerter, redisClient, time.Now(), log, appm)
	if err != nil {
		log.Error("alerter initialization failed", zap.Error(err))
		return err
	}
	coord := app.NewCoordinator(cfg, index, pool, hub, alerter, log, appm)
	healthAgg := app.NewHealthAggregator(pool, hub, coord, redisClient)

	// ========== 阶段5: HTTP（worker 通道、查询接口、健康检查）==========
	httpSrv := app.NewHTTPServer(cfg, metrics.Handler(reg), ready.Ready, log)
	httpSrv.Register(func(r *gin.Engine) {
		r.GET(cfg.Hub.Path, hub.Handler())
		authCfg := middleware.AuthConfig{
			APIKeys: cfg.API.Auth.APIKeys,
			Enabled: cfg.API.Auth.Enabled,
		}
		api.RegisterReadOnlyRoutes(r, coord, hub, authCfg, log)
		app.RegisterHealthRoutes(r, healthAgg)
	})

	// ========== 阶段6: 并行运行 ==========
	g, gctx := errgroup.WithContext(ctx)
	pool.Start(gctx)
	g.Go(func() error {
		alerter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		ready.SetSchedulerReady(true)
		defer ready.SetSchedulerReady(false)
		return coord.Run(gctx)
	})
	g.Go(func() error {
		ready.SetHTTPReady(true)
		defer ready.SetHTTPReady(false)
		return httpSrv.Start()
	})

	// ========== 阶段7: 等待关闭 ==========
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		hub.Close()
		log.Info("http server stopped")
		return err
	})

	err = g.Wait()
	if err != nil {
		log.Error("healthportal stopped with error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}
