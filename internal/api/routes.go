package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/api/middleware"
)

// RegisterReadOnlyRoutes 注册只读查询路由
func RegisterReadOnlyRoutes(
	r gin.IRouter,
	q Querier,
	workers WorkerLister,
	authCfg middleware.AuthConfig,
	logger *zap.Logger,
) {
	if r == nil || q == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := NewReadOnlyHandler(q, workers, logger)

	api := r.Group("/api")
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	api.GET("/summary", handler.Summary)
	api.GET("/tabs", handler.ListTabs)
	api.GET("/tabs/:tab/entities", handler.ListTabEntities)
	api.GET("/entities", handler.ListEntities)
	api.GET("/entities/:id", handler.GetEntity)
	api.GET("/healthchecks", handler.ListChecks)
	api.GET("/healthchecks/:id", handler.GetCheck)
	api.GET("/workers", handler.ListWorkers)

	logger.Info("readonly routes registered", zap.Int("endpoints", 8))
}
