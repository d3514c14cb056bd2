package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
	"github.com/taoyao-code/healthportal/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；指标关闭时不挂载 /metrics
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, readyFn func() bool, logger *zap.Logger) *httpserver.Server {
	opts := httpserver.Options{Ready: readyFn, Logger: logger}
	if cfg.Metrics.Enable {
		opts.MetricsPath = cfg.Metrics.Path
		opts.MetricsHandler = metricsHandler
	}
	return httpserver.New(cfg.HTTP, opts)
}
