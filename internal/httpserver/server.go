package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/healthportal/internal/config"
)

// Options 可选组件
type Options struct {
	MetricsPath    string
	MetricsHandler http.Handler
	Ready          func() bool
	Logger         *zap.Logger
}

// Server HTTP 服务封装
type Server struct {
	srv    *http.Server
	engine *gin.Engine
	logger *zap.Logger
}

// New 创建并配置 Gin + HTTP Server，注册存活、就绪与指标路由
func New(cfg cfgpkg.HTTPConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "http"))

	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if opts.Ready == nil || opts.Ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if opts.MetricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(opts.MetricsHandler))
	}
	if cfg.Pprof.Enable {
		registerPprof(r, cfg.Pprof.Prefix)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv, engine: r, logger: logger}
}

// Register 挂载业务路由
func (s *Server) Register(fn func(r *gin.Engine)) {
	fn(s.engine)
}

// Handler 根处理器（测试用）
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start 启动 HTTP 服务（阻塞）；正常关闭返回 nil
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func registerPprof(r *gin.Engine, prefix string) {
	if prefix == "" {
		prefix = "/debug/pprof"
	}
	g := r.Group(prefix)
	g.GET("/", gin.WrapF(pprof.Index))
	g.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	g.GET("/profile", gin.WrapF(pprof.Profile))
	g.GET("/symbol", gin.WrapF(pprof.Symbol))
	g.GET("/trace", gin.WrapF(pprof.Trace))
	g.GET("/:name", func(c *gin.Context) {
		pprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request)
	})
}

// accessLog 访问日志（Debug 级别，避免探活请求刷屏）
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()),
		)
	}
}
