package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册组件自检HTTP路由
func RegisterHTTPRoutes(r gin.IRoutes, aggregator *Aggregator) {
	// GET /health/ready
	r.GET("/health/ready", func(c *gin.Context) {
		if !aggregator.Ready(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"ready":  false,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"ready":  true,
		})
	})

	// GET /health/live
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"alive": aggregator.Alive(),
		})
	})

	// 详细检查；未知状态（例如 worker 全部离线）仍返回 200
	// GET /health
	r.GET("/health", func(c *gin.Context) {
		report := aggregator.Report(c.Request.Context())
		code := http.StatusOK
		if report.Healthy == StateUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})
}
