package health

import (
	"context"
	"fmt"

	redisstorage "github.com/taoyao-code/healthportal/internal/storage/redis"
)

// RedisChecker Redis健康检查器
type RedisChecker struct {
	client *redisstorage.Client
}

// NewRedisChecker 创建Redis健康检查器
func NewRedisChecker(client *redisstorage.Client) *FuncChecker {
	c := &RedisChecker{client: client}
	return NewFuncChecker("redis", c.Check)
}

// Check 执行健康检查
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	// 1. Ping测试
	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{
			State:   StateUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}

	// 2. 连接池统计
	stats := c.client.Stats()
	utilization := 0.0
	if stats.TotalConns > 0 {
		utilization = float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
	}

	// 连接池接近上限不影响告警节流的正确性，只提示
	message := "ok"
	if utilization > 0.9 {
		message = "connection pool near limit"
	}

	return CheckResult{
		State:   StateHealthy,
		Message: message,
		Details: map[string]any{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"stale_conns": stats.StaleConns,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"timeouts":    stats.Timeouts,
			"utilization": fmt.Sprintf("%.1f%%", utilization*100),
		},
	}
}
