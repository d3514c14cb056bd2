package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/healthportal/internal/coordinator"
	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/localpool"
	redisstorage "github.com/taoyao-code/healthportal/internal/storage/redis"
	"github.com/taoyao-code/healthportal/internal/workerhub"
)

// PoolStatus 本地执行池的自检视图
type PoolStatus interface {
	Running() bool
	Saturated() bool
	Stats() localpool.Stats
}

// HubStatus 远程 worker 通道的自检视图
type HubStatus interface {
	Known() int
	Stats() workerhub.Stats
}

// SchedulerStatus 协调器的自检视图
type SchedulerStatus interface {
	Started() bool
	Stats() coordinator.Stats
}

// NewPoolChecker 本地执行池：未运行为不健康，工作队列接近满为未知
func NewPoolChecker(p PoolStatus) *health.FuncChecker {
	return health.NewFuncChecker("local_pool", func(context.Context) health.CheckResult {
		s := p.Stats()
		details := map[string]any{
			"workers":       s.Workers,
			"busy":          s.Busy,
			"executed":      s.Executed,
			"malformed":     s.Malformed,
			"dropped":       s.Dropped,
			"work_queue":    s.Work,
			"results_queue": s.Results,
		}
		switch {
		case !p.Running():
			return health.CheckResult{State: health.StateUnhealthy, Message: "not running", Details: details}
		case p.Saturated():
			return health.CheckResult{State: health.StateUnknown, Message: "work queue saturated", Details: details}
		}
		return health.CheckResult{State: health.StateHealthy, Message: "ok", Details: details}
	})
}

// NewWorkersChecker 远程 worker：未配置时健康；全部离线为未知（只影响远程检查）
func NewWorkersChecker(h HubStatus) *health.FuncChecker {
	return health.NewFuncChecker("remote_workers", func(context.Context) health.CheckResult {
		s := h.Stats()
		details := map[string]any{
			"known":     s.Known,
			"online":    s.Online,
			"rejected":  s.Rejected,
			"malformed": s.Malformed,
		}
		switch {
		case h.Known() == 0:
			return health.CheckResult{State: health.StateHealthy, Message: "no remote workers configured", Details: details}
		case s.Online == 0:
			return health.CheckResult{State: health.StateUnknown, Message: "no remote worker online", Details: details}
		}
		return health.CheckResult{
			State:   health.StateHealthy,
			Message: fmt.Sprintf("%d/%d online", s.Online, s.Known),
			Details: details,
		}
	})
}

// NewSchedulerChecker 调度循环是否在运行
func NewSchedulerChecker(s SchedulerStatus) *health.FuncChecker {
	return health.NewFuncChecker("scheduler", func(context.Context) health.CheckResult {
		st := s.Stats()
		details := map[string]any{
			"entities":   st.Entities,
			"checks":     st.Checks,
			"dispatched": st.Dispatched,
			"applied":    st.Applied,
			"rejected":   st.Rejected,
			"timeouts":   st.Timeouts,
		}
		if !s.Started() {
			return health.CheckResult{State: health.StateUnhealthy, Message: "not running", Details: details}
		}
		return health.CheckResult{State: health.StateHealthy, Message: "ok", Details: details}
	})
}

// NewHealthAggregator 创建组件自检聚合器；redisClient 为空时不检查 Redis
func NewHealthAggregator(pool PoolStatus, hub HubStatus, sched SchedulerStatus, redisClient *redisstorage.Client) *health.Aggregator {
	agg := health.NewAggregator(
		NewSchedulerChecker(sched),
		NewPoolChecker(pool),
		NewWorkersChecker(hub),
	)
	if redisClient != nil {
		agg.AddChecker(health.NewRedisChecker(redisClient))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r gin.IRoutes, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
