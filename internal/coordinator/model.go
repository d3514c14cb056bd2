package coordinator

import (
	"time"

	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

// 实体类型
const (
	KindHost   = "Host"
	KindWebApp = "WebApp"
)

// 协调器合成结果的原因
const (
	ReasonWaiting = "Waiting for check"
	ReasonOffline = "worker offline"
	ReasonTimeout = "timeout"
)

// Entity 被监控对象，独占其检查项列表
//
// healthy 只由 evaluate 从子检查项推导，不直接赋值。
type Entity struct {
	ID          string
	Kind        string
	Name        string
	Tab         string
	Description string
	Worker      string // 子检查项缺省继承的 worker，空表示本地
	URL         string
	Checks      []*HealthCheck

	healthy health.State
}

// Healthy 聚合健康状态
func (e *Entity) Healthy() health.State { return e.healthy }

func (e *Entity) evaluate() health.State {
	if len(e.Checks) == 0 {
		return health.StateUnknown
	}
	states := make([]health.State, len(e.Checks))
	for i, c := range e.Checks {
		states[i] = c.Result.State()
	}
	return health.Aggregate(states...)
}

// HealthCheck 绑定到实体的一个调度单元
type HealthCheck struct {
	ID          string
	Entity      *Entity // 非拥有的反向引用
	Cls         string
	Label       string
	Description string
	Worker      string // 空表示本地执行池
	Kwargs      probe.Kwargs
	Interval    time.Duration
	Timeout     time.Duration // 2×Interval
	Delay       time.Duration // 一次性抖动

	Result     result.Result
	LastStart  time.Time
	LastFinish time.Time

	firstStart time.Time
}

// Remote 是否分配给远程 worker
func (c *HealthCheck) Remote() bool { return c.Worker != "" }

// stale 超时判定：以最近一次完成为基准，从未完成则以首次派发为基准
func (c *HealthCheck) stale(now time.Time) bool {
	ref := c.LastFinish
	if ref.IsZero() {
		ref = c.firstStart
	}
	return !ref.IsZero() && now.Sub(ref) > c.Timeout
}
