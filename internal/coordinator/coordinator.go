// Package coordinator 协调器：实体/检查项状态的唯一所有者
//
// 每个检查项一个调度 goroutine，只负责按节奏发出“到期”信号；
// 派发、结果应用、超时扫描都在 Run 的单一循环中串行完成，
// 与执行池之间只通过 TTL 队列和 hub 的通道交互。
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/metrics"
	"github.com/taoyao-code/healthportal/internal/result"
	"github.com/taoyao-code/healthportal/internal/wire"
	"github.com/taoyao-code/healthportal/internal/workerhub"
)

var (
	// ErrUnknownCheck 结果对应的检查项不存在
	ErrUnknownCheck = errors.New("coordinator: unknown check")
	// ErrForeignCheck 远程 worker 上报了不属于它的检查项
	ErrForeignCheck = errors.New("coordinator: check not assigned to worker")
	// ErrAlreadyRunning Run 被重复调用
	ErrAlreadyRunning = errors.New("coordinator: already running")
	// ErrNoHub 未配置远程通道却存在远程检查项
	ErrNoHub = errors.New("coordinator: no remote hub")
)

// 结果来源（指标标签）
const (
	SourceLocal   = "local"
	SourceRemote  = "remote"
	SourceOffline = "offline"
	SourceTimeout = "timeout"
)

// LocalPool 本地执行池
type LocalPool interface {
	Enqueue(job wire.Job) error
	Drain(fn func(wire.Reply)) int
}

// RemoteHub 远程 worker 通道
type RemoteHub interface {
	Send(worker string, job wire.Job) error
	Replies() <-chan workerhub.Inbound
}

// Alerter 告警入口（非阻塞）
type Alerter interface {
	Notify(key, text string)
}

// Config 协调器配置
type Config struct {
	RemoteGrace   time.Duration // 远程检查首次派发前的等待
	SweepInterval time.Duration
	DrainInterval time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{RemoteGrace: 12 * time.Second, SweepInterval: 10 * time.Second, DrainInterval: 10 * time.Millisecond}
}

// Option 可选项
type Option func(*Coordinator)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithObserver 每次结果应用后回调（在协调器循环中同步调用，不得阻塞）
func WithObserver(fn func(Update)) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, fn) }
}

// Coordinator 调度、派发、结果应用与超时监督
type Coordinator struct {
	index   *Index
	pool    LocalPool
	hub     RemoteHub
	alerter Alerter
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	now       func() time.Time
	observers []func(Update)

	mu      sync.RWMutex // 保护检查项结果与实体聚合状态
	due     chan *HealthCheck
	running atomic.Bool
	started atomic.Bool

	dispatched atomic.Int64
	applied    atomic.Int64
	rejected   atomic.Int64
	timeouts   atomic.Int64
}

// New 创建协调器；hub 与 alerter 可为 nil（无远程 worker / 不告警）
func New(index *Index, pool LocalPool, hub RemoteHub, alerter Alerter, cfg Config, logger *zap.Logger, m *metrics.AppMetrics, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.RemoteGrace < 0 {
		cfg.RemoteGrace = 0
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		index:   index,
		pool:    pool,
		hub:     hub,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "coordinator")),
		metrics: m,
		now:     time.Now,
		due:     make(chan *HealthCheck),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run 启动所有调度任务并运行协调器循环，直到 ctx 取消
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	var wg sync.WaitGroup
	for _, chk := range c.index.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.schedule(ctx, chk)
		}()
	}
	defer wg.Wait()

	drain := time.NewTicker(c.cfg.DrainInterval)
	defer drain.Stop()
	sweep := time.NewTicker(c.cfg.SweepInterval)
	defer sweep.Stop()

	var replies <-chan workerhub.Inbound
	if c.hub != nil {
		replies = c.hub.Replies()
	}

	entities, checks := c.index.Len()
	c.logger.Info("coordinator started", zap.Int("entities", entities), zap.Int("checks", checks),
		zap.Duration("sweep_interval", c.cfg.SweepInterval))
	c.started.Store(true)
	c.refreshMetrics()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped")
			return nil
		case chk := <-c.due:
			c.Dispatch(chk)
		case <-drain.C:
			if c.pool != nil {
				c.pool.Drain(func(r wire.Reply) { c.receive(SourceLocal, "", r) })
			}
		case in := <-replies:
			c.receive(SourceRemote, in.Worker, in.Reply)
		case <-sweep.C:
			c.SweepTimeouts(c.now())
			c.refreshMetrics()
		}
	}
}

// schedule 单个检查项的节奏：宽限 -> 抖动 -> 循环{到期; 休眠 interval}
//
// 间隔从派发时刻开始计算，执行慢或卡住不会推迟下一周期。
func (c *Coordinator) schedule(ctx context.Context, chk *HealthCheck) {
	wait := chk.Delay
	if chk.Remote() {
		wait += c.cfg.RemoteGrace
	}
	if !sleep(ctx, wait) {
		return
	}
	for {
		select {
		case c.due <- chk:
		case <-ctx.Done():
			return
		}
		if !sleep(ctx, chk.Interval) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Dispatch 将检查项交给其执行器；从不阻塞
//
// 远程 worker 不在线时立即合成 {healthy:null, reason:"worker offline"}。
func (c *Coordinator) Dispatch(chk *HealthCheck) {
	now := c.now()
	c.mu.Lock()
	chk.LastStart = now
	if chk.firstStart.IsZero() {
		chk.firstStart = now
	}
	c.mu.Unlock()
	c.dispatched.Add(1)

	job := wire.Job{Type: chk.Cls, CheckID: chk.ID, Kwargs: chk.Kwargs}
	if !chk.Remote() {
		c.metrics.Dispatched(SourceLocal)
		if c.pool == nil {
			return
		}
		// 队满由执行池记录日志与丢弃指标，本周期直接放弃
		_ = c.pool.Enqueue(job)
		return
	}

	err := ErrNoHub
	if c.hub != nil {
		err = c.hub.Send(chk.Worker, job)
	}
	switch {
	case err == nil:
		c.metrics.Dispatched(SourceRemote)
	case errors.Is(err, workerhub.ErrWorkerOffline), errors.Is(err, ErrNoHub):
		c.metrics.Dispatched(SourceOffline)
		c.logger.Debug("worker offline", zap.String("worker", chk.Worker), zap.String("check_id", chk.ID))
		if _, err := c.apply(chk, result.Unknown(ReasonOffline), SourceOffline); err != nil {
			c.logger.Error("apply offline result failed", zap.String("check_id", chk.ID), zap.Error(err))
		}
	default:
		// 写队列满：本周期丢弃，hub 已记录
		c.logger.Debug("remote dispatch dropped", zap.String("worker", chk.Worker),
			zap.String("check_id", chk.ID), zap.Error(err))
	}
}

// receive 处理执行池或远程 worker 送回的结果
func (c *Coordinator) receive(source, worker string, reply wire.Reply) {
	_, err := c.applyFrom(reply.CheckID, reply.Result, source, worker)
	switch {
	case err == nil:
	case errors.Is(err, result.ErrMalformed):
		c.metrics.Malformed(source)
		c.logger.Error("malformed result rejected", zap.String("source", source),
			zap.String("worker", worker), zap.String("check_id", reply.CheckID), zap.Error(err))
	default:
		c.logger.Warn("result rejected", zap.String("source", source),
			zap.String("worker", worker), zap.String("check_id", reply.CheckID), zap.Error(err))
	}
}

// ApplyResult 校验并应用结果，返回变更集
//
// 非法结果返回 result.ErrMalformed，不做任何修改。
func (c *Coordinator) ApplyResult(id string, res result.Result) (Update, error) {
	return c.applyFrom(id, res, SourceLocal, "")
}

func (c *Coordinator) applyFrom(id string, res result.Result, source, worker string) (Update, error) {
	chk, ok := c.index.checkByID[id]
	if !ok {
		c.rejected.Add(1)
		return Update{}, fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	if worker != "" && chk.Worker != worker {
		c.rejected.Add(1)
		return Update{}, fmt.Errorf("%w: %s reported %s", ErrForeignCheck, worker, id)
	}
	return c.apply(chk, res, source)
}

func (c *Coordinator) apply(chk *HealthCheck, res result.Result, source string) (Update, error) {
	if err := res.Validate(); err != nil {
		c.rejected.Add(1)
		return Update{}, fmt.Errorf("check %s: %w", chk.ID, err)
	}
	c.mu.Lock()
	u := c.applyLocked(chk, res)
	c.mu.Unlock()
	c.after(u, source)
	return u, nil
}

func (c *Coordinator) applyLocked(chk *HealthCheck, res result.Result) Update {
	e := chk.Entity
	now := c.now()
	u := Update{
		CheckID:        chk.ID,
		EntityID:       e.ID,
		Previous:       chk.Result.State(),
		Current:        res.State(),
		EntityPrevious: e.healthy,
		Result:         res,
		At:             now,
	}
	if !chk.Result.Equal(res) {
		u.Changed = append(u.Changed, FieldResult)
	}
	chk.Result = res
	chk.LastFinish = now
	u.Changed = append(u.Changed, FieldLastFinish)

	e.healthy = e.evaluate()
	u.EntityCurrent = e.healthy
	if u.EntityCurrent != u.EntityPrevious {
		u.Changed = append(u.Changed, FieldEntityHealthy)
	}

	if u.Current == health.StateUnhealthy && u.Previous != health.StateUnhealthy {
		u.Alert = fmt.Sprintf("%s unhealthy on %s, reason: %s ", chk.Label, e.Name, res.Reason)
	}
	return u
}

// after 锁外执行：指标、告警、观察者
func (c *Coordinator) after(u Update, source string) {
	c.applied.Add(1)
	c.metrics.ResultApplied(source, u.Current.String())
	if u.Alert != "" && c.alerter != nil {
		c.alerter.Notify(u.CheckID, u.Alert)
	}
	for _, fn := range c.observers {
		fn(u)
	}
}

// SweepTimeouts 将超过 timeout 未完成的检查项标记为 {healthy:null, reason:"timeout"}，返回数量
func (c *Coordinator) SweepTimeouts(now time.Time) int {
	c.mu.RLock()
	var stuck []*HealthCheck
	for _, chk := range c.index.checks {
		if chk.stale(now) {
			stuck = append(stuck, chk)
		}
	}
	c.mu.RUnlock()

	for _, chk := range stuck {
		c.timeouts.Add(1)
		c.metrics.TimedOut()
		c.logger.Warn("check timed out", zap.String("check_id", chk.ID), zap.String("check_type", chk.Cls),
			zap.String("worker", chk.Worker), zap.Duration("timeout", chk.Timeout))
		if _, err := c.apply(chk, result.Unknown(ReasonTimeout), SourceTimeout); err != nil {
			c.logger.Error("apply timeout result failed", zap.String("check_id", chk.ID), zap.Error(err))
		}
	}
	return len(stuck)
}

// refreshMetrics 刷新状态分布指标
func (c *Coordinator) refreshMetrics() {
	if c.metrics == nil {
		return
	}
	s := c.Summary()
	c.metrics.SetStateCounts(s.Checks.asMap(), s.Entities.asMap())
}

// Started 协调器循环是否已进入运行
func (c *Coordinator) Started() bool { return c.started.Load() && c.running.Load() }

// Tabs 分组名（按定义顺序）
func (c *Coordinator) Tabs() []string { return slices.Clone(c.index.tabs) }

// EntitiesByTab 指定分组下的实体
func (c *Coordinator) EntitiesByTab(tab string) []EntityView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.index.byTab[tab]
	out := make([]EntityView, 0, len(list))
	for _, e := range list {
		out = append(out, viewEntity(e))
	}
	return out
}

// Entity 按 id 查询实体
func (c *Coordinator) Entity(id string) (EntityView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.index.byID[id]
	if !ok {
		return EntityView{}, false
	}
	return viewEntity(e), true
}

// Check 按 id 查询检查项
func (c *Coordinator) Check(id string) (CheckView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chk, ok := c.index.checkByID[id]
	if !ok {
		return CheckView{}, false
	}
	return viewCheck(chk), true
}

// Checks 按状态过滤检查项；不传状态返回全部
func (c *Coordinator) Checks(states ...health.State) []CheckView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CheckView, 0)
	for _, chk := range c.index.checks {
		if len(states) == 0 || slices.Contains(states, chk.Result.State()) {
			out = append(out, viewCheck(chk))
		}
	}
	return out
}

// Entities 按状态过滤实体；未知状态不包含没有检查项的实体
func (c *Coordinator) Entities(states ...health.State) []EntityView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EntityView, 0)
	for _, e := range c.index.entities {
		if len(states) > 0 {
			if !slices.Contains(states, e.healthy) {
				continue
			}
			if e.healthy == health.StateUnknown && len(e.Checks) == 0 {
				continue
			}
		}
		out = append(out, viewEntity(e))
	}
	return out
}

// Summary 状态分布
func (c *Coordinator) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Summary
	for _, chk := range c.index.checks {
		s.Checks.add(chk.Result.State())
	}
	for _, e := range c.index.entities {
		if len(e.Checks) == 0 {
			continue
		}
		s.Entities.add(e.healthy)
	}
	return s
}

// Stats 获取统计信息
func (c *Coordinator) Stats() Stats {
	entities, checks := c.index.Len()
	return Stats{
		Entities:   entities,
		Checks:     checks,
		Running:    c.Started(),
		Dispatched: c.dispatched.Load(),
		Applied:    c.applied.Load(),
		Rejected:   c.rejected.Load(),
		Timeouts:   c.timeouts.Load(),
	}
}

// Stats 协调器统计信息
type Stats struct {
	Entities   int   `json:"entities"`
	Checks     int   `json:"checks"`
	Running    bool  `json:"running"`
	Dispatched int64 `json:"dispatched_total"`
	Applied    int64 `json:"applied_total"`
	Rejected   int64 `json:"rejected_total"`
	Timeouts   int64 `json:"timeouts_total"`
}

// Counts 三态计数
type Counts struct {
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Unknown   int `json:"unknown"`
}

func (n *Counts) add(s health.State) {
	switch s {
	case health.StateHealthy:
		n.Healthy++
	case health.StateUnhealthy:
		n.Unhealthy++
	default:
		n.Unknown++
	}
}

func (n Counts) asMap() map[string]int {
	return map[string]int{
		health.StateHealthy.String():   n.Healthy,
		health.StateUnhealthy.String(): n.Unhealthy,
		health.StateUnknown.String():   n.Unknown,
	}
}

// Summary 检查项与实体的状态分布
type Summary struct {
	Checks   Counts `json:"healthchecks"`
	Entities Counts `json:"entities"`
}
