// Package localpool 进程内探针执行池
//
// 固定数量的 goroutine 从工作 TTL 队列取任务执行，结果写入结果 TTL 队列；
// 调度侧只通过 Enqueue / Drain 两个非阻塞操作与池交互。
package localpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/healthportal/internal/metrics"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
	"github.com/taoyao-code/healthportal/internal/ttlqueue"
	"github.com/taoyao-code/healthportal/internal/wire"
)

// 合成结果的原因
const (
	ReasonTooBusy = "worker too busy"
	ReasonUnknown = "healthcheck not known by worker"
)

// Config 执行池配置
type Config struct {
	Workers      int
	QueueSize    int
	QueueTTL     time.Duration
	ProbeTimeout time.Duration
}

// DefaultConfig 默认配置：4 个 worker，队列 1000 / 5s
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 1000, QueueTTL: 5 * time.Second, ProbeTimeout: 60 * time.Second}
}

// Pool 本地执行池
type Pool struct {
	registry *probe.Registry
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.AppMetrics

	work    *ttlqueue.Queue[wire.Job]
	results *ttlqueue.Queue[wire.Reply]

	startOnce sync.Once
	running   atomic.Bool
	busy      atomic.Int64
	executed  atomic.Int64
	malformed atomic.Int64
	dropped   atomic.Int64
}

// New 创建执行池；opts 透传给两个 TTL 队列（测试注入时钟）
func New(registry *probe.Registry, cfg Config, logger *zap.Logger, m *metrics.AppMetrics, opts ...ttlqueue.Option) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = def.QueueTTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "localpool")),
		metrics:  m,
		work:     ttlqueue.New[wire.Job](cfg.QueueSize, cfg.QueueTTL, opts...),
		results:  ttlqueue.New[wire.Reply](cfg.QueueSize, cfg.QueueTTL, opts...),
	}
}

// Start 启动固定数量的执行 goroutine（非阻塞，重复调用无效）
//
// 关闭时不等待执行中的探针：探针无状态，中途放弃是安全的。
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.running.Store(true)
		var wg sync.WaitGroup
		for i := 0; i < p.cfg.Workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.loop(ctx)
			}()
		}
		go func() {
			wg.Wait()
			p.running.Store(false)
		}()
		p.logger.Info("local pool started", zap.Int("workers", p.cfg.Workers),
			zap.Int("queue_size", p.cfg.QueueSize), zap.Duration("queue_ttl", p.cfg.QueueTTL))
	})
}

// Enqueue 非阻塞入队；队满时丢弃本周期并返回 ttlqueue.ErrFull
func (p *Pool) Enqueue(job wire.Job) error {
	if err := p.work.Put(job); err != nil {
		p.dropped.Add(1)
		p.metrics.Dropped(metrics.StageWorkFull)
		p.logger.Warn("check dropped: work queue full",
			zap.String("check_type", job.Type), zap.String("check_id", job.CheckID))
		return err
	}
	return nil
}

// Drain 非阻塞取出所有就绪结果交给 fn，返回处理条数；过期结果静默丢弃
func (p *Pool) Drain(fn func(wire.Reply)) int {
	n := 0
	for {
		reply, err := p.results.TryGet()
		switch {
		case errors.Is(err, ttlqueue.ErrEmpty):
			return n
		case errors.Is(err, ttlqueue.ErrExpired):
			p.dropped.Add(1)
			p.metrics.Dropped(metrics.StageResultExpired)
			p.logger.Debug("stale result dropped", zap.String("check_id", reply.CheckID))
			continue
		}
		fn(reply)
		n++
	}
}

// Next 阻塞等待下一条未过期结果（远程 worker 转发用）
func (p *Pool) Next(ctx context.Context) (wire.Reply, error) {
	for {
		reply, err := p.results.Get(ctx)
		if errors.Is(err, ttlqueue.ErrExpired) {
			p.dropped.Add(1)
			p.metrics.Dropped(metrics.StageResultExpired)
			p.logger.Debug("stale result dropped", zap.String("check_id", reply.CheckID))
			continue
		}
		return reply, err
	}
}

func (p *Pool) loop(ctx context.Context) {
	for {
		job, err := p.work.Get(ctx)
		switch {
		case errors.Is(err, ttlqueue.ErrExpired):
			p.dropped.Add(1)
			p.metrics.Dropped(metrics.StageWorkExpired)
			p.logger.Warn("check dropped: worker too busy",
				zap.String("check_type", job.Type), zap.String("check_id", job.CheckID))
			p.publish(wire.Reply{CheckID: job.CheckID, Result: result.Unknown(ReasonTooBusy)})
			continue
		case err != nil:
			return
		}
		p.execute(ctx, job)
	}
}

func (p *Pool) execute(ctx context.Context, job wire.Job) {
	def, ok := p.registry.Lookup(job.Type)
	if !ok {
		p.logger.Warn("check unknown", zap.String("check_type", job.Type))
		p.publish(wire.Reply{CheckID: job.CheckID, Result: result.Unknown(ReasonUnknown)})
		return
	}

	p.busy.Add(1)
	defer p.busy.Add(-1)

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	started := time.Now()
	res, err := probe.Run(runCtx, def, job.Kwargs.Clone())
	p.metrics.ObserveProbe(job.Type, time.Since(started))
	p.executed.Add(1)
	if err != nil {
		p.malformed.Add(1)
		p.metrics.Malformed("local")
		p.logger.Error("probe returned malformed result",
			zap.String("check_type", job.Type), zap.String("check_id", job.CheckID), zap.Error(err))
		return
	}
	p.publish(wire.Reply{CheckID: job.CheckID, Result: res})
}

func (p *Pool) publish(reply wire.Reply) {
	if err := p.results.Put(reply); err != nil {
		p.dropped.Add(1)
		p.metrics.Dropped(metrics.StageResultFull)
		p.logger.Warn("result dropped: result queue full", zap.String("check_id", reply.CheckID))
	}
}

// Saturated 工作队列使用率超过 90%
func (p *Pool) Saturated() bool {
	return p.work.Len()*10 >= p.work.Cap()*9
}

// Running 是否有执行 goroutine 在运行
func (p *Pool) Running() bool { return p.running.Load() }

// Stats 获取统计信息
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.cfg.Workers,
		Busy:      p.busy.Load(),
		Executed:  p.executed.Load(),
		Malformed: p.malformed.Load(),
		Dropped:   p.dropped.Load(),
		Work:      p.work.Stats(),
		Results:   p.results.Stats(),
	}
}

// Stats 执行池统计信息
type Stats struct {
	Workers   int            `json:"workers"`
	Busy      int64          `json:"busy"`
	Executed  int64          `json:"executed_total"`
	Malformed int64          `json:"malformed_total"`
	Dropped   int64          `json:"dropped_total"`
	Work      ttlqueue.Stats `json:"work_queue"`
	Results   ttlqueue.Stats `json:"result_queue"`
}
