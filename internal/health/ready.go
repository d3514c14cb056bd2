package health

import "sync/atomic"

// Readiness 就绪状态（调度器、HTTP）
type Readiness struct {
	schedulerReady atomic.Bool
	httpReady      atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetSchedulerReady(v bool) { r.schedulerReady.Store(v) }
func (r *Readiness) SetHTTPReady(v bool)      { r.httpReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.schedulerReady.Load() && r.httpReady.Load()
}
