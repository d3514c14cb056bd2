package health

import (
	"context"
	"sync"
	"time"
)

// Aggregator 组件自检聚合器
type Aggregator struct {
	checkers []Checker
	mu       sync.RWMutex
}

// NewAggregator 创建聚合器
func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{
		checkers: checkers,
	}
}

// AddChecker 添加检查器
func (a *Aggregator) AddChecker(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

// CheckAll 执行所有组件检查（并发）
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	results := make(map[string]CheckResult)
	resultsMu := sync.Mutex{}
	wg := sync.WaitGroup{}

	for _, checker := range a.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			result := c.Check(ctx)

			resultsMu.Lock()
			results[c.Name()] = result
			resultsMu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// Overall 按实体聚合同样的优先级计算总体状态
func Overall(results map[string]CheckResult) State {
	states := make([]State, 0, len(results))
	for _, r := range results {
		states = append(states, r.State)
	}
	return Aggregate(states...)
}

// Report 执行检查并生成报告
func (a *Aggregator) Report(ctx context.Context) HealthReport {
	checks := a.CheckAll(ctx)
	overall := Overall(checks)
	return HealthReport{
		Healthy:   overall,
		Status:    overall.String(),
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// Ready 判断系统是否就绪：只有确认的故障才视为未就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return Overall(a.CheckAll(ctx)) != StateUnhealthy
}

// Alive 判断系统是否存活
// 简单返回true，因为如果进程挂了就不会响应
func (a *Aggregator) Alive() bool {
	return true
}

// HealthReport 健康报告
type HealthReport struct {
	Healthy   State                  `json:"healthy"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}
