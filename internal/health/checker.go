package health

import (
	"context"
	"time"
)

// CheckResult 组件自检结果，与探针结果共用三态语义
type CheckResult struct {
	State   State          `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// Checker 组件自检接口
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// FuncChecker 用函数实现 Checker
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewFuncChecker 创建函数检查器
func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

// Name 返回检查器名称
func (c *FuncChecker) Name() string { return c.name }

// Check 执行检查并记录耗时
func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := c.fn(ctx)
	res.Latency = time.Since(start)
	return res
}
