package alert

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen 通道熔断中，本次告警未发送
var ErrCircuitOpen = errors.New("alert: notifier circuit open")

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常发送
	BreakerOpen                         // 熔断，直接拒绝
	BreakerHalfOpen                     // 冷却结束，放行一次试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerNotifier 为发送通道加熔断：连续失败 threshold 次后，冷却期内直接返回 ErrCircuitOpen
//
// 半开状态只放行一次试探，成功恢复，失败重新熔断。
type BreakerNotifier struct {
	next      Notifier
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
	trips    int64
}

// NewBreakerNotifier 包装通道；threshold<=0 取 5，cooldown<=0 取 1 分钟
func NewBreakerNotifier(next Notifier, threshold int, cooldown time.Duration) *BreakerNotifier {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &BreakerNotifier{next: next, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Notify 受熔断保护地发送
func (b *BreakerNotifier) Notify(ctx context.Context, msg Message) error {
	if err := b.before(); err != nil {
		return err
	}
	err := b.next.Notify(ctx, msg)
	b.after(err)
	return err
}

func (b *BreakerNotifier) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *BreakerNotifier) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.state = BreakerClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.trips++
	}
}

// State 当前状态
func (b *BreakerNotifier) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats 获取统计信息
func (b *BreakerNotifier) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{State: b.state.String(), Failures: b.failures, Trips: b.trips}
}

// BreakerStats 熔断统计
type BreakerStats struct {
	State    string `json:"state"`
	Failures int    `json:"consecutive_failures"`
	Trips    int64  `json:"trips_total"`
}
