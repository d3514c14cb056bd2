// Package ttlqueue 提供按入队时长（而非队列位置）淘汰的有界队列
//
// 入队非阻塞，队满立即拒绝；出队时才检查过期（无后台清理），
// 过期条目以 ErrExpired 的形式连同原始条目一起交给消费者，
// 由消费者决定如何降级（例如合成 "worker too busy" 结果）。
package ttlqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrFull 队列已满，新条目被拒绝
	ErrFull = errors.New("ttlqueue: queue full")
	// ErrEmpty 队列为空（仅 TryGet）
	ErrEmpty = errors.New("ttlqueue: queue empty")
	// ErrExpired 条目已过期；返回值中仍携带原始条目
	ErrExpired = errors.New("ttlqueue: item expired")
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = 5 * time.Second
)

type entry[T any] struct {
	item    T
	expires time.Time
}

// Option 队列选项
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Queue 带TTL的有界队列，可被多个生产者/消费者并发使用
type Queue[T any] struct {
	ch  chan entry[T]
	ttl time.Duration
	now func() time.Time

	putCount      atomic.Int64
	rejectedCount atomic.Int64
	expiredCount  atomic.Int64
}

// New 创建队列；capacity/ttl 非正时使用默认值（1000 / 5s）
func New[T any](capacity int, ttl time.Duration, opts ...Option) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[T]{
		ch:  make(chan entry[T], capacity),
		ttl: ttl,
		now: o.now,
	}
}

// Put 非阻塞入队，入队时刻打上绝对过期时间 now+ttl
func (q *Queue[T]) Put(item T) error {
	select {
	case q.ch <- entry[T]{item: item, expires: q.now().Add(q.ttl)}:
		q.putCount.Add(1)
		return nil
	default:
		q.rejectedCount.Add(1)
		return ErrFull
	}
}

// Get 阻塞直至有条目或 ctx 结束。
// 条目过期时返回 (item, ErrExpired)。
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	select {
	case e := <-q.ch:
		return q.check(e)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet 非阻塞出队；空队列返回 ErrEmpty
func (q *Queue[T]) TryGet() (T, error) {
	select {
	case e := <-q.ch:
		return q.check(e)
	default:
		var zero T
		return zero, ErrEmpty
	}
}

func (q *Queue[T]) check(e entry[T]) (T, error) {
	if q.now().After(e.expires) {
		q.expiredCount.Add(1)
		return e.item, ErrExpired
	}
	return e.item, nil
}

// Len 当前排队数量（含未检查的过期条目）
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap 队列容量
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// TTL 条目存活时长
func (q *Queue[T]) TTL() time.Duration { return q.ttl }

// Stats 获取统计信息
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Length:   q.Len(),
		Capacity: q.Cap(),
		Put:      q.putCount.Load(),
		Rejected: q.rejectedCount.Load(),
		Expired:  q.expiredCount.Load(),
	}
}

// Stats 队列统计信息
type Stats struct {
	Length   int   `json:"length"`
	Capacity int   `json:"capacity"`
	Put      int64 `json:"put_total"`
	Rejected int64 `json:"rejected_total"`
	Expired  int64 `json:"expired_total"`
}
