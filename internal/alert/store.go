package alert

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内节流存储
//
// 每个上下文的上次发送时间在首次访问时以 start-interval+snooze 预置，
// 因此启动后 snooze 之内任何上下文都不会告警。
type MemoryStore struct {
	mu       sync.Mutex
	start    time.Time
	interval time.Duration
	snooze   time.Duration
	last     map[string]time.Time
}

// NewMemoryStore 创建内存节流存储
func NewMemoryStore(start time.Time, interval, snooze time.Duration) *MemoryStore {
	return &MemoryStore{
		start:    start,
		interval: interval,
		snooze:   snooze,
		last:     make(map[string]time.Time),
	}
}

// Acquire 距上次发送已满 interval 时返回 true 并记录本次时间
func (s *MemoryStore) Acquire(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.last[key]
	if !ok {
		last = s.start.Add(-s.interval).Add(s.snooze)
	}
	if now.Sub(last) < s.interval {
		s.last[key] = last
		return false, nil
	}
	s.last[key] = now
	return true, nil
}
