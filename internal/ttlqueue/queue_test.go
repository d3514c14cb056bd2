package ttlqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestQueue_WithinTTL(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	q := New[string](10, 5*time.Second, WithClock(clk.Now))

	require.NoError(t, q.Put("job-1"))
	clk.Advance(4 * time.Second)

	item, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", item)
}

func TestQueue_ExpiredCarriesItem(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	q := New[string](10, 5*time.Second, WithClock(clk.Now))

	require.NoError(t, q.Put("job-1"))
	clk.Advance(5*time.Second + time.Millisecond)

	item, err := q.Get(context.Background())
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "job-1", item, "过期结果必须携带原始条目")
	assert.Equal(t, int64(1), q.Stats().Expired)
}

func TestQueue_FullRejectsImmediately(t *testing.T) {
	q := New[int](2, time.Second)
	require.NoError(t, q.Put(1))
	require.NoError(t, q.Put(2))

	done := make(chan error, 1)
	go func() { done <- q.Put(3) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFull)
	case <-time.After(time.Second):
		t.Fatal("Put 不应阻塞调用方")
	}
	assert.Equal(t, int64(1), q.Stats().Rejected)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_TryGetEmpty(t *testing.T) {
	q := New[int](1, time.Second)
	_, err := q.TryGet()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_GetHonoursContext(t *testing.T) {
	q := New[int](1, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q := New[int](1, time.Second)
	got := make(chan int, 1)
	go func() {
		v, err := q.Get(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(7))

	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("Get 未被唤醒")
	}
}

func TestNew_Defaults(t *testing.T) {
	q := New[int](0, 0)
	assert.Equal(t, DefaultCapacity, q.Cap())
	assert.Equal(t, DefaultTTL, q.TTL())
}
