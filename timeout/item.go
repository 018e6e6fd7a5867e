package timeout

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source for deadlines and expiry timers (tests).
// Nil => the time package.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending expiry callback; *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time                            { return time.Now() }
func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Item is the value stored in the wrapped cache: the caller's value plus its
// deadline and the pending expiry callback.
type Item[V any] struct {
	Value    V
	Deadline time.Time // zero: never expires

	ttl    time.Duration
	clock  Clock
	ctx    context.Context // cancel token, checked by the expiry callback
	cancel context.CancelFunc

	mu    sync.Mutex
	timer Timer
}

func newItem[V any](v V, ttl time.Duration, clock Clock) *Item[V] {
	it := &Item[V]{Value: v, ttl: ttl, clock: clock}
	if ttl > 0 {
		it.Deadline = clock.Now().Add(ttl)
	}
	it.ctx, it.cancel = context.WithCancel(context.Background())
	return it
}

// arm schedules fn at the item's deadline unless the item was already
// cancelled.
func (it *Item[V]) arm(fn func()) {
	if it.ttl <= 0 {
		return
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.ctx.Err() != nil || it.timer != nil {
		return
	}
	it.timer = it.clock.AfterFunc(it.Deadline.Sub(it.clock.Now()), fn)
}

// stop cancels the token first, so a callback that already fired sees it,
// then stops the timer if one was armed.
func (it *Item[V]) stop() {
	it.cancel()
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.timer != nil {
		it.timer.Stop()
	}
}

func (it *Item[V]) cancelled() bool { return it.ctx.Err() != nil }

// remaining is the time left before the deadline, at least 1ns while the
// entry is resident; zero for entries that never expire.
func (it *Item[V]) remaining() time.Duration {
	if it.Deadline.IsZero() {
		return 0
	}
	return max(it.Deadline.Sub(it.clock.Now()), time.Nanosecond)
}
