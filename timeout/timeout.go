// Package timeout adds per-entry time-to-live on top of any cache.Cache.
//
// Each entry carries a deadline and a deferred callback. When the callback
// fires it removes the entry, provided it is still the same item, and
// reports OnTimeout. Updates and removals cancel the pending callback before
// touching the value, so a stale timer never removes a replaced entry.
// Entries paged out by the wrapped cache's policy are reported through
// OnEvicted instead.
package timeout

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/slotcache/cache"
)

// Options configures the decorator. All fields are optional.
type Options[K comparable, V any] struct {
	// OnTimeout is called once per expired entry, after it has been removed,
	// on the timer's goroutine.
	OnTimeout func(k K, v V)

	// OnEvicted is called when the wrapped cache pages an entry out to
	// respect its capacity. It runs under the wrapped cache's lock and must
	// not call back into the cache.
	OnEvicted func(k K, v V)

	// Logger receives debug records for expiries and paging evictions.
	// nil => discard.
	Logger *slog.Logger

	// Clock allows overriding the time source (tests). Nil => time package.
	Clock Clock
}

// Cache is a cache.Cache whose entries expire.
type Cache[K comparable, V any] struct {
	inner cache.Cache[K, *Item[V]]
	opt   Options[K, V]
	log   *slog.Logger
	clock Clock

	closed      atomic.Bool
	closeOnce   sync.Once
	unsubscribe func()
}

// New builds the wrapped cache from copt and decorates it.
func New[K comparable, V any](copt cache.Options[K, *Item[V]], opt Options[K, V]) (*Cache[K, V], error) {
	inner, err := cache.New(copt)
	if err != nil {
		return nil, err
	}
	return Wrap(inner, opt), nil
}

// Wrap decorates an existing cache. The decorator assumes it is the only
// writer of inner; entries written around it never expire.
func Wrap[K comparable, V any](inner cache.Cache[K, *Item[V]], opt Options[K, V]) *Cache[K, V] {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	clock := opt.Clock
	if clock == nil {
		clock = realClock{}
	}
	c := &Cache[K, V]{inner: inner, opt: opt, log: log, clock: clock}
	c.unsubscribe = inner.Subscribe(cache.ObserverFuncs[K, *Item[V]]{OnRemove: c.removed})
	return c
}

// Inner returns the wrapped cache, e.g. for positional or Stats access.
func (c *Cache[K, V]) Inner() cache.Cache[K, *Item[V]] { return c.inner }

// TryAdd inserts k→v with the given ttl only if k is absent. ttl <= 0 means
// the entry never expires.
func (c *Cache[K, V]) TryAdd(k K, v V, ttl time.Duration) bool {
	it := newItem(v, ttl, c.clock)
	if !c.inner.TryAdd(k, it) {
		it.cancel()
		return false
	}
	c.arm(k, it)
	return true
}

// Set inserts or replaces k→v and restarts its lifetime.
func (c *Cache[K, V]) Set(k K, v V, ttl time.Duration) {
	c.AddOrUpdate(k, v, func(K, V) V { return v }, ttl)
}

// AddOrUpdate inserts add if k is absent, otherwise replaces the value with
// update(k, old). Either way the entry gets a fresh ttl.
func (c *Cache[K, V]) AddOrUpdate(k K, add V, update func(K, V) V, ttl time.Duration) V {
	return c.AddOrUpdateFunc(k, func(K) V { return add }, update, ttl)
}

// AddOrUpdateFunc is AddOrUpdate with a factory for the insert path.
// The old entry's timer is cancelled before update runs.
func (c *Cache[K, V]) AddOrUpdateFunc(k K, add func(K) V, update func(K, V) V, ttl time.Duration) V {
	it := c.inner.AddOrUpdateFunc(k,
		func(k K) *Item[V] { return newItem(add(k), ttl, c.clock) },
		func(k K, old *Item[V]) *Item[V] {
			old.stop()
			return newItem(update(k, old.Value), ttl, c.clock)
		})
	c.arm(k, it)
	return it.Value
}

// GetOrAdd returns the live value for k or inserts v with the given ttl.
// An existing entry keeps its deadline.
func (c *Cache[K, V]) GetOrAdd(k K, v V, ttl time.Duration) V {
	var created *Item[V]
	it := c.inner.GetOrAddFunc(k, func(K) *Item[V] {
		created = newItem(v, ttl, c.clock)
		return created
	})
	if it == created {
		c.arm(k, it)
	}
	return it.Value
}

// Get returns the value for k, or cache.ErrKeyNotFound.
func (c *Cache[K, V]) Get(k K) (V, error) {
	it, err := c.inner.Get(k)
	if err != nil {
		var zero V
		return zero, err
	}
	return it.Value, nil
}

// TryGet returns the value for k and a presence flag.
func (c *Cache[K, V]) TryGet(k K) (V, bool) {
	it, ok := c.inner.TryGet(k)
	if !ok {
		var zero V
		return zero, false
	}
	return it.Value, true
}

// TryRemove deletes k and cancels its timer.
func (c *Cache[K, V]) TryRemove(k K) (V, bool) {
	it, ok := c.inner.TryRemove(k)
	if !ok {
		var zero V
		return zero, false
	}
	return it.Value, true
}

// ContainsKey reports presence without touching the entry.
func (c *Cache[K, V]) ContainsKey(k K) bool { return c.inner.ContainsKey(k) }

// TTL returns the remaining lifetime of k. A zero duration with ok=true
// means the entry never expires.
func (c *Cache[K, V]) TTL(k K) (d time.Duration, ok bool) {
	it, ok := c.inner.Peek(k)
	if !ok {
		return 0, false
	}
	return it.remaining(), true
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int { return c.inner.Len() }

// Keys returns the resident keys in slot order.
func (c *Cache[K, V]) Keys() []K { return c.inner.Keys() }

// Clear cancels every pending timer and empties the cache.
func (c *Cache[K, V]) Clear() {
	for _, it := range c.inner.Values() {
		it.stop()
	}
	c.inner.Clear()
}

// Close cancels all pending timers and detaches from the wrapped cache.
// Entries stay resident. Close is idempotent.
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.unsubscribe()
		for _, it := range c.inner.Values() {
			it.stop()
		}
	})
	return nil
}

func (c *Cache[K, V]) arm(k K, it *Item[V]) {
	if c.closed.Load() {
		return
	}
	it.arm(func() { c.expire(k, it) })
}

// expire runs on the timer goroutine. The identity check makes it a no-op
// if the entry was replaced or removed since the timer was armed.
func (c *Cache[K, V]) expire(k K, it *Item[V]) {
	if it.cancelled() || c.closed.Load() {
		return
	}
	if _, ok := c.inner.RemoveIf(k, func(cur *Item[V]) bool { return cur == it && !it.cancelled() }); !ok {
		return
	}
	c.log.Debug("cache entry expired", slog.Any("key", k), slog.Duration("ttl", it.ttl))
	if c.opt.OnTimeout != nil {
		c.opt.OnTimeout(k, it.Value)
	}
}

// removed observes every removal from the wrapped cache, under its lock.
func (c *Cache[K, V]) removed(k K, it *Item[V], reason cache.RemoveReason) {
	it.stop()
	if reason != cache.RemoveCapacity {
		return
	}
	c.log.Debug("cache entry evicted", slog.Any("key", k), slog.String("reason", reason.String()))
	if c.opt.OnEvicted != nil {
		c.opt.OnEvicted(k, it.Value)
	}
}
