package cache

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/IvanBrykalov/slotcache/internal/singleflight"
	"github.com/IvanBrykalov/slotcache/policy"
	"github.com/IvanBrykalov/slotcache/policy/lru"
)

// cache is the engine shared by every policy: key→node map, slot table,
// counters and observers behind one mutex. The policy only orders keys.
type cache[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu         sync.Mutex
	m          map[K]*node[V]
	slots      slotTable[K]
	pol        policy.Policy[K]
	positional bool
	capacity   int
	stats      Stats
	subs       []subscription[K, V]
	nextSub    uint64

	opt Options[K, V]

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Policy   -> LRU
//
// It fails with ErrInvalidConfig if Capacity <= 0 or the policy rejects
// its parameters.
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	if opt.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d must be > 0", ErrInvalidConfig, opt.Capacity)
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K]()
	}

	c := &cache[K, V]{
		m:        make(map[K]*node[V], opt.Capacity+1),
		slots:    newSlotTable[K](opt.Capacity),
		capacity: opt.Capacity,
		opt:      opt,
	}
	pol, err := opt.Policy.New(engineHooks[K, V]{c: c})
	if err != nil {
		return nil, err
	}
	c.pol = pol
	c.positional = policy.IsPositional(pol)
	if opt.Observer != nil {
		c.Subscribe(opt.Observer)
	}
	return c, nil
}

// ---- Cache[K,V] implementation ----

func (c *cache[K, V]) Get(k K) (V, error) {
	v, ok := c.TryGet(k)
	if !ok {
		return v, ErrKeyNotFound
	}
	return v, nil
}

func (c *cache[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.m[k]; ok {
		n.val = v
		c.touch(k, n)
		return
	}
	c.insert(k, v)
}

func (c *cache[K, V]) GetAt(slot int) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, n, err := c.atLocked(slot)
	if err != nil {
		var zero V
		return zero, err
	}
	c.touch(k, n)
	return n.val, nil
}

func (c *cache[K, V]) SetAt(slot int, v V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, n, err := c.atLocked(slot)
	if err != nil {
		return err
	}
	n.val = v
	c.touch(k, n)
	return nil
}

func (c *cache[K, V]) KeyAt(slot int) (K, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, _, err := c.atLocked(slot)
	return k, err
}

func (c *cache[K, V]) AddOrUpdate(k K, add V, update func(K, V) V) V {
	return c.AddOrUpdateFunc(k, func(K) V { return add }, update)
}

func (c *cache[K, V]) AddOrUpdateFunc(k K, add func(K) V, update func(K, V) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.m[k]; ok {
		n.val = update(k, n.val)
		c.touch(k, n)
		return n.val
	}
	return c.insert(k, add(k)).val
}

func (c *cache[K, V]) GetOrAdd(k K, v V) V {
	return c.GetOrAddFunc(k, func(K) V { return v })
}

func (c *cache[K, V]) GetOrAddFunc(k K, fn func(K) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.m[k]; ok {
		c.touch(k, n)
		return n.val
	}
	return c.insert(k, fn(k)).val
}

func (c *cache[K, V]) TryAdd(k K, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.m[k]; exists {
		return false
	}
	c.insert(k, v)
	return true
}

func (c *cache[K, V]) TryGet(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.m[k]
	if !ok {
		c.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	c.touch(k, n)
	return n.val, true
}

func (c *cache[K, V]) Peek(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.m[k]; ok {
		return n.val, true
	}
	var zero V
	return zero, false
}

func (c *cache[K, V]) TryRemove(k K) (V, bool) {
	return c.RemoveIf(k, nil)
}

func (c *cache[K, V]) RemoveIf(k K, pred func(V) bool) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.m[k]
	if !ok || (pred != nil && !pred(n.val)) {
		var zero V
		return zero, false
	}
	c.pol.OnRemove(k, &n.st)
	c.drop(k, n, RemoveExplicit)
	return n.val, true
}

func (c *cache[K, V]) ContainsKey(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.m[k]
	return ok
}

func (c *cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.m)
	c.slots.reset()
	c.pol.OnClean()
	c.opt.Metrics.Size(0)
}

func (c *cache[K, V]) ToArray() []Entry[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry[K, V], 0, len(c.m))
	c.slots.each(func(s int, k K) {
		out = append(out, Entry[K, V]{Key: k, Value: c.m[k].val, Slot: s})
	})
	return out
}

func (c *cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]K, 0, len(c.m))
	c.slots.each(func(_ int, k K) { out = append(out, k) })
	return out
}

func (c *cache[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]V, 0, len(c.m))
	c.slots.each(func(_ int, k K) { out = append(out, c.m[k].val) })
	return out
}

func (c *cache[K, V]) IndexOf(k K) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.m[k]; ok {
		return n.slot
	}
	return -1
}

func (c *cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *cache[K, V]) Capacity() int { return c.capacity }

func (c *cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *cache[K, V]) Subscribe(o Observer[K, V]) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription[K, V]{id: id, obs: o})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight).
// A value that appeared while loading wins over the loaded one.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	// fast path
	if v, ok := c.TryGet(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(ctx, k, func() (V, error) {
		v, err := c.opt.Loader(ctx, k)
		if err != nil {
			return v, err
		}
		return c.GetOrAdd(k, v), nil
	})
	return v, err
}

// -------------------- internals (mu held) --------------------

func (c *cache[K, V]) atLocked(slot int) (K, *node[V], error) {
	var zero K
	if !c.positional {
		return zero, nil, ErrNotSupported
	}
	k, ok := c.slots.key(slot)
	if !ok {
		return zero, nil, fmt.Errorf("%w: slot %d", ErrKeyNotFound, slot)
	}
	return k, c.m[k], nil
}

// touch hands an existing entry to the policy, which reports the hit.
func (c *cache[K, V]) touch(k K, n *node[V]) {
	c.pol.UpdateList(k, &n.st)
}

// insert creates the node and its slot, then lets the policy place it and
// page out a victim if the cache is over capacity.
func (c *cache[K, V]) insert(k K, v V) *node[V] {
	n := &node[V]{val: v, slot: c.slots.acquire(k), st: policy.NewState()}
	c.m[k] = n
	c.pol.UpdateList(k, &n.st)
	c.opt.Metrics.Size(len(c.m))
	return n
}

// drop deletes a node the policy has already detached.
func (c *cache[K, V]) drop(k K, n *node[V], reason RemoveReason) {
	delete(c.m, k)
	c.slots.release(n.slot)
	n.st.Reset()
	inc(&c.stats.Deletes)
	c.opt.Metrics.Remove(reason)
	c.opt.Metrics.Size(len(c.m))
	for _, s := range c.subs {
		s.obs.NodeRemoved(k, n.val, reason)
	}
}

func inc(n *int) {
	if *n == math.MaxInt {
		*n = 0
		return
	}
	*n++
}

// -------------------- policy hooks --------------------

// engineHooks adapts the engine to policy.Hooks. Policies call them while
// the cache lock is held.
type engineHooks[K comparable, V any] struct{ c *cache[K, V] }

func (h engineHooks[K, V]) Len() int      { return len(h.c.m) }
func (h engineHooks[K, V]) Capacity() int { return h.c.capacity }

func (h engineHooks[K, V]) State(k K) *policy.State {
	if n, ok := h.c.m[k]; ok {
		return &n.st
	}
	return nil
}

func (h engineHooks[K, V]) Evict(k K) {
	if n, ok := h.c.m[k]; ok {
		h.c.drop(k, n, RemoveCapacity)
	}
}

func (h engineHooks[K, V]) Hit(k K) {
	c := h.c
	inc(&c.stats.Hits)
	c.opt.Metrics.Hit()
	v := c.m[k].val
	for _, s := range c.subs {
		s.obs.NodeHit(k, v)
	}
}

func (h engineHooks[K, V]) Insert(k K) {
	c := h.c
	inc(&c.stats.Inserts)
	c.opt.Metrics.Insert()
	v := c.m[k].val
	for _, s := range c.subs {
		s.obs.NodeInserted(k, v)
	}
}
