package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/slotcache/policy"
	"github.com/IvanBrykalov/slotcache/policy/lfu"
	"github.com/IvanBrykalov/slotcache/policy/lru"
	"github.com/IvanBrykalov/slotcache/policy/simple2q"
	"github.com/IvanBrykalov/slotcache/policy/twoq"
)

func newCache[V any](t testing.TB, capacity int, f policy.Factory[string]) Cache[string, V] {
	t.Helper()
	c, err := New[string, V](Options[string, V]{Capacity: capacity, Policy: f})
	require.NoError(t, err)
	return c
}

// plainFactory builds LRU instances that don't advertise positional access.
type plainFactory struct{}

type plainPolicy struct{ policy.Policy[string] }

func (plainFactory) New(h policy.Hooks[string]) (policy.Policy[string], error) {
	p, err := lru.New[string]().New(h)
	return plainPolicy{p}, err
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -1} {
		_, err := New[string, int](Options[string, int]{Capacity: capacity})
		assert.True(t, errors.Is(err, ErrInvalidConfig), "capacity %d", capacity)
	}

	_, err := New[string, int](Options[string, int]{Capacity: 8, Policy: twoq.NewWithSizes[string](0, 4)})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

// Basic TryAdd/Set/Get/TryRemove semantics.
func TestCache_BasicOperations(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 8, nil)

	require.True(t, c.TryAdd("a", 1))
	require.False(t, c.TryAdd("a", 2), "TryAdd duplicate must be false")

	v, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = c.Get("missing")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	c.Set("a", 11)
	v, ok := c.TryGet("a")
	assert.True(t, ok)
	assert.Equal(t, 11, v)

	v, ok = c.TryRemove("a")
	assert.True(t, ok)
	assert.Equal(t, 11, v)
	assert.False(t, c.ContainsKey("a"))

	_, ok = c.TryRemove("a")
	assert.False(t, ok)
}

func TestCache_AddOrUpdateAndGetOrAdd(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 8, nil)
	inc := func(_ string, old int) int { return old + 1 }

	assert.Equal(t, 1, c.AddOrUpdate("n", 1, inc))
	assert.Equal(t, 2, c.AddOrUpdate("n", 1, inc))
	assert.Equal(t, 12, c.AddOrUpdateFunc("m", func(string) int { return 12 }, inc))
	assert.Equal(t, 13, c.AddOrUpdateFunc("m", func(string) int { return 99 }, inc))

	assert.Equal(t, 2, c.GetOrAdd("n", 100), "GetOrAdd must not overwrite")
	assert.Equal(t, 7, c.GetOrAdd("o", 7))

	calls := 0
	fn := func(string) int { calls++; return 5 }
	assert.Equal(t, 5, c.GetOrAddFunc("p", fn))
	assert.Equal(t, 5, c.GetOrAddFunc("p", fn))
	assert.Equal(t, 1, calls)
}

// Inserting 1..cap+1 evicts 1; touching 2 first evicts 3 instead.
func TestCache_EvictionLRU(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 3, nil)
	for i := 1; i <= 4; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	assert.False(t, c.ContainsKey("1"))
	assert.Equal(t, 3, c.Len())

	c = newCache[int](t, 3, nil)
	for i := 1; i <= 3; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	_, _ = c.Get("2") // reading is a hit: 2 becomes MRU
	_, _ = c.Get("1")
	c.Set("4", 4)
	assert.False(t, c.ContainsKey("3"))
	assert.True(t, c.ContainsKey("2"))
}

// ContainsKey is not a touch, so it must not save an entry from eviction.
func TestCache_ContainsKeyDoesNotTouch(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	require.True(t, c.ContainsKey("a"))
	c.Set("c", 3)
	assert.False(t, c.ContainsKey("a"))
}

// Peek reads without touching: no hit is counted and the order is kept.
func TestCache_PeekDoesNotTouch(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, nil)
	evs := record(c)
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Peek("missing")
	assert.False(t, ok)
	assert.Len(t, *evs, 2, "Peek fires no events")
	assert.Equal(t, 0, c.Stats().Hits)

	c.Set("c", 3)
	assert.False(t, c.ContainsKey("a"), "a stays LRU after Peek")
}

// Insert a, evict it through probation pressure, re-insert: it lands in main.
func TestCache_TwoQGhostPromotion(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 4, twoq.NewWithSizes[string](1, 4))
	for i, k := range []string{"a", "b", "c", "d", "e"} {
		c.Set(k, i)
	}
	require.False(t, c.ContainsKey("a"))

	var hits, inserts int
	c.Subscribe(ObserverFuncs[string, int]{
		OnHit:    func(string, int) { hits++ },
		OnInsert: func(string, int) { inserts++ },
	})
	c.Set("a", 10)
	assert.Equal(t, 1, hits, "ghost re-admission counts as a hit")
	assert.Equal(t, 0, inserts)

	// a sits in main now: filling probation again leaves it alone.
	for _, k := range []string{"f", "g", "h", "i"} {
		c.Set(k, 0)
	}
	assert.True(t, c.ContainsKey("a"))
	assert.LessOrEqual(t, c.Len(), 4)
}

// Capacity 2: insert a, b, touch a, insert c -> b leaves.
func TestCache_LFUEvictsLeastFrequent(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, lfu.New[string]())
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	assert.True(t, c.ContainsKey("a"))
	assert.False(t, c.ContainsKey("b"))
	assert.True(t, c.ContainsKey("c"))
}

// A freed slot is reused, smallest first, before new numbers are handed out.
func TestCache_SlotReuse(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 16, nil)
	for i := 0; i < 6; i++ {
		c.Set(fmt.Sprint(i), i)
		require.Equal(t, i, c.IndexOf(fmt.Sprint(i)))
	}

	_, ok := c.TryRemove("3")
	require.True(t, ok)
	c.Set("x", 0)
	assert.Equal(t, 3, c.IndexOf("x"))

	c.TryRemove("4")
	c.TryRemove("1")
	c.Set("y", 0)
	c.Set("z", 0)
	c.Set("w", 0)
	assert.Equal(t, 1, c.IndexOf("y"))
	assert.Equal(t, 4, c.IndexOf("z"))
	assert.Equal(t, 6, c.IndexOf("w"))
	assert.Equal(t, -1, c.IndexOf("missing"))

	// Slots are stable while the entry lives.
	_, _ = c.Get("0")
	c.Set("5", 55)
	assert.Equal(t, 0, c.IndexOf("0"))
	assert.Equal(t, 5, c.IndexOf("5"))
}

// The incoming entry takes its slot before the victim leaves, so capacity
// evictions free a slot for the next insert.
func TestCache_EvictionFreesSlot(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	assert.Equal(t, 2, c.IndexOf("c"))

	c.Set("d", 4) // reuses a's slot, then pages out b
	assert.Equal(t, 0, c.IndexOf("d"))
	assert.False(t, c.ContainsKey("b"))
}

func TestCache_PositionalAccess(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	k, err := c.KeyAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a", k)

	v, err := c.GetAt(0) // touches a: b becomes LRU
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, c.SetAt(1, 20))
	v, _ = c.Get("b")
	assert.Equal(t, 20, v)

	_, err = c.GetAt(7)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	assert.True(t, errors.Is(c.SetAt(-1, 0), ErrKeyNotFound))

	c.TryRemove("a")
	_, err = c.KeyAt(0)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestCache_PositionalNotSupported(t *testing.T) {
	t.Parallel()

	c, err := New[string, int](Options[string, int]{Capacity: 4, Policy: plainFactory{}})
	require.NoError(t, err)
	c.Set("a", 1)

	_, err = c.GetAt(0)
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.True(t, errors.Is(c.SetAt(0, 2), ErrNotSupported))
	_, err = c.KeyAt(0)
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.Equal(t, 0, c.IndexOf("a"))
}

type event struct {
	kind   string
	key    string
	val    int
	reason RemoveReason
}

func record(c Cache[string, int]) *[]event {
	var evs []event
	c.Subscribe(ObserverFuncs[string, int]{
		OnHit:    func(k string, v int) { evs = append(evs, event{kind: "hit", key: k, val: v}) },
		OnInsert: func(k string, v int) { evs = append(evs, event{kind: "insert", key: k, val: v}) },
		OnRemove: func(k string, v int, r RemoveReason) {
			evs = append(evs, event{kind: "remove", key: k, val: v, reason: r})
		},
	})
	return &evs
}

// Events arrive synchronously, in call order, with the affected value.
func TestCache_ObserverEvents(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, nil)
	evs := record(c)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3) // pages out b
	c.TryRemove("a")
	_, _ = c.TryGet("zzz")

	assert.Equal(t, []event{
		{kind: "insert", key: "a", val: 1},
		{kind: "insert", key: "b", val: 2},
		{kind: "hit", key: "a", val: 1},
		{kind: "remove", key: "b", val: 2, reason: RemoveCapacity},
		{kind: "insert", key: "c", val: 3},
		{kind: "remove", key: "a", val: 1, reason: RemoveExplicit},
	}, *evs)
}

func TestCache_Unsubscribe(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 4, nil)
	var n int
	cancel := c.Subscribe(ObserverFuncs[string, int]{OnInsert: func(string, int) { n++ }})
	c.Set("a", 1)
	cancel()
	cancel()
	c.Set("b", 2)
	assert.Equal(t, 1, n)
}

func TestCache_OptionsObserver(t *testing.T) {
	t.Parallel()

	var removed []string
	c, err := New[string, int](Options[string, int]{
		Capacity: 1,
		Observer: ObserverFuncs[string, int]{
			OnRemove: func(k string, _ int, _ RemoveReason) { removed = append(removed, k) },
		},
	})
	require.NoError(t, err)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, []string{"a"}, removed)
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 2, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)
	_, _ = c.Get("b")
	_, _ = c.Get("nope")
	c.Set("c", 4)
	c.TryRemove("c")

	assert.Equal(t, Stats{Hits: 2, Inserts: 3, Deletes: 2}, c.Stats())
}

func TestCounterWraps(t *testing.T) {
	t.Parallel()

	n := int(^uint(0) >> 1)
	inc(&n)
	assert.Equal(t, 0, n)
	inc(&n)
	assert.Equal(t, 1, n)
}

func TestCache_SnapshotsInSlotOrder(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 8, nil)
	for i, k := range []string{"a", "b", "c"} {
		c.Set(k, i)
	}
	c.TryRemove("a")
	c.Set("d", 9) // reuses slot 0

	assert.Equal(t, []string{"d", "b", "c"}, c.Keys())
	assert.Equal(t, []int{9, 1, 2}, c.Values())
	assert.Equal(t, []Entry[string, int]{
		{Key: "d", Value: 9, Slot: 0},
		{Key: "b", Value: 1, Slot: 1},
		{Key: "c", Value: 2, Slot: 2},
	}, c.ToArray())
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	for name, f := range policies() {
		t.Run(name, func(t *testing.T) {
			c := newCache[int](t, 4, f)
			evs := record(c)
			for i := 0; i < 6; i++ {
				c.Set(fmt.Sprint(i), i)
			}
			n := len(*evs)
			c.Clear()

			assert.Equal(t, 0, c.Len())
			assert.Empty(t, c.Keys())
			assert.Len(t, *evs, n, "Clear fires no events")

			c.Set("x", 1)
			assert.Equal(t, 0, c.IndexOf("x"))
			v, err := c.Get("x")
			require.NoError(t, err)
			assert.Equal(t, 1, v)
		})
	}
}

func policies() map[string]policy.Factory[string] {
	return map[string]policy.Factory[string]{
		"lru":      lru.New[string](),
		"2q":       twoq.New[string](),
		"simple2q": simple2q.New[string](),
		"lfu":      lfu.NewWithAgePolicy[string](16),
	}
}

// For every policy and any operation sequence, Len never exceeds Capacity
// and slots, keys and values stay consistent.
func TestCache_CapacityInvariant(t *testing.T) {
	t.Parallel()

	for name, f := range policies() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			const capacity = 16
			c := newCache[int](t, capacity, f)
			r := rand.New(rand.NewSource(3))
			for i := 0; i < 20_000; i++ {
				k := fmt.Sprint(r.Intn(64))
				switch r.Intn(10) {
				case 0:
					c.TryRemove(k)
				case 1:
					c.GetOrAdd(k, i)
				case 2:
					c.AddOrUpdate(k, i, func(_ string, v int) int { return v + 1 })
				case 3:
					_, _ = c.Get(k)
				default:
					c.Set(k, i)
				}
				require.LessOrEqual(t, c.Len(), capacity)
			}

			entries := c.ToArray()
			require.Len(t, entries, c.Len())
			slots := map[int]bool{}
			for _, e := range entries {
				assert.Equal(t, e.Slot, c.IndexOf(e.Key))
				assert.False(t, slots[e.Slot], "duplicate slot %d", e.Slot)
				slots[e.Slot] = true
				assert.Less(t, e.Slot, capacity+1)
			}
		})
	}
}

// Concurrent GetOrLoad calls for the same key run the Loader at most once.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c, err := New[string, string](Options[string, string]{
		Capacity: 64,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	require.NoError(t, err)

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := make(chan struct{})
	for i := 0; i < N; i++ {
		g.Go(func() error {
			<-start
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	// Late arrivals may find the value already cached; one load at most.
	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(1))

	v, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v:k", v)
}

func TestCache_GetOrLoad_Errors(t *testing.T) {
	t.Parallel()

	c := newCache[string](t, 4, nil)
	_, err := c.GetOrLoad(context.Background(), "k")
	assert.True(t, errors.Is(err, ErrNoLoader))

	boom := errors.New("boom")
	c, err = New[string, string](Options[string, string]{
		Capacity: 4,
		Loader:   func(context.Context, string) (string, error) { return "", boom },
	})
	require.NoError(t, err)
	_, err = c.GetOrLoad(context.Background(), "k")
	assert.True(t, errors.Is(err, boom))
	assert.False(t, c.ContainsKey("k"), "failed loads are not cached")
}

func TestRemoveIf(t *testing.T) {
	t.Parallel()

	c := newCache[int](t, 4, nil)
	c.Set("a", 1)

	_, ok := c.RemoveIf("a", func(v int) bool { return v == 2 })
	assert.False(t, ok)
	assert.True(t, c.ContainsKey("a"))

	v, ok := c.RemoveIf("a", func(v int) bool { return v == 1 })
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, c.ContainsKey("a"))
}
