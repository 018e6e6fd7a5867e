// Package cache provides a bounded, generic in-memory cache with pluggable
// eviction policies (LRU by default), stable slot numbers, observers,
// singleflight loading and lightweight metrics hooks.
//
// Design
//
//   - Concurrency: one sync.Mutex per instance guards the key map, the
//     policy lists, the slot table and the counters. Reads take it too,
//     because a read is a hit and reorders the policy.
//
//   - Storage: a map[K]*node holds values; the policy keeps its own arena
//     lists of keys (package internal/list), so unlinking and relinking is
//     index arithmetic and never touches the map.
//
//   - Policies: lru, twoq, simple2q and lfu implement policy.Policy. The
//     engine calls UpdateList on every touch; the policy decides hit versus
//     insert and pages a victim out before linking a new key when the cache
//     is over capacity.
//
//   - Slots: every live entry owns a small integer slot, reused smallest
//     first. GetAt/SetAt/KeyAt address entries by slot on policies that
//     implement policy.Positional; others return ErrNotSupported.
//
//   - Events: Observers see hits, inserts and removals synchronously, under
//     the lock, in call order. Removals carry RemoveExplicit or
//     RemoveCapacity. Clear fires nothing.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using
//     singleflight. If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Insert/Remove/Size signals.
//     By default NoopMetrics is used; plug metrics/prom to export them.
//
// Basic usage
//
//	c, err := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	if err != nil {
//	    return err
//	}
//	c.Set("a", []byte("1"))
//	if v, ok := c.TryGet("a"); ok {
//	    _ = v // use value
//	}
//	c.TryRemove("a")
//
// For per-entry expiry wrap a cache with package timeout.
package cache
