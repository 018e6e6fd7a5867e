package cache

import "context"

// Cache is a bounded in-memory key/value cache driven by a pluggable
// eviction policy. All methods are safe for concurrent use by multiple
// goroutines; each instance serializes them on a single lock.
//
// Reads that find an entry count as hits and may reorder the policy's
// lists, so they take the same lock as writes.
type Cache[K comparable, V any] interface {
	// Get returns the value for k, or ErrKeyNotFound. A hit touches the entry.
	Get(k K) (V, error)

	// Set inserts or overwrites k→v and touches the entry.
	Set(k K, v V)

	// GetAt returns the value stored at slot. It touches the entry.
	// Fails with ErrNotSupported if the policy is not positional and
	// with ErrKeyNotFound if the slot is unused.
	GetAt(slot int) (V, error)

	// SetAt overwrites the value stored at slot and touches the entry.
	SetAt(slot int, v V) error

	// KeyAt resolves a slot to its key without touching the entry.
	KeyAt(slot int) (K, error)

	// AddOrUpdate inserts add if k is absent, otherwise replaces the value
	// with update(k, old). Returns the resulting value.
	AddOrUpdate(k K, add V, update func(K, V) V) V

	// AddOrUpdateFunc is AddOrUpdate with a factory for the insert path.
	AddOrUpdateFunc(k K, add func(K) V, update func(K, V) V) V

	// GetOrAdd returns the existing value for k or inserts v.
	GetOrAdd(k K, v V) V

	// GetOrAddFunc returns the existing value for k or inserts fn(k).
	GetOrAddFunc(k K, fn func(K) V) V

	// TryAdd inserts k→v only if k is not present.
	// Returns false if the key already exists (no update is performed).
	TryAdd(k K, v V) bool

	// TryGet returns the value for k and a presence flag. A hit touches the entry.
	TryGet(k K) (V, bool)

	// Peek returns the value for k without touching the entry: no hit or
	// miss is counted and the policy order is unchanged.
	Peek(k K) (V, bool)

	// TryRemove deletes k and returns its value if it was present.
	TryRemove(k K) (V, bool)

	// RemoveIf deletes k only if pred accepts its current value.
	// pred runs under the cache lock.
	RemoveIf(k K, pred func(V) bool) (V, bool)

	// ContainsKey reports presence without touching the entry.
	ContainsKey(k K) bool

	// Clear drops every entry. No removal events are fired.
	Clear()

	// ToArray, Keys and Values return point-in-time copies in slot order.
	ToArray() []Entry[K, V]
	Keys() []K
	Values() []V

	// IndexOf returns the stable slot of k, or -1.
	IndexOf(k K) int

	// Len returns the number of resident entries.
	Len() int

	// Capacity returns the entry limit.
	Capacity() int

	// Stats returns a snapshot of the hit/insert/delete counters.
	Stats() Stats

	// Subscribe registers o for entry events and returns a function that
	// unregisters it.
	Subscribe(o Observer[K, V]) (cancel func())

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)
}

// Entry is a key/value pair copied out of a cache.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
	Slot  int
}

// Stats holds diagnostic counters. Each wraps to zero instead of
// overflowing.
type Stats struct {
	Hits    int
	Inserts int
	Deletes int
}
