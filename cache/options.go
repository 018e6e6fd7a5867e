package cache

import (
	"context"

	"github.com/IvanBrykalov/slotcache/policy"
)

// RemoveReason explains why an entry left the cache.
type RemoveReason int

const (
	// RemoveExplicit: removed by a caller (TryRemove, RemoveIf).
	RemoveExplicit RemoveReason = iota
	// RemoveCapacity: paged out by the eviction policy to respect Capacity.
	RemoveCapacity
)

func (r RemoveReason) String() string {
	switch r {
	case RemoveCapacity:
		return "capacity"
	default:
		return "explicit"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Every call happens under the cache lock.
type Metrics interface {
	Hit()
	Miss()
	Insert()
	Remove(reason RemoveReason)
	Size(entries int)
}

// Options configures a cache. Zero values are safe except Capacity;
// defaults applied in New():
//   - nil Policy   => LRU
//   - nil Metrics  => NoopMetrics
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. Must be > 0.
	Capacity int

	// Policy builds the eviction policy (lru, twoq, simple2q, lfu); nil => LRU.
	Policy policy.Factory[K]

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// Observer, if set, is subscribed before the cache is returned.
	Observer Observer[K, V]

	Metrics Metrics
}
