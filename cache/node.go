package cache

import "github.com/IvanBrykalov/slotcache/policy"

// node is a cache entry owned by the engine. The key lives in the map and
// the slot table; the policy tracks the entry's list position in st.
type node[V any] struct {
	val V

	// Stable positional index, recycled once the entry leaves.
	slot int

	// Policy bookkeeping, written only by the policy under the cache lock.
	st policy.State
}
