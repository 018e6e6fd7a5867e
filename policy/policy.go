// Package policy defines the contract between the cache engine and its
// eviction policies.
//
// The engine owns the key->node map and the slot table. A policy owns only
// its lists, which hold keys, and records each entry's position in the
// State embedded in that entry's node.
package policy

import (
	"errors"

	"github.com/IvanBrykalov/slotcache/internal/list"
)

// Nil marks an unset State field.
const Nil = list.Nil

// DefaultAgePolicy is the number of LFU hits between two decay passes
// when nothing else is configured.
const DefaultAgePolicy = 1000

// ErrInvalidConfig reports a capacity or tuning parameter that cannot
// produce a usable cache.
var ErrInvalidConfig = errors.New("cache: invalid configuration")

// State is the per-entry policy bookkeeping stored in every cache node.
//
// Elem is the entry's element handle in the policy arena. Group is
// policy-defined: the list an entry sits on for 2Q, the frequency bucket
// for LFU. Both are Nil for an entry the policy has not linked yet.
type State struct {
	Elem  int
	Group int
}

// NewState returns an unlinked State.
func NewState() State { return State{Elem: Nil, Group: Nil} }

// Reset marks the state unlinked.
func (s *State) Reset() { s.Elem, s.Group = Nil, Nil }

// Linked reports whether the policy has placed the entry on a list.
func (s *State) Linked() bool { return s.Elem != Nil }

// Hooks are provided by the engine. All calls happen under the cache lock,
// from inside Policy methods.
type Hooks[K comparable] interface {
	// Len returns the number of resident entries, including one that is
	// being inserted by the current UpdateList call.
	Len() int
	// Capacity returns the configured entry bound.
	Capacity() int
	// State returns the state of a resident key, or nil.
	State(k K) *State
	// Evict removes a resident key for capacity reasons. The policy must
	// already have detached k from its own lists.
	Evict(k K)
	// Hit reports a touch of an existing entry.
	Hit(k K)
	// Insert reports that a fresh entry was linked.
	Insert(k K)
}

// Policy is a per-instance eviction policy bound to one engine.
type Policy[K comparable] interface {
	// UpdateList is called on every touch of k, for hits and for fresh
	// inserts alike. It decides which happened, evicts through Hooks.Evict
	// before linking a new entry when Len() > Capacity(), leaves st
	// consistent with the new list position and reports Hit or Insert.
	UpdateList(k K, st *State)
	// OnRemove detaches k after an explicit removal.
	OnRemove(k K, st *State)
	// OnClean drops every list.
	OnClean()
}

// Factory builds a policy instance for one cache. It fails with
// ErrInvalidConfig if its parameters don't fit the hooks' capacity.
type Factory[K comparable] interface {
	New(Hooks[K]) (Policy[K], error)
}

// Positional is implemented by policies that allow slot-indexed access.
type Positional interface {
	Positional() bool
}

// IsPositional reports whether p allows slot-indexed access.
func IsPositional[K comparable](p Policy[K]) bool {
	ps, ok := p.(Positional)
	return ok && ps.Positional()
}
