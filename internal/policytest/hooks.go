// Package policytest provides an in-memory stand-in for the cache engine so
// eviction policies can be tested without the full cache.
package policytest

import (
	"github.com/IvanBrykalov/slotcache/policy"
)

// Event kinds recorded by Hooks.
const (
	Hit    = "hit"
	Insert = "insert"
	Evict  = "evict"
)

// Event is one callback received from a policy.
type Event[K comparable] struct {
	Kind string
	Key  K
}

// Hooks implements policy.Hooks over a plain map of states and records
// every event in order.
type Hooks[K comparable] struct {
	Cap    int
	States map[K]*policy.State
	Events []Event[K]
}

// New returns hooks for a cache of the given capacity.
func New[K comparable](capacity int) *Hooks[K] {
	return &Hooks[K]{Cap: capacity, States: make(map[K]*policy.State)}
}

func (h *Hooks[K]) Len() int      { return len(h.States) }
func (h *Hooks[K]) Capacity() int { return h.Cap }

func (h *Hooks[K]) State(k K) *policy.State { return h.States[k] }

func (h *Hooks[K]) Evict(k K) {
	if _, ok := h.States[k]; !ok {
		panic("policytest: evict of absent key")
	}
	delete(h.States, k)
	h.Events = append(h.Events, Event[K]{Kind: Evict, Key: k})
}

func (h *Hooks[K]) Hit(k K)    { h.Events = append(h.Events, Event[K]{Kind: Hit, Key: k}) }
func (h *Hooks[K]) Insert(k K) { h.Events = append(h.Events, Event[K]{Kind: Insert, Key: k}) }

// Touch behaves like the engine: it creates the entry on first sight and
// always hands it to UpdateList.
func (h *Hooks[K]) Touch(p policy.Policy[K], k K) {
	st, ok := h.States[k]
	if !ok {
		s := policy.NewState()
		st = &s
		h.States[k] = st
	}
	p.UpdateList(k, st)
}

// Remove behaves like an explicit engine removal.
func (h *Hooks[K]) Remove(p policy.Policy[K], k K) bool {
	st, ok := h.States[k]
	if !ok {
		return false
	}
	p.OnRemove(k, st)
	delete(h.States, k)
	return true
}

// Has reports whether k is resident.
func (h *Hooks[K]) Has(k K) bool {
	_, ok := h.States[k]
	return ok
}

// Last returns the most recent event.
func (h *Hooks[K]) Last() Event[K] {
	if len(h.Events) == 0 {
		return Event[K]{}
	}
	return h.Events[len(h.Events)-1]
}

// Evicted returns evicted keys in order.
func (h *Hooks[K]) Evicted() []K {
	var out []K
	for _, e := range h.Events {
		if e.Kind == Evict {
			out = append(out, e.Key)
		}
	}
	return out
}

// Reset forgets recorded events.
func (h *Hooks[K]) Reset() { h.Events = h.Events[:0] }
