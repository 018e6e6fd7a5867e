// Package lru implements the LRU eviction policy.
package lru

import (
	"github.com/IvanBrykalov/slotcache/internal/list"
	"github.com/IvanBrykalov/slotcache/policy"
)

// lru is a classic "move-to-front" Least-Recently-Used policy over a single
// recency list: front is MRU, back is LRU and the only eviction candidate.
type lru[K comparable] struct {
	h     policy.Hooks[K]
	arena *list.Arena[K]
	order list.List[K]
}

type lruPolicy[K comparable] struct{}

// New returns a Policy factory that constructs LRU instances.
func New[K comparable]() policy.Factory[K] { return lruPolicy[K]{} }

// New implements policy.Factory by binding engine hooks.
func (lruPolicy[K]) New(h policy.Hooks[K]) (policy.Policy[K], error) {
	a := list.NewArena[K](h.Capacity() + 1)
	return &lru[K]{h: h, arena: a, order: list.NewList(a)}, nil
}

// UpdateList promotes a linked entry, or evicts the LRU entry when over
// capacity and then links the new one at MRU.
func (p *lru[K]) UpdateList(k K, st *policy.State) {
	if st.Linked() {
		p.order.MoveToFront(st.Elem)
		p.h.Hit(k)
		return
	}
	if p.h.Len() > p.h.Capacity() {
		p.evictBack()
	}
	st.Elem = p.order.PushFront(k)
	p.h.Insert(k)
}

// OnRemove unlinks an explicitly removed entry.
func (p *lru[K]) OnRemove(_ K, st *policy.State) {
	if st.Linked() {
		p.order.Remove(st.Elem)
	}
	st.Reset()
}

// OnClean drops the recency list.
func (p *lru[K]) OnClean() {
	p.arena.Reset()
	p.order.Init()
}

// Positional reports that LRU entries may be addressed by slot.
func (p *lru[K]) Positional() bool { return true }

func (p *lru[K]) evictBack() {
	e := p.order.Back()
	if e == list.Nil {
		return
	}
	k := p.order.Remove(e)
	if st := p.h.State(k); st != nil {
		st.Reset()
	}
	p.h.Evict(k)
}
