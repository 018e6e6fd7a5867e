// Package twoq implements the full 2Q eviction policy.
package twoq

import (
	"fmt"

	"github.com/IvanBrykalov/slotcache/internal/list"
	"github.com/IvanBrykalov/slotcache/policy"
)

// Queue ids stored in policy.State.Group.
const (
	inMain = iota
	inProbation
)

// twoQ implements the 2Q eviction policy.
//
// Resident queues:
//   - A1in (probation): FIFO of first-time entries; re-touches don't move them
//   - Am   (main):      LRU of proven entries
//
// Ghost A1out: keys only (no values), tracks recently evicted A1in keys to give
// them a second chance (straight into Am on re-admission).
//
// Concurrency: all methods are called under the cache lock.
type twoQ[K comparable] struct {
	h policy.Hooks[K]

	kin  int // A1in bound
	kout int // A1out (ghost) bound

	arena     *list.Arena[K]
	main      list.List[K]
	probation list.List[K]

	// A1out, MRU at Front(). Ghost keys are not resident, so their handles
	// can't live in node state.
	ghost    list.List[K]
	ghostIdx map[K]int
}

type twoQPolicy[K comparable] struct {
	kin, kout int
	explicit  bool
}

// New returns a 2Q factory with Kin = capacity/4 and Kout = capacity/2,
// each at least 1.
func New[K comparable]() policy.Factory[K] { return twoQPolicy[K]{} }

// NewWithSizes returns a 2Q factory with explicit A1in and A1out bounds.
// Building it fails with policy.ErrInvalidConfig unless both are > 0.
func NewWithSizes[K comparable](kin, kout int) policy.Factory[K] {
	return twoQPolicy[K]{kin: kin, kout: kout, explicit: true}
}

func (f twoQPolicy[K]) New(h policy.Hooks[K]) (policy.Policy[K], error) {
	kin, kout := f.kin, f.kout
	if f.explicit {
		if kin <= 0 || kout <= 0 {
			return nil, fmt.Errorf("%w: 2q sizes kin=%d kout=%d must be > 0", policy.ErrInvalidConfig, kin, kout)
		}
	} else {
		kin = max(h.Capacity()/4, 1)
		kout = max(h.Capacity()/2, 1)
	}
	a := list.NewArena[K](h.Capacity() + kout + 1)
	return &twoQ[K]{
		h:         h,
		kin:       kin,
		kout:      kout,
		arena:     a,
		main:      list.NewList(a),
		probation: list.NewList(a),
		ghost:     list.NewList(a),
		ghostIdx:  make(map[K]int, kout),
	}, nil
}

// UpdateList applies the 2Q transitions:
//   - Am: move to MRU, hit.
//   - A1out: drop the ghost, reclaim, admit straight into Am, hit.
//   - A1in: no movement (FIFO), hit.
//   - unseen: reclaim, admit into A1in, insert.
func (q *twoQ[K]) UpdateList(k K, st *policy.State) {
	if st.Linked() {
		if st.Group == inMain {
			q.main.MoveToFront(st.Elem)
		}
		q.h.Hit(k)
		return
	}

	if ge, ok := q.ghostIdx[k]; ok {
		q.ghost.Remove(ge)
		delete(q.ghostIdx, k)
		q.reclaim()
		st.Elem, st.Group = q.main.PushFront(k), inMain
		q.h.Hit(k)
		return
	}

	q.reclaim()
	st.Elem, st.Group = q.probation.PushFront(k), inProbation
	q.h.Insert(k)
}

// reclaim evicts at most one resident entry when the cache is over capacity.
// Overflowing A1in loses its oldest entry to the ghost queue; otherwise Am
// loses its LRU entry.
func (q *twoQ[K]) reclaim() {
	if q.h.Len() <= q.h.Capacity() {
		return
	}
	switch {
	case q.probation.Len() > q.kin || (q.main.Len() == 0 && q.probation.Len() > 0):
		k := q.probation.Remove(q.probation.Back())
		q.evict(k)
		q.pushGhost(k)
	case q.main.Len() > 0:
		q.evict(q.main.Remove(q.main.Back()))
	}
}

func (q *twoQ[K]) evict(k K) {
	if st := q.h.State(k); st != nil {
		st.Reset()
	}
	q.h.Evict(k)
}

func (q *twoQ[K]) pushGhost(k K) {
	if old, ok := q.ghostIdx[k]; ok {
		q.ghost.Remove(old)
	}
	q.ghostIdx[k] = q.ghost.PushFront(k)
	for q.ghost.Len() > q.kout {
		delete(q.ghostIdx, q.ghost.Remove(q.ghost.Back()))
	}
}

// OnRemove detaches an explicitly removed entry. Explicit removals don't
// leave ghosts.
func (q *twoQ[K]) OnRemove(_ K, st *policy.State) {
	if st.Linked() {
		switch st.Group {
		case inMain:
			q.main.Remove(st.Elem)
		case inProbation:
			q.probation.Remove(st.Elem)
		}
	}
	st.Reset()
}

// OnClean drops all three queues.
func (q *twoQ[K]) OnClean() {
	q.arena.Reset()
	q.main.Init()
	q.probation.Init()
	q.ghost.Init()
	clear(q.ghostIdx)
}

// Positional reports that 2Q entries may be addressed by slot.
func (q *twoQ[K]) Positional() bool { return true }
