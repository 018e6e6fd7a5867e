// Package simple2q implements a simplified 2Q policy: a probation queue for
// first-time entries and a main LRU queue for entries touched again, with
// one threshold deciding which queue pages out.
package simple2q

import (
	"fmt"

	"github.com/IvanBrykalov/slotcache/internal/list"
	"github.com/IvanBrykalov/slotcache/policy"
)

const (
	inMain = iota
	inProbation
)

type simple2Q[K comparable] struct {
	h         policy.Hooks[K]
	threshold int

	arena     *list.Arena[K]
	main      list.List[K]
	probation list.List[K]
}

type factory[K comparable] struct {
	threshold int
	explicit  bool
}

// New returns a factory with threshold = capacity/4 (at least 1).
func New[K comparable]() policy.Factory[K] { return factory[K]{} }

// NewWithThreshold returns a factory with an explicit probation threshold.
// Building it fails with policy.ErrInvalidConfig unless threshold > 0.
func NewWithThreshold[K comparable](threshold int) policy.Factory[K] {
	return factory[K]{threshold: threshold, explicit: true}
}

func (f factory[K]) New(h policy.Hooks[K]) (policy.Policy[K], error) {
	t := f.threshold
	if f.explicit {
		if t <= 0 {
			return nil, fmt.Errorf("%w: simple2q threshold %d must be > 0", policy.ErrInvalidConfig, t)
		}
	} else {
		t = max(h.Capacity()/4, 1)
	}
	a := list.NewArena[K](h.Capacity() + 1)
	return &simple2Q[K]{
		h:         h,
		threshold: t,
		arena:     a,
		main:      list.NewList(a),
		probation: list.NewList(a),
	}, nil
}

// UpdateList promotes on any second touch: main entries move to the main
// front, probation entries are moved into main. New entries page out one
// victim when over capacity and start in probation.
func (p *simple2Q[K]) UpdateList(k K, st *policy.State) {
	if st.Linked() {
		if st.Group == inProbation {
			p.probation.Remove(st.Elem)
			st.Elem, st.Group = p.main.PushFront(k), inMain
		} else {
			p.main.MoveToFront(st.Elem)
		}
		p.h.Hit(k)
		return
	}

	if p.h.Len() > p.h.Capacity() {
		victims := &p.main
		if p.probation.Len() >= p.threshold || p.main.Len() == 0 {
			victims = &p.probation
		}
		if e := victims.Back(); e != list.Nil {
			vk := victims.Remove(e)
			if vs := p.h.State(vk); vs != nil {
				vs.Reset()
			}
			p.h.Evict(vk)
		}
	}
	st.Elem, st.Group = p.probation.PushFront(k), inProbation
	p.h.Insert(k)
}

func (p *simple2Q[K]) OnRemove(_ K, st *policy.State) {
	if st.Linked() {
		if st.Group == inProbation {
			p.probation.Remove(st.Elem)
		} else {
			p.main.Remove(st.Elem)
		}
	}
	st.Reset()
}

func (p *simple2Q[K]) OnClean() {
	p.arena.Reset()
	p.main.Init()
	p.probation.Init()
}

// Positional reports that entries may be addressed by slot.
func (p *simple2Q[K]) Positional() bool { return true }
