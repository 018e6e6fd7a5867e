// Package lfu implements a Least-Frequently-Used policy with aging.
//
// Entries are grouped into frequency buckets chained in strictly ascending
// count order. New entries go to the insertion bucket (count 1), a hit moves
// an entry to the bucket of count+1, and the victim is always the oldest
// entry of the lowest non-empty bucket.
//
// Aging: every agePolicy hits, all bucket counts drop by one, floored at 1.
// The two lowest buckets may then share count 1; they are merged, keeping the
// keys that came from the lower bucket at the tail so they still leave first.
package lfu

import (
	"fmt"

	"github.com/IvanBrykalov/slotcache/internal/list"
	"github.com/IvanBrykalov/slotcache/policy"
)

// minCount is the frequency assigned to new entries and the decay floor.
const minCount = 1

type bucket[K comparable] struct {
	count      int
	keys       list.List[K] // front = most recently added
	prev, next int          // bucket chain, ascending count towards next
}

type lfu[K comparable] struct {
	h         policy.Hooks[K]
	agePolicy int
	age       int

	arena   *list.Arena[K]
	buckets []bucket[K]
	freeB   []int
	head    int // lowest count
	ins     int // insertion point, may be empty
}

type factory[K comparable] struct {
	agePolicy int
	explicit  bool
}

// New returns an LFU factory using policy.DefaultAgePolicy.
func New[K comparable]() policy.Factory[K] { return factory[K]{} }

// NewWithAgePolicy returns an LFU factory that decays counts after every
// agePolicy hits. Building it fails with policy.ErrInvalidConfig unless
// agePolicy > 0.
func NewWithAgePolicy[K comparable](agePolicy int) policy.Factory[K] {
	return factory[K]{agePolicy: agePolicy, explicit: true}
}

func (f factory[K]) New(h policy.Hooks[K]) (policy.Policy[K], error) {
	age := policy.DefaultAgePolicy
	if f.explicit {
		if f.agePolicy <= 0 {
			return nil, fmt.Errorf("%w: lfu age policy %d must be > 0", policy.ErrInvalidConfig, f.agePolicy)
		}
		age = f.agePolicy
	}
	p := &lfu[K]{
		h:         h,
		agePolicy: age,
		arena:     list.NewArena[K](h.Capacity() + 1),
	}
	p.reset()
	return p, nil
}

func (p *lfu[K]) reset() {
	p.arena.Reset()
	clear(p.buckets)
	p.buckets = p.buckets[:0]
	p.freeB = p.freeB[:0]
	p.head = list.Nil
	p.age = 0
	p.ins = p.newBucket(minCount, list.Nil)
}

// UpdateList moves a hit entry one bucket up, or places a new entry at the
// insertion point after paging out the least frequently used entry.
func (p *lfu[K]) UpdateList(k K, st *policy.State) {
	if st.Linked() {
		p.age++
		if p.age > p.agePolicy {
			p.decay()
			p.age = 0
		}
		b := st.Group
		target := p.buckets[b].count + 1
		anchor := b
		p.buckets[b].keys.Remove(st.Elem)
		if p.buckets[b].keys.Len() == 0 && b != p.ins {
			anchor = p.buckets[b].prev
			p.dropBucket(b)
		}
		nb := p.bucketFor(target, anchor)
		st.Elem, st.Group = p.buckets[nb].keys.PushFront(k), nb
		p.h.Hit(k)
		return
	}

	if p.h.Len() > p.h.Capacity() {
		p.evictOne()
	}
	nb := p.ins
	st.Elem, st.Group = p.buckets[nb].keys.PushFront(k), nb
	p.h.Insert(k)
}

// evictOne pages out the tail of the lowest non-empty bucket.
func (p *lfu[K]) evictOne() {
	for b := p.head; b != list.Nil; b = p.buckets[b].next {
		keys := &p.buckets[b].keys
		if keys.Len() == 0 {
			continue
		}
		k := keys.Remove(keys.Back())
		if keys.Len() == 0 && b != p.ins {
			p.dropBucket(b)
		}
		if st := p.h.State(k); st != nil {
			st.Reset()
		}
		p.h.Evict(k)
		return
	}
}

// bucketFor returns the bucket with the given count, creating it in order.
// anchor is a bucket known to have a lower count, or Nil.
func (p *lfu[K]) bucketFor(target, anchor int) int {
	if p.buckets[p.ins].count == target {
		return p.ins
	}
	if anchor != list.Nil && p.buckets[anchor].count >= target {
		anchor = list.Nil
	}
	cur := anchor
	next := p.head
	if cur != list.Nil {
		next = p.buckets[cur].next
	}
	for next != list.Nil && p.buckets[next].count < target {
		cur, next = next, p.buckets[next].next
	}
	if next != list.Nil && p.buckets[next].count == target {
		return next
	}
	return p.newBucket(target, cur)
}

// decay lowers every count by one (floored at minCount) and merges buckets
// that end up sharing a count.
func (p *lfu[K]) decay() {
	for b := p.head; b != list.Nil; b = p.buckets[b].next {
		if p.buckets[b].count > minCount {
			p.buckets[b].count--
		}
	}
	for b := p.head; b != list.Nil; {
		n := p.buckets[b].next
		if n == list.Nil || p.buckets[n].count != p.buckets[b].count {
			b = n
			continue
		}
		// n held the higher count before the decay: its keys go in front.
		p.buckets[n].keys.Do(func(_ int, k K) {
			if st := p.h.State(k); st != nil {
				st.Group = b
			}
		})
		p.buckets[b].keys.SpliceFront(&p.buckets[n].keys)
		if p.ins == n {
			p.ins = b
		}
		p.unlinkBucket(n)
	}
}

func (p *lfu[K]) newBucket(count, after int) int {
	nb := bucket[K]{count: count, keys: list.NewList(p.arena), prev: after}
	var b int
	if n := len(p.freeB); n > 0 {
		b = p.freeB[n-1]
		p.freeB = p.freeB[:n-1]
		p.buckets[b] = nb
	} else {
		p.buckets = append(p.buckets, nb)
		b = len(p.buckets) - 1
	}
	if after == list.Nil {
		p.buckets[b].next = p.head
		if p.head != list.Nil {
			p.buckets[p.head].prev = b
		}
		p.head = b
	} else {
		next := p.buckets[after].next
		p.buckets[b].next = next
		if next != list.Nil {
			p.buckets[next].prev = b
		}
		p.buckets[after].next = b
	}
	return b
}

// dropBucket prunes an empty bucket. The insertion point is never pruned.
func (p *lfu[K]) dropBucket(b int) {
	if b == p.ins || p.buckets[b].keys.Len() != 0 {
		return
	}
	p.unlinkBucket(b)
}

func (p *lfu[K]) unlinkBucket(b int) {
	bk := &p.buckets[b]
	if bk.prev != list.Nil {
		p.buckets[bk.prev].next = bk.next
	} else {
		p.head = bk.next
	}
	if bk.next != list.Nil {
		p.buckets[bk.next].prev = bk.prev
	}
	p.buckets[b] = bucket[K]{prev: list.Nil, next: list.Nil}
	p.freeB = append(p.freeB, b)
}

// OnRemove detaches an explicitly removed entry from its bucket.
func (p *lfu[K]) OnRemove(_ K, st *policy.State) {
	if st.Linked() {
		b := st.Group
		p.buckets[b].keys.Remove(st.Elem)
		p.dropBucket(b)
	}
	st.Reset()
}

// OnClean drops all buckets and restarts aging.
func (p *lfu[K]) OnClean() { p.reset() }

// Positional reports that LFU entries may be addressed by slot.
func (p *lfu[K]) Positional() bool { return true }
