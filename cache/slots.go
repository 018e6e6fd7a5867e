package cache

import "container/heap"

// slotTable maps dense slot numbers to keys. Freed numbers are handed out
// again smallest first, before the table grows.
type slotTable[K comparable] struct {
	keys []K
	live []bool
	free freeSlots
}

func newSlotTable[K comparable](capacity int) slotTable[K] {
	return slotTable[K]{
		keys: make([]K, 0, capacity+1),
		live: make([]bool, 0, capacity+1),
	}
}

// acquire binds k to the smallest available slot.
func (t *slotTable[K]) acquire(k K) int {
	if t.free.Len() > 0 {
		s := heap.Pop(&t.free).(int)
		t.keys[s] = k
		t.live[s] = true
		return s
	}
	t.keys = append(t.keys, k)
	t.live = append(t.live, true)
	return len(t.keys) - 1
}

// release returns s to the free heap.
func (t *slotTable[K]) release(s int) {
	var zero K
	t.keys[s] = zero
	t.live[s] = false
	heap.Push(&t.free, s)
}

// key resolves a slot to its key.
func (t *slotTable[K]) key(s int) (K, bool) {
	if s < 0 || s >= len(t.keys) || !t.live[s] {
		var zero K
		return zero, false
	}
	return t.keys[s], true
}

// each visits live slots in ascending order.
func (t *slotTable[K]) each(fn func(slot int, k K)) {
	for s, ok := range t.live {
		if ok {
			fn(s, t.keys[s])
		}
	}
}

func (t *slotTable[K]) reset() {
	clear(t.keys)
	t.keys = t.keys[:0]
	t.live = t.live[:0]
	t.free = t.free[:0]
}

// freeSlots is a min-heap of released slot numbers.
type freeSlots []int

func (h freeSlots) Len() int           { return len(h) }
func (h freeSlots) Less(i, j int) bool { return h[i] < h[j] }
func (h freeSlots) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *freeSlots) Push(x any)        { *h = append(*h, x.(int)) }
func (h *freeSlots) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
