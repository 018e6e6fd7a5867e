// Package list implements doubly linked lists of keys whose elements live
// in a shared slab (Arena) and are addressed by integer handles.
//
// Policies keep their handles inside cache nodes instead of pointers, so
// "unlink and relink" is index manipulation inside the slab and no element
// is ever owned twice. Several lists may share one Arena; an element handle
// stays valid until the element is removed from its list.
//
// Nothing here is safe for concurrent use: callers hold the cache lock.
package list

// Nil is the handle of "no element".
const Nil = -1

type elem[K any] struct {
	key        K
	prev, next int
	used       bool
}

// Arena is the element slab shared by one or more lists.
type Arena[K any] struct {
	elems []elem[K]
	free  []int // recycled handles, LIFO
}

// NewArena returns an empty slab with room for hint elements.
func NewArena[K any](hint int) *Arena[K] {
	if hint < 0 {
		hint = 0
	}
	return &Arena[K]{elems: make([]elem[K], 0, hint)}
}

// Key returns the key stored at handle e.
func (a *Arena[K]) Key(e int) K { return a.elems[e].key }

// Len returns the number of elements currently allocated in the slab.
func (a *Arena[K]) Len() int { return len(a.elems) - len(a.free) }

// Reset drops every element. All lists built on this arena must be
// re-initialised with Init afterwards.
func (a *Arena[K]) Reset() {
	clear(a.elems)
	a.elems = a.elems[:0]
	a.free = a.free[:0]
}

func (a *Arena[K]) alloc(k K) int {
	if n := len(a.free); n > 0 {
		e := a.free[n-1]
		a.free = a.free[:n-1]
		a.elems[e] = elem[K]{key: k, prev: Nil, next: Nil, used: true}
		return e
	}
	a.elems = append(a.elems, elem[K]{key: k, prev: Nil, next: Nil, used: true})
	return len(a.elems) - 1
}

func (a *Arena[K]) release(e int) {
	a.elems[e] = elem[K]{prev: Nil, next: Nil}
	a.free = append(a.free, e)
}

// List is a doubly linked list of keys: Front is the most recently pushed
// element, Back the oldest. The zero value is not ready; use NewList or Init.
type List[K any] struct {
	a          *Arena[K]
	head, tail int
	n          int
}

// NewList returns an empty list allocating from a.
func NewList[K any](a *Arena[K]) List[K] {
	return List[K]{a: a, head: Nil, tail: Nil}
}

// Init empties the list without releasing elements (used after Arena.Reset).
func (l *List[K]) Init() {
	l.head, l.tail, l.n = Nil, Nil, 0
}

// Len returns the number of elements in the list.
func (l *List[K]) Len() int { return l.n }

// Front returns the head handle or Nil.
func (l *List[K]) Front() int { return l.head }

// Back returns the tail handle or Nil.
func (l *List[K]) Back() int { return l.tail }

// Next returns the element after e (towards the back) or Nil.
func (l *List[K]) Next(e int) int { return l.a.elems[e].next }

// Prev returns the element before e (towards the front) or Nil.
func (l *List[K]) Prev(e int) int { return l.a.elems[e].prev }

// Key returns the key stored at e.
func (l *List[K]) Key(e int) K { return l.a.elems[e].key }

// PushFront links k at the head and returns its handle.
func (l *List[K]) PushFront(k K) int {
	e := l.a.alloc(k)
	l.linkFront(e)
	return e
}

// Remove unlinks e, releases its handle and returns its key.
func (l *List[K]) Remove(e int) K {
	k := l.a.elems[e].key
	l.unlink(e)
	l.a.release(e)
	return k
}

// MoveToFront relinks e at the head. e must belong to l.
func (l *List[K]) MoveToFront(e int) {
	if l.head == e {
		return
	}
	l.unlink(e)
	l.linkFront(e)
}

// SpliceFront moves every element of o, in order, in front of l's current
// head. Handles stay valid; o is left empty.
func (l *List[K]) SpliceFront(o *List[K]) {
	if o.n == 0 {
		return
	}
	if l.n == 0 {
		l.head, l.tail, l.n = o.head, o.tail, o.n
		o.Init()
		return
	}
	l.a.elems[o.tail].next = l.head
	l.a.elems[l.head].prev = o.tail
	l.head = o.head
	l.n += o.n
	o.Init()
}

// Do calls fn for every key from front to back.
func (l *List[K]) Do(fn func(e int, k K)) {
	for e := l.head; e != Nil; e = l.a.elems[e].next {
		fn(e, l.a.elems[e].key)
	}
}

func (l *List[K]) linkFront(e int) {
	el := &l.a.elems[e]
	el.prev = Nil
	el.next = l.head
	if l.head != Nil {
		l.a.elems[l.head].prev = e
	}
	l.head = e
	if l.tail == Nil {
		l.tail = e
	}
	l.n++
}

func (l *List[K]) unlink(e int) {
	el := &l.a.elems[e]
	if !el.used {
		panic("list: unlink of released element")
	}
	if el.prev != Nil {
		l.a.elems[el.prev].next = el.next
	} else {
		l.head = el.next
	}
	if el.next != Nil {
		l.a.elems[el.next].prev = el.prev
	} else {
		l.tail = el.prev
	}
	el.prev, el.next = Nil, Nil
	l.n--
}
