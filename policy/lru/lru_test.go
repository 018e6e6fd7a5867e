package lru

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/slotcache/internal/policytest"
	"github.com/IvanBrykalov/slotcache/policy"
)

func newLRU(t *testing.T, capacity int) (*lru[int], *policytest.Hooks[int]) {
	t.Helper()
	h := policytest.New[int](capacity)
	p, err := New[int]().New(h)
	require.NoError(t, err)
	return p.(*lru[int]), h
}

func order(p *lru[int]) []int {
	var out []int
	p.order.Do(func(_ int, k int) { out = append(out, k) })
	return out
}

// A fresh key is linked at MRU and reported as an insert.
func TestLRU_InsertPushesFront(t *testing.T) {
	t.Parallel()

	p, h := newLRU(t, 3)
	h.Touch(p, 1)
	h.Touch(p, 2)

	assert.Equal(t, []int{2, 1}, order(p))
	assert.Equal(t, policytest.Event[int]{Kind: policytest.Insert, Key: 2}, h.Last())
}

// Touching a linked key promotes it and is reported as a hit.
func TestLRU_HitMovesToFront(t *testing.T) {
	t.Parallel()

	p, h := newLRU(t, 3)
	for _, k := range []int{1, 2, 3} {
		h.Touch(p, k)
	}
	h.Touch(p, 1)

	assert.Equal(t, []int{1, 3, 2}, order(p))
	assert.Equal(t, policytest.Event[int]{Kind: policytest.Hit, Key: 1}, h.Last())
}

// Inserting keys 1..cap+1 evicts key 1; touching 2 first evicts 3 instead.
func TestLRU_EvictionOrder(t *testing.T) {
	t.Parallel()

	const capacity = 4
	p, h := newLRU(t, capacity)
	for k := 1; k <= capacity+1; k++ {
		h.Touch(p, k)
	}
	assert.Equal(t, []int{1}, h.Evicted())
	assert.Equal(t, capacity, h.Len())

	p, h = newLRU(t, capacity)
	for k := 1; k <= capacity; k++ {
		h.Touch(p, k)
	}
	h.Touch(p, 2)
	h.Touch(p, 1)
	h.Touch(p, capacity+1)
	assert.Equal(t, []int{3}, h.Evicted())
}

// The eviction happens before the new key is linked.
func TestLRU_EvictsBeforeInsert(t *testing.T) {
	t.Parallel()

	p, h := newLRU(t, 1)
	h.Touch(p, 1)
	h.Reset()
	h.Touch(p, 2)

	require.Len(t, h.Events, 2)
	assert.Equal(t, policytest.Evict, h.Events[0].Kind)
	assert.Equal(t, policytest.Insert, h.Events[1].Kind)
	assert.Equal(t, []int{2}, order(p))
}

func TestLRU_OnRemoveAndClean(t *testing.T) {
	t.Parallel()

	p, h := newLRU(t, 3)
	h.Touch(p, 1)
	h.Touch(p, 2)
	require.True(t, h.Remove(p, 1))
	assert.Equal(t, []int{2}, order(p))

	p.OnClean()
	assert.Empty(t, order(p))
	assert.True(t, p.Positional())
	assert.True(t, policy.IsPositional[int](p))
}

// The resident set must match hashicorp's simplelru for any touch sequence.
func TestLRU_MatchesReference(t *testing.T) {
	t.Parallel()

	const capacity = 16
	ref, err := simplelru.NewLRU[int, struct{}](capacity, nil)
	require.NoError(t, err)
	p, h := newLRU(t, capacity)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20_000; i++ {
		k := r.Intn(64)
		h.Touch(p, k)
		ref.Add(k, struct{}{})
	}

	got := make([]int, 0, h.Len())
	for k := range h.States {
		got = append(got, k)
	}
	sort.Ints(got)
	want := ref.Keys()
	sort.Ints(want)
	assert.Equal(t, want, got)

	// simplelru.Keys is oldest first; our list is MRU first.
	mru := order(p)
	oldest := ref.Keys()
	for i := range mru {
		assert.Equal(t, oldest[len(oldest)-1-i], mru[i])
	}
}
