// Package singleflight coalesces concurrent loads of the same cache key.
package singleflight

import (
	"context"
	"errors"
	"sync"
)

// ErrLeaderPanicked is returned to followers whose leader's fn panicked.
// The leader itself re-panics.
var ErrLeaderPanicked = errors.New("singleflight: loader panicked")

// Group runs fn at most once per key at a time; concurrent callers for the
// same key wait for and share the leader's result.
//
// A follower whose ctx ends stops waiting and gets ctx.Err(); the leader's
// fn keeps running. Thread ctx into fn to make the work itself cancellable.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done    chan struct{} // closed once val/err are published
	val     V
	err     error
	waiters int
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call. shared reports whether the result was
// delivered to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	completed := false
	defer func() {
		if !completed {
			c.err = ErrLeaderPanicked
		}
		g.mu.Lock()
		delete(g.m, key)
		shared = c.waiters > 0
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn()
	completed = true
	return c.val, c.err, false
}
