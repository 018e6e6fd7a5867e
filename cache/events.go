package cache

// Observer receives entry events. Calls are made synchronously on the
// goroutine performing the operation, while the cache lock is held, so
// events arrive in operation order. Observers must not call back into the
// same cache (the lock is not reentrant) and should stay cheap.
type Observer[K comparable, V any] interface {
	NodeHit(k K, v V)
	NodeInserted(k K, v V)
	NodeRemoved(k K, v V, reason RemoveReason)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs[K comparable, V any] struct {
	OnHit    func(k K, v V)
	OnInsert func(k K, v V)
	OnRemove func(k K, v V, reason RemoveReason)
}

func (o ObserverFuncs[K, V]) NodeHit(k K, v V) {
	if o.OnHit != nil {
		o.OnHit(k, v)
	}
}

func (o ObserverFuncs[K, V]) NodeInserted(k K, v V) {
	if o.OnInsert != nil {
		o.OnInsert(k, v)
	}
}

func (o ObserverFuncs[K, V]) NodeRemoved(k K, v V, reason RemoveReason) {
	if o.OnRemove != nil {
		o.OnRemove(k, v, reason)
	}
}

type subscription[K comparable, V any] struct {
	id  uint64
	obs Observer[K, V]
}
