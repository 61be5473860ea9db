package cache

import (
	"context"
	"errors"

	"github.com/go-contract-cache/cache/internal/entry"
)

// ErrIteratorState is returned by Iterator.Remove when called before the
// first Next or twice in a row without an intervening Next.
var ErrIteratorState = errors.New("cache: iterator Remove called out of sequence")

type iteratorImpl[K comparable, V any] struct {
	a         *adapter[K, V]
	ctx       context.Context
	keys      []K
	pos       int
	lastKey   K
	hasLast   bool
	nextKey   K
	nextValue V
	primed    bool
}

func (a *adapter[K, V]) Iterator(ctx context.Context) (Iterator[K, V], error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if isReentrant(ctx) {
		return nil, ErrReentrant
	}
	return &iteratorImpl[K, V]{a: a, ctx: ctx, keys: a.store.Keys()}, nil
}

// HasNext advances past any expired entries it encounters, removing them
// in place, emitting EXPIRED, and counting each as an eviction — matching
// §4.6.13.
func (it *iteratorImpl[K, V]) HasNext() bool {
	if it.primed {
		return true
	}
	a := it.a
	for it.pos < len(it.keys) {
		key := it.keys[it.pos]
		it.pos++

		t := now()
		var present bool
		var expiredSeen bool
		var value V
		var oldValue V
		a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
			if !ok {
				return old, false
			}
			if old.Expired(t) {
				expiredSeen = true
				oldValue = old.Value()
				return old, false
			}
			present = true
			value = old.Value()
			return old, true
		}, a.onCapacityEvict)

		if expiredSeen {
			a.emitExpired(it.ctx, key, oldValue)
		}
		if present {
			it.nextKey = key
			it.nextValue = value
			it.primed = true
			return true
		}
	}
	return false
}

func (it *iteratorImpl[K, V]) Next() (K, V, bool) {
	if !it.HasNext() {
		var zk K
		var zv V
		return zk, zv, false
	}
	out, err := it.a.copyOut(it.nextValue)
	if err != nil {
		out = it.nextValue
	}
	it.lastKey = it.nextKey
	it.hasLast = true
	it.primed = false
	var zv V
	it.nextValue = zv
	return it.lastKey, out, true
}

func (it *iteratorImpl[K, V]) Remove() error {
	if !it.hasLast {
		return ErrIteratorState
	}
	it.hasLast = false
	_, err := it.a.Remove(it.ctx, it.lastKey)
	return err
}
