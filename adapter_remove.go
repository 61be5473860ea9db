package cache

import (
	"context"
	"reflect"

	"github.com/go-contract-cache/cache/internal/entry"
)

// Remove deletes key unconditionally. Write-through delete always runs;
// the atomic compute decides whether anything was actually there to
// remove.
func (a *adapter[K, V]) Remove(ctx context.Context, key K) (bool, error) {
	if err := a.validate(ctx, key, false, nil); err != nil {
		return false, err
	}
	if werr := a.deleteOne(ctx, key); werr != nil {
		return false, werr
	}

	t := now()
	var removed, expiredSeen bool
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
		removed = true
		oldValue = old.Value()
		return old, false
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	if removed {
		a.emitRemoved(ctx, key, oldValue)
		a.recordRemoval()
		return true, nil
	}
	return false, nil
}

// RemoveIfMatches removes key only if its current value equals value
// (comparison via valuesEqual: == for comparable dynamic types,
// reflect.DeepEqual otherwise).
func (a *adapter[K, V]) RemoveIfMatches(ctx context.Context, key K, value V) (bool, error) {
	if err := a.validate(ctx, key, true, value); err != nil {
		return false, err
	}
	t := now()

	probeEntry, probeFound := a.store.Get(key)
	probeMatches := probeFound && !probeEntry.Expired(t) && valuesEqual(probeEntry.Value(), value)

	if probeMatches {
		if werr := a.deleteOne(ctx, key); werr != nil {
			return false, werr
		}
	}

	var removed, expiredSeen, mismatch bool
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
		if !valuesEqual(old.Value(), value) {
			mismatch = true
			return old, true
		}
		removed = true
		oldValue = old.Value()
		return old, false
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	if removed {
		a.emitRemoved(ctx, key, oldValue)
		a.recordRemoval()
		a.recordHit()
		return true, nil
	}
	if mismatch {
		a.recordMiss()
		return false, nil
	}
	a.recordMiss()
	return false, nil
}

func (a *adapter[K, V]) GetAndRemove(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := a.validate(ctx, key, false, nil); err != nil {
		return zero, false, err
	}
	if werr := a.deleteOne(ctx, key); werr != nil {
		return zero, false, werr
	}

	t := now()
	var removed, expiredSeen bool
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
		removed = true
		oldValue = old.Value()
		return old, false
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
		a.recordMiss()
		return zero, false, nil
	}
	if removed {
		a.emitRemoved(ctx, key, oldValue)
		a.recordRemoval()
		a.recordHit()
		out, err := a.copyOut(oldValue)
		if err != nil {
			return zero, false, err
		}
		return out, true, nil
	}
	a.recordMiss()
	return zero, false, nil
}

// RemoveAll removes each of keys, firing the standard remove path
// per-key. The batch is not globally atomic: each key retains its own
// single-key atomicity and accounting.
func (a *adapter[K, V]) RemoveAll(ctx context.Context, keys []K) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if isReentrant(ctx) {
		return ErrReentrant
	}
	for _, k := range keys {
		if isNilValue(k) {
			return ErrNullKey
		}
	}

	failed, werr := a.deleteBatch(ctx, keys)
	failedSet := make(map[K]bool, len(failed))
	for _, k := range failed {
		failedSet[k] = true
	}

	t := now()
	for _, key := range keys {
		if failedSet[key] {
			continue
		}
		var removed, expiredSeen bool
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
			removed = true
			oldValue = old.Value()
			return old, false
		}, a.onCapacityEvict)
		if expiredSeen {
			a.emitExpired(ctx, key, oldValue)
		}
		if removed {
			a.emitRemoved(ctx, key, oldValue)
			a.recordRemoval()
		}
	}
	return werr
}

// RemoveAllEntries enumerates every currently-stored key and removes it,
// firing REMOVED for each still-live entry.
func (a *adapter[K, V]) RemoveAllEntries(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if isReentrant(ctx) {
		return ErrReentrant
	}
	return a.RemoveAll(ctx, a.store.Keys())
}

// Clear atomically discards every entry. Per the contract, bulk discard
// is not eviction: no events, no counters.
func (a *adapter[K, V]) Clear(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if isReentrant(ctx) {
		return ErrReentrant
	}
	a.store.Clear()
	return nil
}

// valuesEqual compares two values by == when V's dynamic type supports
// it, falling back to reflect.DeepEqual for maps/slices/funcs so
// RemoveIfMatches/ReplaceIfMatches never panic on valid, non-comparable
// input.
func valuesEqual[V any](a, b V) bool {
	av, bv := any(a), any(b)
	if t := reflect.TypeOf(av); t == nil || !t.Comparable() {
		return reflect.DeepEqual(av, bv)
	}
	return av == bv
}
