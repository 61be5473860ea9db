package cache

import (
	"context"

	"github.com/go-contract-cache/cache/internal/entry"
)

// Replace updates key to value only if key currently exists (and is not
// expired). The writer is invoked only when the replace would succeed,
// requiring a pre-probe; the atomic compute enforces the actual condition.
func (a *adapter[K, V]) Replace(ctx context.Context, key K, value V) (bool, error) {
	if err := a.validate(ctx, key, true, value); err != nil {
		return false, err
	}
	t := now()

	probeEntry, probeFound := a.store.Get(key)
	probeExists := probeFound && !probeEntry.Expired(t)
	if probeExists {
		if werr := a.writeOne(ctx, key, value); werr != nil {
			return false, werr
		}
	}

	storedValue, cerr := a.copyIn(value)
	if cerr != nil {
		return false, cerr
	}

	var replaced, expiredSeen bool
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
		replaced = true
		oldValue = old.Value()
		updateDur := a.calc.OnUpdate(key, value)
		expireNano := updateDur.Resolve(t, old.ExpireNano(), false)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	if replaced {
		a.emitUpdated(ctx, key, oldValue, value)
		a.recordPut()
		a.recordHit()
		return true, nil
	}
	a.recordMiss()
	return false, nil
}

// ReplaceIfMatches updates key to newValue only if its current value
// equals oldValue.
func (a *adapter[K, V]) ReplaceIfMatches(ctx context.Context, key K, oldValue, newValue V) (bool, error) {
	if err := a.validate(ctx, key, true, newValue); err != nil {
		return false, err
	}
	t := now()

	probeEntry, probeFound := a.store.Get(key)
	probeMatches := probeFound && !probeEntry.Expired(t) && valuesEqual(probeEntry.Value(), oldValue)
	if probeMatches {
		if werr := a.writeOne(ctx, key, newValue); werr != nil {
			return false, werr
		}
	}

	storedValue, cerr := a.copyIn(newValue)
	if cerr != nil {
		return false, cerr
	}

	var replaced, expiredSeen bool
	var priorValue V
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if !ok {
			return old, false
		}
		if old.Expired(t) {
			expiredSeen = true
			priorValue = old.Value()
			return old, false
		}
		if !valuesEqual(old.Value(), oldValue) {
			return old, true
		}
		replaced = true
		priorValue = old.Value()
		updateDur := a.calc.OnUpdate(key, newValue)
		expireNano := updateDur.Resolve(t, old.ExpireNano(), false)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, priorValue)
	}
	if replaced {
		a.emitUpdated(ctx, key, priorValue, newValue)
		a.recordPut()
		a.recordHit()
		return true, nil
	}
	a.recordMiss()
	return false, nil
}

func (a *adapter[K, V]) GetAndReplace(ctx context.Context, key K, value V) (V, bool, error) {
	var zero V
	if err := a.validate(ctx, key, true, value); err != nil {
		return zero, false, err
	}
	t := now()

	probeEntry, probeFound := a.store.Get(key)
	probeExists := probeFound && !probeEntry.Expired(t)
	if probeExists {
		if werr := a.writeOne(ctx, key, value); werr != nil {
			return zero, false, werr
		}
	}

	storedValue, cerr := a.copyIn(value)
	if cerr != nil {
		return zero, false, cerr
	}

	var replaced, expiredSeen bool
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
		replaced = true
		oldValue = old.Value()
		updateDur := a.calc.OnUpdate(key, value)
		expireNano := updateDur.Resolve(t, old.ExpireNano(), false)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	if replaced {
		a.emitUpdated(ctx, key, oldValue, value)
		a.recordPut()
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
