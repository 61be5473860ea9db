package cache

import (
	"context"
	"errors"

	"github.com/go-contract-cache/cache/internal/entry"
)

type putTransition uint8

const (
	putCreated putTransition = iota
	putUpdated
)

// doPut runs the shared put logic for Put/GetAndPut: write-through, then
// the atomic compute choosing CREATE vs UPDATE. Events and statistics are
// left to the caller. It returns the transition taken, whether an expired
// slot was observed/replaced, and the pre-existing value (for GetAndPut).
func (a *adapter[K, V]) doPut(ctx context.Context, key K, value V) (transition putTransition, expiredSeen bool, oldValue V, hadOld bool, err error) {
	if werr := a.writeOne(ctx, key, value); werr != nil {
		return 0, false, oldValue, false, werr
	}
	storedValue, cerr := a.copyIn(value)
	if cerr != nil {
		return 0, false, oldValue, false, cerr
	}
	t := now()
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if ok && !old.Expired(t) {
			transition = putUpdated
			oldValue = old.Value()
			hadOld = true
			updateDur := a.calc.OnUpdate(key, value)
			expireNano := updateDur.Resolve(t, old.ExpireNano(), false)
			return entry.New(storedValue, expireNano), true
		}
		if ok {
			expiredSeen = true
			oldValue = old.Value()
		}
		transition = putCreated
		creationDur := a.calc.OnCreation(key, value)
		expireNano := creationDur.Resolve(t, 0, true)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)
	return transition, expiredSeen, oldValue, hadOld, nil
}

func (a *adapter[K, V]) Put(ctx context.Context, key K, value V) error {
	if err := a.validate(ctx, key, true, value); err != nil {
		return err
	}
	transition, expiredSeen, oldValue, _, err := a.doPut(ctx, key, value)
	if err != nil {
		return err
	}
	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	switch transition {
	case putCreated:
		a.emitCreated(ctx, key, value)
	case putUpdated:
		a.emitUpdated(ctx, key, oldValue, value)
	}
	a.recordPut()
	return nil
}

func (a *adapter[K, V]) GetAndPut(ctx context.Context, key K, value V) (V, bool, error) {
	var zero V
	if err := a.validate(ctx, key, true, value); err != nil {
		return zero, false, err
	}
	transition, expiredSeen, oldValue, hadOld, err := a.doPut(ctx, key, value)
	if err != nil {
		return zero, false, err
	}
	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	switch transition {
	case putCreated:
		a.emitCreated(ctx, key, value)
		a.recordMiss()
	case putUpdated:
		a.emitUpdated(ctx, key, oldValue, value)
		a.recordHit()
	}
	a.recordPut()
	if !hadOld {
		return zero, false, nil
	}
	out, cerr := a.copyOut(oldValue)
	if cerr != nil {
		return zero, false, cerr
	}
	return out, true, nil
}

func (a *adapter[K, V]) PutAll(ctx context.Context, entries map[K]V) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if isReentrant(ctx) {
		return ErrReentrant
	}
	for k, v := range entries {
		if isNilValue(k) {
			return ErrNullKey
		}
		if isNilValue(v) {
			return ErrNullValue
		}
	}

	failed, werr := a.writeBatch(ctx, entries)
	failedSet := make(map[K]bool, len(failed))
	for _, k := range failed {
		failedSet[k] = true
	}

	for k, v := range entries {
		if failedSet[k] {
			continue
		}
		transition, expiredSeen, oldValue, _, perr := a.doPutNoWrite(ctx, k, v)
		if perr != nil {
			if werr != nil {
				werr = errors.Join(werr, perr)
			} else {
				werr = perr
			}
			continue
		}
		if expiredSeen {
			a.emitExpired(ctx, k, oldValue)
		}
		switch transition {
		case putCreated:
			a.emitCreated(ctx, k, v)
		case putUpdated:
			a.emitUpdated(ctx, k, oldValue, v)
		}
		a.recordPut()
	}
	return werr
}

// doPutNoWrite is doPut's atomic-compute half without the write-through
// call, used by batch operations that already ran the writer's batch hook
// once, up front.
func (a *adapter[K, V]) doPutNoWrite(ctx context.Context, key K, value V) (transition putTransition, expiredSeen bool, oldValue V, hadOld bool, err error) {
	storedValue, cerr := a.copyIn(value)
	if cerr != nil {
		return 0, false, oldValue, false, cerr
	}
	t := now()
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if ok && !old.Expired(t) {
			transition = putUpdated
			oldValue = old.Value()
			hadOld = true
			updateDur := a.calc.OnUpdate(key, value)
			expireNano := updateDur.Resolve(t, old.ExpireNano(), false)
			return entry.New(storedValue, expireNano), true
		}
		if ok {
			expiredSeen = true
			oldValue = old.Value()
		}
		transition = putCreated
		creationDur := a.calc.OnCreation(key, value)
		expireNano := creationDur.Resolve(t, 0, true)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)
	return transition, expiredSeen, oldValue, hadOld, nil
}

// PutIfAbsent inserts value only if key is absent or expired. It probes
// up front to decide whether to call the writer (per §4.6.4's documented
// race: a wasted writer call can occur under contention, but the store
// stays consistent either way).
func (a *adapter[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (bool, error) {
	if err := a.validate(ctx, key, true, value); err != nil {
		return false, err
	}
	t := now()

	probeEntry, probeFound := a.store.Get(key)
	probeAbsentOrExpired := !probeFound || probeEntry.Expired(t)

	if probeAbsentOrExpired {
		if werr := a.writeOne(ctx, key, value); werr != nil {
			return false, werr
		}
	}

	storedValue, cerr := a.copyIn(value)
	if cerr != nil {
		return false, cerr
	}

	var inserted, expiredSeen bool
	var oldValue V
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if ok && !old.Expired(t) {
			return old, true
		}
		if ok {
			expiredSeen = true
			oldValue = old.Value()
		}
		inserted = true
		creationDur := a.calc.OnCreation(key, value)
		expireNano := creationDur.Resolve(t, 0, true)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	if inserted {
		a.emitCreated(ctx, key, value)
		a.recordPut()
		a.recordMiss()
		return true, nil
	}
	a.recordHit()
	return false, nil
}
