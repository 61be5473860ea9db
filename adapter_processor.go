package cache

import (
	"context"
	"fmt"

	"github.com/go-contract-cache/cache/internal/entry"
)

type invokeAccounting uint8

const (
	acctNone invokeAccounting = iota
	acctHit
	acctMiss
)

// Invoke runs processor against key's MutableEntry, committing whatever
// the processor staged (write, removal, or neither) atomically. See
// §4.6.10: a pre-compute loader probe on miss/expired, then the
// processor body runs synchronously inside the atomic region under the
// reentrancy guard.
func (a *adapter[K, V]) Invoke(ctx context.Context, key K, processor EntryProcessor[K, V, any], args ...any) (any, error) {
	if err := a.validate(ctx, key, false, nil); err != nil {
		return nil, err
	}
	t := now()

	var loadedValue V
	var loaded bool
	if a.cfg.readThrough {
		probeEntry, probeFound := a.store.Get(key)
		if !probeFound || probeEntry.Expired(t) {
			v, found, lerr := a.cfg.loader.Load(ctx, key)
			if lerr != nil {
				return nil, &LoaderError[K]{Key: key, Cause: lerr}
			}
			if found {
				loadedValue = v
				loaded = true
			}
		}
	}

	var expiredSeen bool
	var expiredOldValue V
	var acct invokeAccounting
	var wroteNew bool
	var removedOld bool
	var newValue V
	var oldValueForEvent V
	var hadOldValueForEvent bool
	var procErr error
	var procResult any

	guardedCtx := withReentrancyGuard(ctx)

	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		presentNonExpired := ok && !old.Expired(t)
		var originalValue V
		var originalExists bool
		usedLoad := false
		switch {
		case presentNonExpired:
			originalValue = old.Value()
			originalExists = true
		default:
			if ok {
				expiredSeen = true
				expiredOldValue = old.Value()
			}
			if loaded {
				originalValue = loadedValue
				originalExists = true
				usedLoad = true
			}
		}

		// GetValue must never hand the processor an alias into the store;
		// copy out the same way Get does before exposing it.
		viewValue := originalValue
		if originalExists {
			if c, err := a.copyOut(originalValue); err == nil {
				viewValue = c
			}
		}
		adp := entry.NewAdapter[K, V](key, viewValue, originalExists)

		func() {
			defer func() {
				if r := recover(); r != nil {
					procErr = panicToError(r)
				}
			}()
			procResult, procErr = processor(guardedCtx, adp, args...)
		}()

		if procErr == nil && adp.ValueSet() && isNilValue(adp.NewValue()) {
			procErr = ErrNullValue
		}

		if procErr != nil {
			// Keep a live pre-call slot as it was; an expired slot is
			// dropped, as on any other access that observes it.
			return old, ok && presentNonExpired
		}

		// Only a processor that actually called GetValue counts as a read
		// attempt for hit/miss accounting, mirroring wasValueAccessed in
		// the contract this adapter implements: a write- or remove-only
		// processor never touches the hit/miss counters.
		if adp.ValueAccessed() {
			if originalExists {
				if usedLoad {
					acct = acctMiss
				} else {
					acct = acctHit
				}
			} else {
				acct = acctMiss
			}
		}

		switch {
		case adp.Removed():
			if !presentNonExpired {
				return old, false
			}
			removedOld = true
			oldValueForEvent = originalValue
			hadOldValueForEvent = true
			return old, false
		case adp.ValueSet():
			newValue = adp.NewValue()
			storedValue, cerr := a.copyIn(newValue)
			if cerr != nil {
				procErr = cerr
				return old, ok && presentNonExpired
			}
			wroteNew = true
			if presentNonExpired {
				oldValueForEvent = originalValue
				hadOldValueForEvent = true
				updateDur := a.calc.OnUpdate(key, newValue)
				expireNano := updateDur.Resolve(t, old.ExpireNano(), false)
				return entry.New(storedValue, expireNano), true
			}
			creationDur := a.calc.OnCreation(key, newValue)
			expireNano := creationDur.Resolve(t, 0, true)
			return entry.New(storedValue, expireNano), true
		case usedLoad:
			storedValue, cerr := a.copyIn(loadedValue)
			if cerr != nil {
				procErr = cerr
				return old, ok && presentNonExpired
			}
			newValue = loadedValue
			wroteNew = true
			creationDur := a.calc.OnCreation(key, loadedValue)
			expireNano := creationDur.Resolve(t, 0, true)
			return entry.New(storedValue, expireNano), true
		default:
			return old, presentNonExpired
		}
	}, a.onCapacityEvict)

	if expiredSeen {
		a.emitExpired(ctx, key, expiredOldValue)
	}

	if procErr != nil {
		return nil, &ProcessorError[K]{Key: key, Cause: procErr}
	}

	switch {
	case removedOld:
		a.emitRemoved(ctx, key, oldValueForEvent)
		a.recordRemoval()
	case wroteNew && hadOldValueForEvent:
		a.emitUpdated(ctx, key, oldValueForEvent, newValue)
		a.recordPut()
	case wroteNew:
		a.emitCreated(ctx, key, newValue)
		a.recordPut()
	}

	switch acct {
	case acctHit:
		a.recordHit()
	case acctMiss:
		a.recordMiss()
	}

	return procResult, nil
}

// InvokeAll runs Invoke independently per key; one key's failure never
// stops the batch.
func (a *adapter[K, V]) InvokeAll(ctx context.Context, keys []K, processor EntryProcessor[K, V, any], args ...any) map[K]InvokeResult {
	out := make(map[K]InvokeResult, len(keys))
	for _, key := range keys {
		v, err := a.Invoke(ctx, key, processor, args...)
		out[key] = InvokeResult{Value: v, Err: err}
	}
	return out
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicError{r}
}

type panicError struct{ v any }

func (p *panicError) Error() string { return fmt.Sprintf("cache: processor panicked: %v", p.v) }
