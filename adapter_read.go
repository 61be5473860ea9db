package cache

import (
	"context"
	"hash/maphash"
	"strconv"
	"time"

	"github.com/go-contract-cache/cache/internal/entry"
)

func (a *adapter[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := a.validate(ctx, key, false, nil); err != nil {
		return zero, false, err
	}

	type result struct {
		hit         bool
		expiredSeen bool
		oldValue    V
		value       V
	}
	var res result

	t := now()
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if !ok {
			return old, false
		}
		if old.Expired(t) {
			res.expiredSeen = true
			res.oldValue = old.Value()
			return old, false
		}
		res.hit = true
		res.value = old.Value()
		accessDur := a.calc.OnAccess(key, old.Value())
		newExpire := accessDur.Resolve(t, old.ExpireNano(), false)
		if newExpire == old.ExpireNano() {
			return old, true
		}
		return old.WithExpireNano(newExpire), true
	}, a.onCapacityEvict)

	if res.expiredSeen {
		a.emitExpired(ctx, key, res.oldValue)
	}

	if res.hit {
		a.store.Touch(key)
		a.recordHit()
		out, err := a.copyOut(res.value)
		if err != nil {
			return zero, false, err
		}
		if a.cfg.refreshHook != nil {
			a.cfg.refreshHook.OnAccess(key, out)
		}
		return out, true, nil
	}

	return a.getMiss(ctx, key, t)
}

// getMiss handles the miss path (absent or expired) for Get: load via the
// loader if read-through is configured, otherwise just record the miss.
func (a *adapter[K, V]) getMiss(ctx context.Context, key K, t time.Time) (V, bool, error) {
	var zero V
	if !a.cfg.readThrough {
		a.recordMiss()
		return zero, false, nil
	}

	// Key the singleflight group on K's actual hash, not its %v rendering:
	// two distinct keys can format identically (a stringer yielding "1" vs
	// the int 1), which would otherwise coalesce their loads together.
	sfKey := strconv.FormatUint(maphash.Comparable(a.sfSeed, key), 36)
	loadedAny, err, _ := a.sf.Do(sfKey, func() (any, error) {
		v, found, lerr := a.cfg.loader.Load(ctx, key)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, nil
		}
		return v, nil
	})
	if err != nil {
		a.recordMiss()
		return zero, false, &LoaderError[K]{Key: key, Cause: err}
	}
	if loadedAny == nil {
		a.recordMiss()
		return zero, false, nil
	}
	loaded := loadedAny.(V)
	a.recordMiss()

	storedValue, cerr := a.copyIn(loaded)
	if cerr != nil {
		return zero, false, cerr
	}

	discarded := false
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if ok && !old.Expired(t) {
			discarded = true
			return old, true
		}
		creationDur := a.calc.OnCreation(key, loaded)
		expireNano := creationDur.Resolve(t, 0, true)
		return entry.New(storedValue, expireNano), true
	}, a.onCapacityEvict)

	if !discarded {
		a.recordPut()
		a.emitCreated(ctx, key, loaded)
	}

	out, cerr := a.copyOut(loaded)
	if cerr != nil {
		return zero, false, cerr
	}
	return out, true, nil
}

func (a *adapter[K, V]) GetAll(ctx context.Context, keys []K) (map[K]V, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if isReentrant(ctx) {
		return nil, ErrReentrant
	}
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		v, ok, err := a.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

func (a *adapter[K, V]) ContainsKey(ctx context.Context, key K) (bool, error) {
	if err := a.validate(ctx, key, false, nil); err != nil {
		return false, err
	}
	t := now()
	var expiredSeen bool
	var oldValue V
	var exists bool
	a.store.Compute(key, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
		if !ok {
			return old, false
		}
		if old.Expired(t) {
			expiredSeen = true
			oldValue = old.Value()
			return old, false
		}
		exists = true
		return old, true
	}, a.onCapacityEvict)
	if expiredSeen {
		a.emitExpired(ctx, key, oldValue)
	}
	return exists, nil
}
