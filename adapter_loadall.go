package cache

import (
	"context"

	"github.com/go-contract-cache/cache/internal/entry"
)

// LoadAll asynchronously fetches keys via the loader, skipping those
// already present and non-expired unless replaceExisting is true. The
// call returns immediately; listener is notified exactly once when the
// background task finishes.
func (a *adapter[K, V]) LoadAll(ctx context.Context, keys []K, replaceExisting bool, listener CompletionListener) {
	if a.closed.Load() {
		if listener != nil {
			listener.OnException(ErrClosed)
		}
		return
	}
	go a.runLoadAll(ctx, keys, replaceExisting, listener)
}

func (a *adapter[K, V]) runLoadAll(ctx context.Context, keys []K, replaceExisting bool, listener CompletionListener) {
	defer func() {
		if r := recover(); r != nil {
			if listener != nil {
				listener.OnException(panicToError(r))
			}
		}
	}()

	toLoad := make([]K, 0, len(keys))
	t := now()
	for _, k := range keys {
		if replaceExisting {
			toLoad = append(toLoad, k)
			continue
		}
		existing, found := a.store.Get(k)
		if !found || existing.Expired(t) {
			toLoad = append(toLoad, k)
		}
	}
	if len(toLoad) == 0 {
		if listener != nil {
			listener.OnCompletion()
		}
		return
	}

	var loaded map[K]V
	if bl, ok := a.cfg.loader.(BatchLoader[K, V]); ok {
		m, err := bl.LoadAll(ctx, toLoad)
		if err != nil {
			if listener != nil {
				listener.OnException(&LoaderError[K]{Cause: err})
			}
			return
		}
		loaded = m
	} else {
		loaded = make(map[K]V, len(toLoad))
		for _, k := range toLoad {
			v, found, err := a.cfg.loader.Load(ctx, k)
			if err != nil {
				if listener != nil {
					listener.OnException(&LoaderError[K]{Key: k, Cause: err})
				}
				return
			}
			if found {
				loaded[k] = v
			}
		}
	}

	for k, v := range loaded {
		storedValue, cerr := a.copyIn(v)
		if cerr != nil {
			if listener != nil {
				listener.OnException(cerr)
			}
			return
		}

		discarded := false
		now := now()
		a.store.Compute(k, func(old entry.Expirable[V], ok bool) (entry.Expirable[V], bool) {
			if ok && !old.Expired(now) && !replaceExisting {
				discarded = true
				return old, true
			}
			creationDur := a.calc.OnCreation(k, v)
			expireNano := creationDur.Resolve(now, 0, true)
			return entry.New(storedValue, expireNano), true
		}, a.onCapacityEvict)
		if !discarded {
			a.recordPut()
			a.emitCreated(ctx, k, v)
		}
	}

	if listener != nil {
		listener.OnCompletion()
	}
}
