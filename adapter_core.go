package cache

import (
	"context"
	"fmt"
	"hash/maphash"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/go-contract-cache/cache/event"
	"github.com/go-contract-cache/cache/expiry"
	"github.com/go-contract-cache/cache/internal/entry"
	"github.com/go-contract-cache/cache/internal/store"
	"github.com/go-contract-cache/cache/stats"
)

type reentrancyKey struct{}

// withReentrancyGuard marks ctx so nested cache calls from inside an
// entry-processor body fail fast with ErrReentrant. Go has no
// thread-locals; a context value propagated into the processor call is
// the closest equivalent, and is sufficient because a processor body
// always runs synchronously on the caller's goroutine, never fanned out.
func withReentrancyGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, reentrancyKey{}, true)
}

func isReentrant(ctx context.Context) bool {
	v, _ := ctx.Value(reentrancyKey{}).(bool)
	return v
}

type adapter[K comparable, V any] struct {
	cfg   *Config[K, V]
	store *store.Store[K, V]
	calc  *expiry.Calculator[K, V]
	disp  *event.Dispatcher[K, V]
	sts   *stats.Counters

	sf     singleflight.Group
	sfSeed maphash.Seed

	writeBack *writeBackWorker[K, V]

	closed atomic.Bool
	logger *slog.Logger

	manager *Manager[K, V]
}

// New builds a Cache from opts. WithExpiryPolicy is required; every other
// option has a usable default.
func New[K comparable, V any](opts ...Option[K, V]) (Cache[K, V], error) {
	cfg, err := build(opts...)
	if err != nil {
		return nil, err
	}
	return newAdapter(cfg), nil
}

func newAdapter[K comparable, V any](cfg *Config[K, V]) *adapter[K, V] {
	var weigher store.Weigher[K, V]
	if cfg.weigher != nil {
		weigher = store.Weigher[K, V](cfg.weigher)
	}
	st := store.New[K, V](store.Options[K, V]{
		Shards:     cfg.shards,
		MaxEntries: cfg.maximumEntries,
		MaxWeight:  cfg.maximumWeight,
		Weigher:    weigher,
		Policy:     cfg.evictionKind,
	})

	a := &adapter[K, V]{
		cfg:    cfg,
		store:  st,
		calc:   expiry.New[K, V](cfg.expiryPolicy),
		disp:   event.New[K, V](slog.Default()),
		logger: slog.Default(),
		sfSeed: maphash.MakeSeed(),
	}
	if cfg.statisticsEnabled {
		a.sts = &stats.Counters{}
	}
	for _, lc := range cfg.listeners {
		a.disp.Register(event.Registration[K, V]{
			Listener:         lc.listener,
			Kinds:            lc.kinds,
			Synchronous:      lc.synchronous,
			OldValueRequired: lc.oldValueRequired,
		})
	}
	if cfg.writeThrough && cfg.writeBack {
		a.writeBack = newWriteBackWorker[K, V](cfg.writer, a.logger)
	}
	return a
}

func (a *adapter[K, V]) Name() string { return a.cfg.name }

func (a *adapter[K, V]) IsClosed() bool { return a.closed.Load() }

func (a *adapter[K, V]) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if a.writeBack != nil {
		a.writeBack.Close()
	}
	a.disp.Close()
	return nil
}

func (a *adapter[K, V]) Statistics() stats.Snapshot {
	if a.sts == nil {
		return stats.Snapshot{}
	}
	return a.sts.Snapshot()
}

func (a *adapter[K, V]) Unwrap() any { return a.store }

func (a *adapter[K, V]) RegisterListener(listener Listener[K, V], synchronous, oldValueRequired bool, kinds ...Kind) event.Token {
	set := make(map[event.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return a.disp.Register(event.Registration[K, V]{
		Listener:         listener,
		Kinds:            set,
		Synchronous:      synchronous,
		OldValueRequired: oldValueRequired,
	})
}

func (a *adapter[K, V]) DeregisterListener(token event.Token) { a.disp.Deregister(token) }

// validate enforces invariant I1: validation first, in order.
func (a *adapter[K, V]) validate(ctx context.Context, key any, requireValue bool, value any) error {
	if isNilValue(key) {
		return ErrNullKey
	}
	if requireValue && isNilValue(value) {
		return ErrNullValue
	}
	if a.closed.Load() {
		return ErrClosed
	}
	if isReentrant(ctx) {
		return ErrReentrant
	}
	return nil
}

func (a *adapter[K, V]) recordHit() {
	if a.sts != nil {
		a.sts.RecordHit()
	}
}
func (a *adapter[K, V]) recordMiss() {
	if a.sts != nil {
		a.sts.RecordMiss()
	}
}
func (a *adapter[K, V]) recordPut() {
	if a.sts != nil {
		a.sts.RecordPut()
	}
}
func (a *adapter[K, V]) recordRemoval() {
	if a.sts != nil {
		a.sts.RecordRemoval()
	}
}
func (a *adapter[K, V]) recordEviction() {
	if a.sts != nil {
		a.sts.RecordEviction()
	}
}

func (a *adapter[K, V]) copyOut(v V) (V, error) {
	out, err := a.cfg.copier.Copy(v)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return out, nil
}

func (a *adapter[K, V]) copyIn(v V) (V, error) { return a.copyOut(v) }

// emitExpired dispatches a single EXPIRED event for key/oldValue and
// increments the eviction counter. Call this whenever compute observed an
// expired slot, regardless of what happened next.
func (a *adapter[K, V]) emitExpired(ctx context.Context, key K, oldValue V) {
	a.recordEviction()
	oldCopy, err := a.copyOut(oldValue)
	if err != nil {
		a.logger.Error("cache: failed to copy expired value for event dispatch", "key", key, "err", err)
		oldCopy = oldValue
	}
	a.disp.Dispatch(ctx, event.Expired, []event.Event[K, V]{{
		Kind:              event.Expired,
		Key:               key,
		OldValue:          oldCopy,
		OldValueAvailable: true,
	}})
}

func (a *adapter[K, V]) emitCreated(ctx context.Context, key K, newValue V) {
	newCopy, err := a.copyOut(newValue)
	if err != nil {
		newCopy = newValue
	}
	a.disp.Dispatch(ctx, event.Created, []event.Event[K, V]{{
		Kind:              event.Created,
		Key:               key,
		NewValue:          newCopy,
		OldValueAvailable: false,
	}})
}

func (a *adapter[K, V]) emitUpdated(ctx context.Context, key K, oldValue, newValue V) {
	oldCopy, err := a.copyOut(oldValue)
	if err != nil {
		oldCopy = oldValue
	}
	newCopy, err := a.copyOut(newValue)
	if err != nil {
		newCopy = newValue
	}
	a.disp.Dispatch(ctx, event.Updated, []event.Event[K, V]{{
		Kind:              event.Updated,
		Key:               key,
		OldValue:          oldCopy,
		NewValue:          newCopy,
		OldValueAvailable: true,
	}})
}

func (a *adapter[K, V]) emitRemoved(ctx context.Context, key K, oldValue V) {
	oldCopy, err := a.copyOut(oldValue)
	if err != nil {
		oldCopy = oldValue
	}
	a.disp.Dispatch(ctx, event.Removed, []event.Event[K, V]{{
		Kind:              event.Removed,
		Key:               key,
		OldValue:          oldCopy,
		OldValueAvailable: true,
	}})
}

func now() time.Time { return time.Now() }

// onCapacityEvict is passed to store.Compute so size/weight evictions are
// counted. The adopted interpretation (spec's open question) is that
// capacity evictions count but emit no events.
func (a *adapter[K, V]) onCapacityEvict(key K, old entry.Expirable[V]) {
	a.recordEviction()
}
