// Package cache implements an in-process, generic key/value cache with
// per-entry expiration, by-value semantics, event notification,
// statistics, read-through loading, write-through persistence, and
// atomic entry-processor operations.
package cache

import (
	"context"

	"github.com/go-contract-cache/cache/event"
	"github.com/go-contract-cache/cache/stats"
)

// Cache is the full adapter surface. All operations take a context for
// the loader/writer I/O they may perform; the context is not used for
// cancellation of the atomic compute itself, which never blocks.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool, error)
	GetAll(ctx context.Context, keys []K) (map[K]V, error)
	ContainsKey(ctx context.Context, key K) (bool, error)

	Put(ctx context.Context, key K, value V) error
	PutAll(ctx context.Context, entries map[K]V) error
	PutIfAbsent(ctx context.Context, key K, value V) (bool, error)
	GetAndPut(ctx context.Context, key K, value V) (V, bool, error)

	Remove(ctx context.Context, key K) (bool, error)
	RemoveIfMatches(ctx context.Context, key K, value V) (bool, error)
	GetAndRemove(ctx context.Context, key K) (V, bool, error)

	Replace(ctx context.Context, key K, value V) (bool, error)
	ReplaceIfMatches(ctx context.Context, key K, oldValue, newValue V) (bool, error)
	GetAndReplace(ctx context.Context, key K, value V) (V, bool, error)

	RemoveAll(ctx context.Context, keys []K) error
	RemoveAllEntries(ctx context.Context) error
	Clear(ctx context.Context) error

	Invoke(ctx context.Context, key K, processor EntryProcessor[K, V, any], args ...any) (any, error)
	InvokeAll(ctx context.Context, keys []K, processor EntryProcessor[K, V, any], args ...any) map[K]InvokeResult

	LoadAll(ctx context.Context, keys []K, replaceExisting bool, listener CompletionListener)

	Iterator(ctx context.Context) (Iterator[K, V], error)

	RegisterListener(listener Listener[K, V], synchronous, oldValueRequired bool, kinds ...Kind) event.Token
	DeregisterListener(token event.Token)

	Close() error
	IsClosed() bool
	Name() string
	Statistics() stats.Snapshot
	Unwrap() any
}

// InvokeResult is the outcome of one key's Invoke inside an InvokeAll
// batch: either Value holding the processor's return, or Err holding that
// key's processor failure. A key's failure never affects other keys.
type InvokeResult struct {
	Value any
	Err   error
}
