package cache

import (
	"context"

	"github.com/google/uuid"

	"github.com/go-contract-cache/cache/copier"
	"github.com/go-contract-cache/cache/eviction"
)

// Loader performs read-through fetches. LoadAll is optional; when a
// Loader implements it, batch operations prefer it over per-key Load.
type Loader[K comparable, V any] interface {
	Load(ctx context.Context, key K) (V, bool, error)
}

// BatchLoader is the optional batch-preferred extension to Loader.
type BatchLoader[K comparable, V any] interface {
	LoadAll(ctx context.Context, keys []K) (map[K]V, error)
}

// Writer performs write-through persistence. WriteAll/DeleteAll are
// optional batch-preferred extensions.
type Writer[K comparable, V any] interface {
	Write(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
}

// BatchWriter is the optional batch-preferred extension to Writer. On
// partial failure, FailedKeys must name only the keys that are still
// unwritten/undeleted.
type BatchWriter[K comparable, V any] interface {
	WriteAll(ctx context.Context, entries map[K]V) (failedKeys []K, err error)
	DeleteAll(ctx context.Context, keys []K) (failedKeys []K, err error)
}

// ExpiryPolicy supplies the three expiry callbacks the adapter consults
// on creation, update, and access.
type ExpiryPolicy[K comparable, V any] interface {
	ExpiryForCreation(key K, value V) Duration
	ExpiryForUpdate(key K, value V) Duration
	ExpiryForAccess(key K, value V) Duration
}

// Weigher computes the weight of a key/value pair, required when
// WithMaximumWeight is used.
type Weigher[K comparable, V any] func(key K, value V) int64

// CompletionListener is notified exactly once when a LoadAll call's
// background task finishes, successfully or not.
type CompletionListener interface {
	OnCompletion()
	OnException(err error)
}

// RefreshHook is a supplemental, best-effort hook fired after a
// successful Get, before the call returns, letting callers schedule an
// async refresh without blocking the read. It is not part of the
// contract's required surface.
type RefreshHook[K comparable, V any] interface {
	OnAccess(key K, value V)
}

// Config is the immutable, validated configuration a Cache is built
// from. Build it with New(opts...).
type Config[K comparable, V any] struct {
	name string

	copier Copier[V]

	expiryPolicy ExpiryPolicy[K, V]

	statisticsEnabled bool

	readThrough bool
	loader      Loader[K, V]

	writeThrough bool
	writer       Writer[K, V]
	writeBack    bool

	maximumEntries int64
	maximumWeight  int64
	weigher        Weigher[K, V]
	evictionKind   eviction.Kind
	shards         int

	refreshHook RefreshHook[K, V]

	listeners []listenerConfig[K, V]
}

// Copier is re-exported from the copier package so callers configuring
// a cache don't need a second import for the common case.
type Copier[V any] interface {
	Copy(v V) (V, error)
}

type listenerConfig[K comparable, V any] struct {
	listener         Listener[K, V]
	kinds            map[Kind]bool
	synchronous      bool
	oldValueRequired bool
}

// Option configures a Config. Build with New.
type Option[K comparable, V any] func(*Config[K, V])

// WithName sets the cache's name, otherwise a random UUID is assigned.
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(c *Config[K, V]) { c.name = name }
}

// WithExpiryPolicy sets the expiry policy. Required.
func WithExpiryPolicy[K comparable, V any](p ExpiryPolicy[K, V]) Option[K, V] {
	return func(c *Config[K, V]) { c.expiryPolicy = p }
}

// WithStoreByValue selects the Deep copier (default). Pass false for
// store-by-reference (Identity copier).
func WithStoreByValue[K comparable, V any](byValue bool) Option[K, V] {
	return func(c *Config[K, V]) {
		if byValue {
			c.copier = copier.Deep[V]{}
		} else {
			c.copier = copier.Identity[V]{}
		}
	}
}

// WithStatisticsEnabled turns on statistics recording.
func WithStatisticsEnabled[K comparable, V any](enabled bool) Option[K, V] {
	return func(c *Config[K, V]) { c.statisticsEnabled = enabled }
}

// WithReadThrough enables read-through loading via loader.
func WithReadThrough[K comparable, V any](loader Loader[K, V]) Option[K, V] {
	return func(c *Config[K, V]) {
		c.readThrough = true
		c.loader = loader
	}
}

// WithWriteThrough enables synchronous write-through persistence via writer.
func WithWriteThrough[K comparable, V any](writer Writer[K, V]) Option[K, V] {
	return func(c *Config[K, V]) {
		c.writeThrough = true
		c.writer = writer
		c.writeBack = false
	}
}

// WithWriteBack enables asynchronous, best-effort write propagation via
// writer instead of synchronous write-through. Supplemental: not part of
// the contract, grounded on the teacher's write-back worker.
func WithWriteBack[K comparable, V any](writer Writer[K, V]) Option[K, V] {
	return func(c *Config[K, V]) {
		c.writeThrough = true
		c.writer = writer
		c.writeBack = true
	}
}

// WithMaximumEntries caps the cache at n entries, evicted per evictionKind
// once exceeded. Mutually exclusive with WithMaximumWeight.
func WithMaximumEntries[K comparable, V any](n int64, kind eviction.Kind) Option[K, V] {
	return func(c *Config[K, V]) {
		c.maximumEntries = n
		c.evictionKind = kind
	}
}

// WithMaximumWeight caps the cache at total weight w, using weigher to
// price entries. Mutually exclusive with WithMaximumEntries.
func WithMaximumWeight[K comparable, V any](w int64, weigher Weigher[K, V], kind eviction.Kind) Option[K, V] {
	return func(c *Config[K, V]) {
		c.maximumWeight = w
		c.weigher = weigher
		c.evictionKind = kind
	}
}

// WithShards sets the store's shard count. Defaults to 16.
func WithShards[K comparable, V any](n int) Option[K, V] {
	return func(c *Config[K, V]) { c.shards = n }
}

// WithRefreshHook installs a supplemental refresh-ahead hook, fired after
// a successful Get.
func WithRefreshHook[K comparable, V any](hook RefreshHook[K, V]) Option[K, V] {
	return func(c *Config[K, V]) { c.refreshHook = hook }
}

// WithListener registers listener for the given event kinds.
func WithListener[K comparable, V any](listener Listener[K, V], synchronous, oldValueRequired bool, kinds ...Kind) Option[K, V] {
	return func(c *Config[K, V]) {
		set := make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			set[k] = true
		}
		c.listeners = append(c.listeners, listenerConfig[K, V]{
			listener:         listener,
			kinds:            set,
			synchronous:      synchronous,
			oldValueRequired: oldValueRequired,
		})
	}
}

// build applies opts over defaults and validates the result.
func build[K comparable, V any](opts ...Option[K, V]) (*Config[K, V], error) {
	c := &Config[K, V]{
		copier:       copier.Deep[V]{},
		evictionKind: eviction.LRU,
		shards:       16,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = uuid.NewString()
	}
	if c.expiryPolicy == nil {
		return nil, &ConfigError{Reason: "expiry policy is required"}
	}
	if c.readThrough && c.loader == nil {
		return nil, &ConfigError{Reason: "read-through requires a loader"}
	}
	if c.writeThrough && c.writer == nil {
		return nil, &ConfigError{Reason: "write-through requires a writer"}
	}
	if c.maximumEntries > 0 && c.maximumWeight > 0 {
		return nil, &ConfigError{Reason: "maximumEntries and maximumWeight are mutually exclusive"}
	}
	if c.maximumWeight > 0 && c.weigher == nil {
		return nil, &ConfigError{Reason: "maximumWeight requires a weigher"}
	}
	return c, nil
}

// ConfigError wraps ErrConfiguration with a human-readable reason.
type ConfigError struct{ Reason string }

func (e *ConfigError) Error() string { return "cache: invalid configuration: " + e.Reason }

func (e *ConfigError) Unwrap() error { return ErrConfiguration }
