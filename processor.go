package cache

import "context"

// MutableEntry is the staging view an EntryProcessor manipulates. Reads
// and writes against it never touch the backend directly; the adapter
// commits the final state only after the processor body returns.
type MutableEntry[K comparable, V any] interface {
	// Key returns the key being processed.
	Key() K

	// GetValue returns the current staged value: the most recent
	// SetValue, the zero value if Remove was called, else the value the
	// processor started with. Calling it counts as a read for accounting.
	GetValue() V

	// Exists reports whether the staged view currently has a value.
	Exists() bool

	// SetValue stages a write, superseding any prior Remove.
	SetValue(v V)

	// Remove stages a removal, superseding any prior SetValue.
	Remove()
}

// EntryProcessor is a caller-supplied function invoked synchronously,
// once, against one key's MutableEntry. Its return value is threaded back
// out through Invoke/InvokeAll; args are passed through unmodified. ctx
// carries the reentrancy guard: a processor that uses ctx to call back
// into the same cache gets ErrReentrant instead of deadlocking or
// corrupting the atomic region.
type EntryProcessor[K comparable, V any, T any] func(ctx context.Context, entry MutableEntry[K, V], args ...any) (T, error)
