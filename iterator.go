package cache

// Iterator traverses a cache's live entries. Expired entries are removed
// in place as they're encountered, never yielded. It is not safe for
// concurrent use by multiple goroutines, and does not reflect insertions
// that happen after it is created.
type Iterator[K comparable, V any] interface {
	// HasNext reports whether a further call to Next will yield an entry.
	// It may skip and evict expired entries as a side effect.
	HasNext() bool

	// Next returns the next live entry. ok is false once exhausted.
	Next() (key K, value V, ok bool)

	// Remove removes the most recently yielded key via the standard
	// remove path (write-through, events, statistics). It is an error to
	// call Remove before the first Next or twice in a row.
	Remove() error
}
