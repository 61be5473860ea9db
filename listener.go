package cache

import "github.com/go-contract-cache/cache/event"

// Kind identifies one of the four event kinds a listener can subscribe to.
type Kind = event.Kind

const (
	Created = event.Created
	Updated = event.Updated
	Removed = event.Removed
	Expired = event.Expired
)

// Event describes one committed transition delivered to a listener. Old
// and new values are always copies, never aliases into the store.
type Event[K comparable, V any] = event.Event[K, V]

// Listener receives batches of events of kinds it registered for.
type Listener[K comparable, V any] = event.Listener[K, V]
