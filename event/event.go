// Package event implements per-kind listener registration and in-order
// delivery, grounded on the copy-on-write registration list the original
// Java dispatcher used (CopyOnWriteArrayList) so registration churn never
// blocks or corrupts an in-flight dispatch.
package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Kind identifies one of the four event kinds a listener can subscribe to.
type Kind uint8

const (
	Created Kind = iota
	Updated
	Removed
	Expired
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Updated:
		return "UPDATED"
	case Removed:
		return "REMOVED"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Event describes one committed transition delivered to a listener.
type Event[K comparable, V any] struct {
	Kind     Kind
	Key      K
	OldValue V
	NewValue V
	// OldValueAvailable mirrors the contract's isOldValueAvailable: false
	// when no prior value existed (a pure creation).
	OldValueAvailable bool
}

// Listener receives batches of events of kinds it registered for. Each
// call carries only events of the one kind named by the method.
type Listener[K comparable, V any] interface {
	OnCreated(events []Event[K, V])
	OnUpdated(events []Event[K, V])
	OnRemoved(events []Event[K, V])
	OnExpired(events []Event[K, V])
}

// Registration describes one listener's subscription.
type Registration[K comparable, V any] struct {
	Listener          Listener[K, V]
	Kinds             map[Kind]bool
	Synchronous       bool
	OldValueRequired  bool
}

// Token identifies a registration for deregistration.
type Token struct{ n uint64 }

var tokenCounter atomic.Uint64

// Dispatcher holds the ordered, copy-on-write registration list and
// delivers events for one cache. It does not own the async worker pool's
// lifetime beyond Close.
type Dispatcher[K comparable, V any] struct {
	mu   sync.Mutex
	regs atomic.Pointer[[]regEntry[K, V]]

	asyncCh chan func()
	asyncWg sync.WaitGroup
	closed  atomic.Bool
	logger  *slog.Logger
}

type regEntry[K comparable, V any] struct {
	token Token
	reg   Registration[K, V]
}

// New builds a Dispatcher. logger receives swallowed listener panics; if
// nil, slog.Default() is used.
func New[K comparable, V any](logger *slog.Logger) *Dispatcher[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher[K, V]{logger: logger}
	empty := []regEntry[K, V]{}
	d.regs.Store(&empty)
	d.startAsyncWorker()
	return d
}

func (d *Dispatcher[K, V]) startAsyncWorker() {
	d.asyncCh = make(chan func(), 256)
	d.asyncWg.Add(1)
	go func() {
		defer d.asyncWg.Done()
		for fn := range d.asyncCh {
			fn()
		}
	}()
}

// Register adds a new listener registration, returning a token usable
// with Deregister. Registration order determines delivery order.
func (d *Dispatcher[K, V]) Register(reg Registration[K, V]) Token {
	tk := Token{n: tokenCounter.Add(1)}
	d.mu.Lock()
	defer d.mu.Unlock()
	old := *d.regs.Load()
	next := make([]regEntry[K, V], len(old), len(old)+1)
	copy(next, old)
	next = append(next, regEntry[K, V]{token: tk, reg: reg})
	d.regs.Store(&next)
	return tk
}

// Deregister removes a registration by token. A missing token is a no-op.
func (d *Dispatcher[K, V]) Deregister(tk Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := *d.regs.Load()
	next := make([]regEntry[K, V], 0, len(old))
	for _, e := range old {
		if e.token != tk {
			next = append(next, e)
		}
	}
	d.regs.Store(&next)
}

// Dispatch delivers events of kind to every matching registration, in
// registration order. Synchronous listeners run on the calling goroutine;
// asynchronous ones are queued to the dispatcher's worker. Panics from a
// listener are recorded and swallowed — they never affect the caller.
func (d *Dispatcher[K, V]) Dispatch(ctx context.Context, kind Kind, events []Event[K, V]) {
	if len(events) == 0 || d.closed.Load() {
		return
	}
	regs := *d.regs.Load()
	for _, e := range regs {
		if !e.reg.Kinds[kind] {
			continue
		}
		reg := e.reg
		if reg.Synchronous {
			d.deliver(kind, reg, events)
			continue
		}
		select {
		case d.asyncCh <- func() { d.deliver(kind, reg, events) }:
		default:
			d.logger.Warn("cache: async listener queue full, delivering synchronously", "kind", kind.String())
			d.deliver(kind, reg, events)
		}
	}
}

func (d *Dispatcher[K, V]) deliver(kind Kind, reg Registration[K, V], events []Event[K, V]) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("cache: listener panicked, swallowing", "kind", kind.String(), "panic", r)
		}
	}()
	switch kind {
	case Created:
		reg.Listener.OnCreated(events)
	case Updated:
		reg.Listener.OnUpdated(events)
	case Removed:
		reg.Listener.OnRemoved(events)
	case Expired:
		reg.Listener.OnExpired(events)
	}
}

// Close stops the async worker, waiting for queued deliveries to drain.
func (d *Dispatcher[K, V]) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	close(d.asyncCh)
	d.asyncWg.Wait()
}
