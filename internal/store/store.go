// Package store implements the sharded, single-key-atomic backend the
// cache adapter builds on. It is the Go analogue of the "concurrent map
// with size/weight eviction" spec.md treats as an external collaborator:
// Go has no published ConcurrentHashMap.compute equivalent, so this
// package provides it directly, striping locks across shards the way the
// teacher's shard package did, adapted to guarantee true single-key
// atomicity for the compute callback.
package store

import (
	"hash/maphash"
	"sync"

	"github.com/go-contract-cache/cache/eviction"
	"github.com/go-contract-cache/cache/internal/entry"
)

// Weigher computes the weight of a key/value pair for weight-based
// eviction. Required when MaxWeight is set.
type Weigher[K comparable, V any] func(key K, value V) int64

// Options configures a Store.
type Options[K comparable, V any] struct {
	// Shards is the number of stripes keys are distributed across. It is
	// rounded up to a power of two; zero or negative means 16.
	Shards int

	// MaxEntries caps the number of entries per shard's fair share of
	// the total. Zero means unbounded. Mutually exclusive with MaxWeight.
	MaxEntries int64

	// MaxWeight caps total weight per shard's fair share. Zero means
	// unbounded. Requires Weigher. Mutually exclusive with MaxEntries.
	MaxWeight int64

	// Weigher computes per-entry weight; required when MaxWeight != 0.
	Weigher Weigher[K, V]

	// Policy selects the eviction strategy used once a shard is over
	// capacity. Defaults to eviction.LRU.
	Policy eviction.Kind
}

// Store is a sharded map[K]entry.Expirable[V] with single-key atomic
// compute and optional size/weight eviction.
type Store[K comparable, V any] struct {
	shards  []*shard[K, V]
	mask    uint64
	seed    maphash.Seed
	weigher Weigher[K, V]
	kind    eviction.Kind
}

type shard[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry.Expirable[V]
	policy     eviction.Policy[K]
	weight     int64
	maxEntries int64
	maxWeight  int64
}

// New builds a Store with the given options, filling in defaults.
func New[K comparable, V any](opts Options[K, V]) *Store[K, V] {
	n := opts.Shards
	if n <= 0 {
		n = 16
	}
	// Round up to a power of two so shard selection is a cheap mask.
	size := 1
	for size < n {
		size <<= 1
	}

	s := &Store[K, V]{
		shards:  make([]*shard[K, V], size),
		mask:    uint64(size - 1),
		seed:    maphash.MakeSeed(),
		weigher: opts.Weigher,
		kind:    opts.Policy,
	}

	perShardEntries := int64(0)
	if opts.MaxEntries > 0 {
		perShardEntries = opts.MaxEntries / int64(size)
		if perShardEntries == 0 {
			perShardEntries = 1
		}
	}
	perShardWeight := int64(0)
	if opts.MaxWeight > 0 {
		perShardWeight = opts.MaxWeight / int64(size)
		if perShardWeight == 0 {
			perShardWeight = 1
		}
	}

	for i := range s.shards {
		s.shards[i] = newShard[K, V](opts.Policy, perShardEntries, perShardWeight)
	}
	return s
}

func newShard[K comparable, V any](kind eviction.Kind, maxEntries, maxWeight int64) *shard[K, V] {
	return &shard[K, V]{
		data:       make(map[K]entry.Expirable[V]),
		policy:     eviction.New[K](kind),
		maxEntries: maxEntries,
		maxWeight:  maxWeight,
	}
}

func (s *Store[K, V]) shardFor(key K) *shard[K, V] {
	h := maphash.Comparable(s.seed, key)
	return s.shards[h&s.mask]
}

// Get returns the raw entry for key without touching eviction bookkeeping
// or expiration; callers decide what expiration means for their operation.
func (s *Store[K, V]) Get(key K) (entry.Expirable[V], bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.data[key]
	sh.mu.RUnlock()
	return v, ok
}

// Touch records a read against the eviction policy for key. Call this on
// a cache hit, kept distinct from Compute because access-expiry refresh
// is most naturally expressed as its own Compute call (see Get in
// adapter_read.go), and
// recency bookkeeping is orthogonal to it.
func (s *Store[K, V]) Touch(key K) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.policy.OnGet(key)
	sh.mu.Unlock()
}

// EvictedFunc receives a key and its expirable that was evicted purely
// for capacity reasons (not expiration).
type EvictedFunc[K comparable, V any] func(key K, old entry.Expirable[V])

// Compute atomically applies fn to the current state of key (its
// Expirable and whether it exists) and installs fn's decision. fn must be
// pure: no I/O, no locking, no calls back into the store. When fn installs
// a new value, Compute updates eviction bookkeeping and, if the shard is
// now over capacity, evicts victims (never the key just written) and
// reports each through onEvict.
func (s *Store[K, V]) Compute(
	key K,
	fn func(old entry.Expirable[V], ok bool) (newVal entry.Expirable[V], newOk bool),
	onEvict EvictedFunc[K, V],
) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	old, ok := sh.data[key]
	newVal, newOk := fn(old, ok)

	if !newOk {
		if ok {
			delete(sh.data, key)
			sh.policy.Remove(key)
			if s.weigher != nil {
				sh.weight -= s.weigher(key, old.Value())
			}
		}
		return
	}

	sh.data[key] = newVal
	sh.policy.OnPut(key)
	if s.weigher != nil {
		if ok {
			sh.weight -= s.weigher(key, old.Value())
		}
		sh.weight += s.weigher(key, newVal.Value())
	}

	s.evictIfOverCapacity(sh, key, onEvict)
}

func (s *Store[K, V]) evictIfOverCapacity(sh *shard[K, V], justWritten K, onEvict EvictedFunc[K, V]) {
	for {
		overEntries := sh.maxEntries > 0 && int64(len(sh.data)) > sh.maxEntries
		overWeight := sh.maxWeight > 0 && sh.weight > sh.maxWeight
		if !overEntries && !overWeight {
			return
		}
		victim, ok := sh.policy.Evict()
		if ok && victim == justWritten {
			// Spare the key just written: take the next victim instead and
			// put the written key back under the policy's bookkeeping.
			victim, ok = sh.policy.Evict()
			sh.policy.OnPut(justWritten)
		}
		if !ok {
			return
		}
		old, existed := sh.data[victim]
		if !existed {
			continue
		}
		delete(sh.data, victim)
		if s.weigher != nil {
			sh.weight -= s.weigher(victim, old.Value())
		}
		if onEvict != nil {
			onEvict(victim, old)
		}
	}
}

// Delete removes key unconditionally, independent of Compute's
// create/update decision logic. Used by bulk removal paths.
func (s *Store[K, V]) Delete(key K) (entry.Expirable[V], bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	old, ok := sh.data[key]
	if ok {
		delete(sh.data, key)
		sh.policy.Remove(key)
		if s.weigher != nil {
			sh.weight -= s.weigher(key, old.Value())
		}
	}
	sh.mu.Unlock()
	return old, ok
}

// Len returns the total number of entries across all shards, expired or
// not. It is an approximation under concurrent mutation.
func (s *Store[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.data)
		sh.mu.RUnlock()
	}
	return total
}

// Keys returns a snapshot of all keys currently stored, expired or not.
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.data {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Clear atomically discards every entry in every shard. No eviction
// bookkeeping runs and no keys are reported, matching the contract's
// "bulk discard is not eviction" rule.
func (s *Store[K, V]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.data = make(map[K]entry.Expirable[V])
		sh.policy = eviction.New[K](s.kind)
		sh.weight = 0
		sh.mu.Unlock()
	}
}
