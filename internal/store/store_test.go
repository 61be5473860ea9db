package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-contract-cache/cache/eviction"
	"github.com/go-contract-cache/cache/internal/entry"
	"github.com/go-contract-cache/cache/internal/store"
)

func newStore(t *testing.T, opts store.Options[string, int]) *store.Store[string, int] {
	t.Helper()
	return store.New[string, int](opts)
}

func TestComputeInstallsAndGetReadsItBack(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 4})

	s.Compute("k", func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
		require.False(t, ok)
		return entry.EternalOf(42), true
	}, nil)

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got.Value())
}

func TestComputeCanDeleteByReturningFalse(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 4})
	s.Compute("k", func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
		return entry.EternalOf(1), true
	}, nil)

	s.Compute("k", func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
		require.True(t, ok)
		return old, false
	}, nil)

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestDeleteRemovesUnconditionally(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 4})
	s.Compute("k", func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
		return entry.EternalOf(7), true
	}, nil)

	old, ok := s.Delete("k")
	require.True(t, ok)
	assert.Equal(t, 7, old.Value())

	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestLenAndKeysReflectAllShards(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 8})
	for i, k := range []string{"a", "b", "c", "d", "e"} {
		s.Compute(k, func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
			return entry.EternalOf(i), true
		}, nil)
	}

	assert.Equal(t, 5, s.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, s.Keys())
}

func TestClearDiscardsEverythingAndResetsPolicy(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 4, MaxEntries: 100, Policy: eviction.LRU})
	for _, k := range []string{"a", "b", "c"} {
		s.Compute(k, func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
			return entry.EternalOf(1), true
		}, nil)
	}

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())

	// policy bookkeeping must also be reset, not just the data map: a
	// fresh insert should not be immediately evictable as if it were
	// the stale tail of the old policy state.
	s.Compute("fresh", func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
		require.False(t, ok)
		return entry.EternalOf(1), true
	}, nil)
	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestCapacityEvictionRespectsMaxEntriesAndNeverEvictsTheJustWrittenKey(t *testing.T) {
	// One shard so the whole test is deterministic regardless of hashing.
	s := newStore(t, store.Options[string, int]{
		Shards:     1,
		MaxEntries: 2,
		Policy:     eviction.LRU,
	})

	var evicted []string
	onEvict := func(key string, old entry.Expirable[int]) { evicted = append(evicted, key) }

	put := func(k string, v int) {
		s.Compute(k, func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
			return entry.EternalOf(v), true
		}, onEvict)
	}

	put("a", 1)
	put("b", 2)
	put("c", 3) // over capacity: a (LRU tail) must be evicted

	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 2, s.Len())

	_, ok := s.Get("c")
	require.True(t, ok, "the just-written key must never be evicted for its own write")
}

func TestCapacityEvictionByWeight(t *testing.T) {
	weigher := func(key string, value int) int64 { return int64(value) }
	s := newStore(t, store.Options[string, int]{
		Shards:    1,
		MaxWeight: 10,
		Weigher:   weigher,
		Policy:    eviction.FIFO,
	})

	var evicted []string
	onEvict := func(key string, old entry.Expirable[int]) { evicted = append(evicted, key) }

	put := func(k string, v int) {
		s.Compute(k, func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
			return entry.EternalOf(v), true
		}, onEvict)
	}

	put("a", 6)
	put("b", 6) // total weight 12 > 10: a (FIFO oldest) evicted

	assert.Equal(t, []string{"a"}, evicted)
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("b")
	assert.True(t, ok)
}

func TestTouchRecordsAccessAgainstEvictionPolicy(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 1, MaxEntries: 2, Policy: eviction.LRU})
	put := func(k string, v int) {
		s.Compute(k, func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
			return entry.EternalOf(v), true
		}, nil)
	}
	put("a", 1)
	put("b", 2)
	s.Touch("a") // a is now most-recently-used despite being inserted first

	var evicted []string
	s.Compute("c", func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
		return entry.EternalOf(3), true
	}, func(key string, old entry.Expirable[int]) { evicted = append(evicted, key) })

	assert.Equal(t, []string{"b"}, evicted)
}

func TestShardsAreRoundedUpToAPowerOfTwo(t *testing.T) {
	s := newStore(t, store.Options[string, int]{Shards: 5})
	// No direct accessor for shard count; indirectly verify the store
	// still behaves correctly across many keys regardless of the
	// internal rounding.
	for i := 0; i < 100; i++ {
		k := string(rune('a' + i%26))
		s.Compute(k, func(old entry.Expirable[int], ok bool) (entry.Expirable[int], bool) {
			return entry.EternalOf(i), true
		}, nil)
	}
	assert.LessOrEqual(t, s.Len(), 26)
}
