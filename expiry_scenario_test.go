package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/go-contract-cache/cache"
)

// TestLazyEvictionViaAccess is scenario 1: a short creation-expiry entry
// is observed expired on the next access, not proactively reaped.
func TestLazyEvictionViaAccess(t *testing.T) {
	ctx := context.Background()
	policy := fixedPolicy{creation: cache.TTL(50 * time.Millisecond), update: cache.Unchanged, access: cache.Unchanged}
	lc := &recordingListener{}

	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](policy),
		cache.WithStatisticsEnabled[string, string](true),
	)
	require.NoError(t, err)
	defer c.Close()
	c.RegisterListener(lc, true, true, cache.Expired)

	require.NoError(t, c.Put(ctx, "k", "v"))
	time.Sleep(100 * time.Millisecond)

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)

	_, _, _, expired := lc.counts()
	require.Equal(t, 1, expired)
	lc.mu.Lock()
	assert.Equal(t, "v", lc.expired[0].OldValue)
	lc.mu.Unlock()

	snap := c.Statistics()
	assert.EqualValues(t, 1, snap.Evictions)
	assert.EqualValues(t, 1, snap.Misses)
}

func TestZeroDurationExpiryOnCreationIsNeverObservable(t *testing.T) {
	ctx := context.Background()
	policy := fixedPolicy{creation: cache.Immediate, update: cache.Unchanged, access: cache.Unchanged}
	lc := &recordingListener{}
	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](policy),
		cache.WithStatisticsEnabled[string, string](true),
	)
	require.NoError(t, err)
	defer c.Close()
	c.RegisterListener(lc, true, true, cache.Expired)

	require.NoError(t, c.Put(ctx, "k", "v"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)

	_, _, _, expired := lc.counts()
	assert.Equal(t, 1, expired)
	assert.EqualValues(t, 1, c.Statistics().Evictions)
}

func TestEternalExpiryNeverExpiresRegardlessOfWallClock(t *testing.T) {
	ctx := context.Background()
	c := newPlainCache(t)
	require.NoError(t, c.Put(ctx, "k", "v"))
	time.Sleep(20 * time.Millisecond)

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestPutIfAbsentOnExpiredEntryBehavesAsAbsent(t *testing.T) {
	ctx := context.Background()
	policy := fixedPolicy{creation: cache.TTL(10 * time.Millisecond), update: cache.Unchanged, access: cache.Unchanged}
	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](policy),
		cache.WithStatisticsEnabled[string, string](true),
	)
	require.NoError(t, err)
	defer c.Close()

	inserted, err := c.PutIfAbsent(ctx, "k", "first")
	require.NoError(t, err)
	require.True(t, inserted)

	time.Sleep(30 * time.Millisecond)

	inserted, err = c.PutIfAbsent(ctx, "k", "second")
	require.NoError(t, err)
	assert.True(t, inserted, "an expired slot must be treated as absent")

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "second", got)
}

func TestReplaceOnExpiredEntryFailsAndCountsMiss(t *testing.T) {
	ctx := context.Background()
	policy := fixedPolicy{creation: cache.TTL(10 * time.Millisecond), update: cache.Unchanged, access: cache.Unchanged}
	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](policy),
		cache.WithStatisticsEnabled[string, string](true),
	)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "k", "v"))
	time.Sleep(30 * time.Millisecond)

	replaced, err := c.Replace(ctx, "k", "v2")
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.GreaterOrEqual(t, c.Statistics().Misses, int64(1))
}
