package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/go-contract-cache/cache"
)

func TestLoadAllFetchesOnlyAbsentKeysByDefault(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.set("a", "from-store-a")
	store.set("b", "from-store-b")
	lc := &recordingListener{}

	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](eternalPolicy{}),
		cache.WithReadThrough[string, string](store),
	)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "a", "already-here"))
	// Registered after the Put so only LoadAll's events are counted.
	c.RegisterListener(lc, true, true, cache.Created)

	listener := newBlockingCompletionListener()
	c.LoadAll(ctx, []string{"a", "b"}, false, listener)

	select {
	case <-listener.done:
	case <-time.After(2 * time.Second):
		t.Fatal("LoadAll never completed")
	}
	require.NoError(t, listener.err)

	got, err := c.GetAll(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "already-here", "b": "from-store-b"}, got, "existing key a must not be overwritten")

	created, _, _, _ := lc.counts()
	assert.Equal(t, 1, created, "CREATED fires only for the newly-loaded key b")
}

func TestLoadAllWithReplaceExistingOverwritesPresentKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.set("a", "from-store")

	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](eternalPolicy{}),
		cache.WithReadThrough[string, string](store),
	)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "a", "stale"))

	listener := newBlockingCompletionListener()
	c.LoadAll(ctx, []string{"a"}, true, listener)
	<-listener.done
	require.NoError(t, listener.err)

	got, _, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "from-store", got)
}

func TestLoadAllReportsLoaderFailureToTheListener(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.loadErr = map[string]error{"a": assert.AnError}

	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](eternalPolicy{}),
		cache.WithReadThrough[string, string](store),
	)
	require.NoError(t, err)
	defer c.Close()

	listener := newBlockingCompletionListener()
	c.LoadAll(ctx, []string{"a"}, false, listener)
	<-listener.done

	require.Error(t, listener.err)
	var lerr *cache.LoaderError[string]
	assert.ErrorAs(t, listener.err, &lerr)
}

func TestLoadAllOnClosedCacheReportsErrClosed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](eternalPolicy{}),
		cache.WithReadThrough[string, string](store),
	)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	listener := newBlockingCompletionListener()
	c.LoadAll(ctx, []string{"a"}, false, listener)
	<-listener.done

	assert.ErrorIs(t, listener.err, cache.ErrClosed)
}

// batchLoadStore prefers LoadAll over per-key Load, letting a test verify
// the batch-loader path is actually taken.
type batchLoadStore struct {
	data      map[string]string
	batchHits int
}

func (s *batchLoadStore) Load(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *batchLoadStore) LoadAll(ctx context.Context, keys []string) (map[string]string, error) {
	s.batchHits++
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func TestLoadAllPrefersTheBatchLoaderWhenAvailable(t *testing.T) {
	ctx := context.Background()
	store := &batchLoadStore{data: map[string]string{"a": "1", "b": "2"}}

	c, err := cache.New[string, string](
		cache.WithExpiryPolicy[string, string](eternalPolicy{}),
		cache.WithReadThrough[string, string](store),
	)
	require.NoError(t, err)
	defer c.Close()

	listener := newBlockingCompletionListener()
	c.LoadAll(ctx, []string{"a", "b"}, false, listener)
	<-listener.done
	require.NoError(t, listener.err)

	assert.Equal(t, 1, store.batchHits)
	got, err := c.GetAll(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
