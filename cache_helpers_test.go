package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cache "github.com/go-contract-cache/cache"
)

// eternalPolicy never expires anything; the baseline for tests that aren't
// themselves about expiry.
type eternalPolicy struct{}

func (eternalPolicy) ExpiryForCreation(key string, value string) cache.Duration { return cache.Eternal }
func (eternalPolicy) ExpiryForUpdate(key string, value string) cache.Duration   { return cache.Eternal }
func (eternalPolicy) ExpiryForAccess(key string, value string) cache.Duration   { return cache.Unchanged }

// fixedPolicy lets a test script exactly what each callback answers.
type fixedPolicy struct {
	creation cache.Duration
	update   cache.Duration
	access   cache.Duration
}

func (p fixedPolicy) ExpiryForCreation(key, value string) cache.Duration { return p.creation }
func (p fixedPolicy) ExpiryForUpdate(key, value string) cache.Duration   { return p.update }
func (p fixedPolicy) ExpiryForAccess(key, value string) cache.Duration   { return p.access }

// memStore is a backing store usable as both a Loader and a Writer (and
// optionally a BatchWriter, via failKeys). Grounded on the teacher's own
// cache_test.go TestStore.
type memStore struct {
	mu       sync.Mutex
	data     map[string]string
	failKeys map[string]bool
	loadErr  map[string]error
	loads    int
	writes   int
	deletes  int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if err := s.loadErr[key]; err != nil {
		return "", false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Write(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failKeys[key] {
		return fmt.Errorf("write failed for %s", key)
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.data, key)
	return nil
}

// WriteAll implements BatchWriter, failing atomically on keys named in
// failKeys and writing every other key.
func (s *memStore) WriteAll(ctx context.Context, entries map[string]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []string
	for k, v := range entries {
		if s.failKeys[k] {
			failed = append(failed, k)
			continue
		}
		s.data[k] = v
	}
	if len(failed) > 0 {
		return failed, errors.New("writer failed for some keys")
	}
	return nil, nil
}

func (s *memStore) DeleteAll(ctx context.Context, keys []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []string
	for _, k := range keys {
		if s.failKeys[k] {
			failed = append(failed, k)
			continue
		}
		delete(s.data, k)
	}
	if len(failed) > 0 {
		return failed, errors.New("writer failed to delete some keys")
	}
	return nil, nil
}

func (s *memStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *memStore) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// recordingListener captures every event it's sent, for assertion.
type recordingListener struct {
	mu      sync.Mutex
	created []cache.Event[string, string]
	updated []cache.Event[string, string]
	removed []cache.Event[string, string]
	expired []cache.Event[string, string]
}

func (l *recordingListener) OnCreated(evs []cache.Event[string, string]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, evs...)
}
func (l *recordingListener) OnUpdated(evs []cache.Event[string, string]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updated = append(l.updated, evs...)
}
func (l *recordingListener) OnRemoved(evs []cache.Event[string, string]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, evs...)
}
func (l *recordingListener) OnExpired(evs []cache.Event[string, string]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expired = append(l.expired, evs...)
}

func (l *recordingListener) counts() (created, updated, removed, expired int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.created), len(l.updated), len(l.removed), len(l.expired)
}

// blockingCompletionListener is a CompletionListener a test can wait on.
type blockingCompletionListener struct {
	done chan struct{}
	err  error
}

func newBlockingCompletionListener() *blockingCompletionListener {
	return &blockingCompletionListener{done: make(chan struct{})}
}

func (l *blockingCompletionListener) OnCompletion() { close(l.done) }
func (l *blockingCompletionListener) OnException(err error) {
	l.err = err
	close(l.done)
}
