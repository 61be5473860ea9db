package cache

import "sync"

// Manager is a supplemental multi-cache registry, a small generalization
// of the teacher's implicit single-cache setup, mirroring the contract's
// CacheManager back-reference. It is not part of the required surface.
type Manager[K comparable, V any] struct {
	mu     sync.RWMutex
	caches map[string]Cache[K, V]
}

// NewManager builds an empty Manager.
func NewManager[K comparable, V any]() *Manager[K, V] {
	return &Manager[K, V]{caches: make(map[string]Cache[K, V])}
}

// GetOrCreate returns the named cache, creating it with opts if it
// doesn't exist yet.
func (m *Manager[K, V]) GetOrCreate(name string, opts ...Option[K, V]) (Cache[K, V], error) {
	m.mu.RLock()
	if c, ok := m.caches[name]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[name]; ok {
		return c, nil
	}
	opts = append(opts, WithName[K, V](name))
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	m.caches[name] = c
	return c, nil
}

// Get returns the named cache, or (nil, false) if it doesn't exist.
func (m *Manager[K, V]) Get(name string) (Cache[K, V], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[name]
	return c, ok
}

// CloseCache closes and removes the named cache. A missing name is a no-op.
func (m *Manager[K, V]) CloseCache(name string) error {
	m.mu.Lock()
	c, ok := m.caches[name]
	delete(m.caches, name)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close()
}

// Close closes every cache the manager holds.
func (m *Manager[K, V]) Close() error {
	m.mu.Lock()
	caches := m.caches
	m.caches = make(map[string]Cache[K, V])
	m.mu.Unlock()
	var firstErr error
	for _, c := range caches {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
