// Package entry holds the cache's core data model: an immutable value plus
// its absolute expiry time.
package entry

import "time"

// Eternal is the sentinel expiry time meaning "never expires".
const Eternal int64 = 1<<63 - 1

// Expirable is an immutable pair of (value, absolute expiry in UnixNano).
// It is replaced wholesale on every state transition, never mutated in
// place, so it can be shared freely across goroutines once installed in
// the store.
type Expirable[V any] struct {
	value      V
	expireNano int64
}

// New wraps value with an absolute expiry timestamp.
func New[V any](value V, expireNano int64) Expirable[V] {
	return Expirable[V]{value: value, expireNano: expireNano}
}

// EternalOf wraps value so it never expires.
func EternalOf[V any](value V) Expirable[V] {
	return Expirable[V]{value: value, expireNano: Eternal}
}

// Value returns the wrapped value.
func (e Expirable[V]) Value() V { return e.value }

// ExpireNano returns the absolute expiry timestamp in UnixNano.
func (e Expirable[V]) ExpireNano() int64 { return e.expireNano }

// Expired reports whether the entry is expired as of now.
func (e Expirable[V]) Expired(now time.Time) bool {
	return e.expireNano != Eternal && now.UnixNano() > e.expireNano
}

// WithExpireNano returns a new Expirable with the same value but a
// different expiry. It never copies or re-reads the value.
func (e Expirable[V]) WithExpireNano(expireNano int64) Expirable[V] {
	return Expirable[V]{value: e.value, expireNano: expireNano}
}
