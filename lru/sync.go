package lru

import (
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// SyncCache is a Cache guarded by a single mutex. Get reorders the recency
// list, so reads take the same exclusive lock as writes.
type SyncCache[K comparable, V any] struct {
	mu sync.Mutex
	c  *Cache[K, V]
}

// NewSync returns an empty SyncCache holding at most capacity entries. An
// evict callback runs with the lock held and must not call back into the
// cache.
func NewSync[K comparable, V any](capacity int,
	opts ...Option[K, V]) (*SyncCache[K, V], error) {

	c, err := New[K, V](capacity, opts...)
	if err != nil {
		return nil, err
	}

	return &SyncCache[K, V]{c: c}, nil
}

// Get returns the value stored under key and marks it most recently used.
func (s *SyncCache[K, V]) Get(key K) fn.Option[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Get(key)
}

// Put stores value under key and marks it most recently used.
func (s *SyncCache[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Put(key, value)
}

// Peek returns the value stored under key without promoting it.
func (s *SyncCache[K, V]) Peek(key K) fn.Option[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Peek(key)
}

// Contains reports whether key is cached, without promoting it.
func (s *SyncCache[K, V]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Contains(key)
}

// Remove deletes key and reports whether it was present.
func (s *SyncCache[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Remove(key)
}

// Oldest returns the key that the next eviction would drop.
func (s *SyncCache[K, V]) Oldest() fn.Option[K] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Oldest()
}

// Keys returns the cached keys from most to least recently used.
func (s *SyncCache[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Keys()
}

// Purge drops every entry.
func (s *SyncCache[K, V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Purge()
}

// Len returns the number of cached entries.
func (s *SyncCache[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Len()
}

// Cap returns the capacity of the cache.
func (s *SyncCache[K, V]) Cap() int {
	return s.c.Cap()
}

// Stats returns a snapshot of the cache counters.
func (s *SyncCache[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.c.Stats()
}
