package lru

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrInvalidCapacity is returned when a cache is requested with a capacity
// below one.
var ErrInvalidCapacity = errors.New("lru: capacity must be positive")

// node is an entry in the recency list.
type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

// Stats holds cumulative counters for a cache.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a fixed capacity Least Recently Used cache.
//
// Entries are kept on a doubly linked list bounded by two sentinel nodes:
// head.next is the most recently used entry and tail.prev the least
// recently used one. Every Get hit and every Put moves the touched node
// right after head, so list position is the recency order.
//
// Cache is not safe for concurrent use, see SyncCache.
type Cache[K comparable, V any] struct {
	capacity int
	items    map[K]*node[K, V]
	head     *node[K, V] // most recently used side
	tail     *node[K, V] // least recently used side

	onEvict func(K, V)
	stats   Stats
}

// Option configures a cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithEvictCallback registers f to be called with the key and value of
// every entry dropped to make room for a new key.
func WithEvictCallback[K comparable, V any](f func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = f
	}
}

// New returns an empty cache holding at most capacity entries.
func New[K comparable, V any](capacity int,
	opts ...Option[K, V]) (*Cache[K, V], error) {

	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity,
			capacity)
	}

	c := &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*node[K, V], capacity),
		head:     &node[K, V]{},
		tail:     &node[K, V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get returns the value stored under key and marks it most recently used.
// A miss leaves the recency order untouched.
func (c *Cache[K, V]) Get(key K) fn.Option[V] {
	n, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return fn.None[V]()
	}

	c.stats.Hits++
	c.moveToFront(n)

	return fn.Some(n.value)
}

// Put stores value under key and marks it most recently used. Inserting a
// new key into a full cache first evicts the least recently used entry;
// overwriting an existing key never evicts.
func (c *Cache[K, V]) Put(key K, value V) {
	if n, ok := c.items[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}

	if len(c.items) >= c.capacity {
		c.removeOldest()
	}

	n := &node[K, V]{key: key, value: value}
	c.items[key] = n
	c.addToFront(n)
}

// Peek returns the value stored under key without promoting it.
func (c *Cache[K, V]) Peek(key K) fn.Option[V] {
	n, ok := c.items[key]
	if !ok {
		return fn.None[V]()
	}

	return fn.Some(n.value)
}

// Contains reports whether key is cached, without promoting it.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.items[key]
	return ok
}

// Remove deletes key from the cache and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	n, ok := c.items[key]
	if !ok {
		return false
	}

	c.unlink(n)
	delete(c.items, key)

	return true
}

// Oldest returns the key that the next eviction would drop.
func (c *Cache[K, V]) Oldest() fn.Option[K] {
	if c.tail.prev == c.head {
		return fn.None[K]()
	}

	return fn.Some(c.tail.prev.key)
}

// Keys returns the cached keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.items))
	for n := c.head.next; n != c.tail; n = n.next {
		keys = append(keys, n.key)
	}

	return keys
}

// Purge drops every entry. Stats are kept.
func (c *Cache[K, V]) Purge() {
	for n := c.head.next; n != c.tail; {
		next := n.next
		n.prev, n.next = nil, nil
		n = next
	}
	clear(c.items)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return len(c.items)
}

// Cap returns the capacity the cache was built with.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	return c.stats
}

// moveToFront moves an existing node right after head.
func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if c.head.next == n {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

// addToFront links n right after head.
func (c *Cache[K, V]) addToFront(n *node[K, V]) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}

// unlink detaches n from the list.
func (c *Cache[K, V]) unlink(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// removeOldest evicts the node right before tail.
func (c *Cache[K, V]) removeOldest() {
	n := c.tail.prev
	if n == c.head {
		return
	}

	c.unlink(n)
	delete(c.items, n.key)
	c.stats.Evictions++

	log.Tracef("Evicted key=%v, len=%d, cap=%d", n.key, len(c.items),
		c.capacity)

	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}
