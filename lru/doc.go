// Package lru implements a fixed capacity Least Recently Used cache.
//
// Cache keeps its entries on an explicit doubly linked list with a map index
// from key to list node, giving O(1) Get and Put. A hit on Get and every Put
// promote the entry to the most recently used end; once the cache is full,
// inserting a new key evicts the entry at the least recently used end.
//
// Cache does no locking. SyncCache wraps it behind a single mutex for callers
// that share one instance between goroutines.
package lru
