// Package cache implements the content-addressed StreamBuffer cache
// described in spec.md §4.2: a bounded LRU table keyed by content hash,
// with an atomic get-or-reserve lookup.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"speechpool/hashkey"
	"speechpool/streambuf"
)

// Cache maps hashkey.Key to *streambuf.StreamBuffer. groupcache/lru.Cache
// is not itself thread-safe (by design, per its docs), so every access
// here goes through a single mutex — this is also what makes
// GetOrReserve's check-then-insert atomic.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// New returns a Cache holding at most maxItems entries. A maxItems of
// zero means unbounded, per groupcache/lru's own convention.
func New(maxItems int) *Cache {
	return &Cache{lru: lru.New(maxItems)}
}

// Peek reports whether key currently names a healthy (non-corrupted)
// entry, without reserving anything. It lets a caller decide whether a
// lookup will be a hit or a miss *before* calling GetOrReserve — which
// matters because GetOrReserve's underlying Add can evict an unrelated
// LRU victim to make room, and a caller that's about to reject the
// request on admission control grounds must not pay that eviction for
// a reservation it's going to roll back anyway.
func (c *Cache) Peek(key hashkey.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return false
	}
	return !v.(*streambuf.StreamBuffer).Corrupted()
}

// GetOrReserve is the cache's single atomic operation (spec.md §4.2
// get_or_reserve): if key is present and healthy, it is returned with
// created=false; if key is present but corrupted (closed incomplete),
// it is evicted and a fresh buffer takes its place; if key is absent,
// a fresh buffer is reserved. Exactly one concurrent caller observes
// created=true for a given novel key.
func (c *Cache) GetOrReserve(key hashkey.Key) (buf *streambuf.StreamBuffer, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.lru.Get(key); ok {
		existing := v.(*streambuf.StreamBuffer)
		if !existing.Corrupted() {
			return existing, false
		}
		c.lru.Remove(key)
	}

	fresh := streambuf.New()
	c.lru.Add(key, fresh)
	return fresh, true
}

// Remove drops key unconditionally, e.g. when a reservation has to be
// rolled back because no writer could be created for it.
func (c *Cache) Remove(key hashkey.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
