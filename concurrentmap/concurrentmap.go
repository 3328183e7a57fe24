// Package concurrentmap provides a generic lock-free map used by the
// Delivery Registry (request id -> Delivery Task) and the Dispatcher's
// in-flight driver set (driver id -> struct{}). It wraps puzpuzpuz/xsync's
// MapOf, trimmed to the operations those two callers actually use.
package concurrentmap

import "github.com/puzpuzpuz/xsync/v3"

// Map is a thread-safe key-value map with no external locking required.
type Map[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: xsync.NewMapOf[K, V]()}
}

// Set stores value under key, overwriting any previous entry.
func (m *Map[K, V]) Set(key K, value V) {
	m.m.Store(key, value)
}

// GetAndDel removes key and returns its value if it was present. Calling
// GetAndDel twice for the same key returns ok=true once and ok=false
// thereafter — this is what gives the Delivery Registry's stop() its
// idempotent-cancellation guarantee for free.
func (m *Map[K, V]) GetAndDel(key K) (value V, ok bool) {
	return m.m.LoadAndDelete(key)
}

// Del removes key unconditionally.
func (m *Map[K, V]) Del(key K) {
	m.m.Delete(key)
}

// Len returns the number of entries currently stored.
func (m *Map[K, V]) Len() int {
	return m.m.Size()
}
