package cache

// Cache is the volatile side of the store: a bounded key-value container
// with the same Get/Put/Delete shape as the durable kv.Store, minus errors.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, val V)
	Delete(key K)
	Len() int
}
