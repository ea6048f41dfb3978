package cache

// Nop is a cache that never holds anything. Plugging it into a store turns
// every read into a backing-store read.
type Nop[K comparable, V any] struct{}

func (n *Nop[K, V]) Get(key K) (out V, ok bool) {
	return out, false
}

func (n *Nop[K, V]) Put(key K, val V) {
}

func (n *Nop[K, V]) Delete(key K) {
}

func (n *Nop[K, V]) Len() int { return 0 }

func NewNop[K comparable, V any]() *Nop[K, V] {
	return &Nop[K, V]{}
}

var _ Cache[string, []byte] = (*Nop[string, []byte])(nil)
