package cache

// nilIdx marks the absence of a neighbour in the recency list.
const nilIdx = -1

// preallocLimit caps how many arena slots NewLRU reserves up front. Larger
// caches grow the arena on demand.
const preallocLimit = 4096

type LRUOpts[K comparable, V any] struct {
	// Size is the maximum number of resident entries (default: 128).
	Size int
	// OnEvict is called when an entry is pushed out by capacity pressure.
	// It is not called for Delete or Purge.
	OnEvict func(key K, val V)
}

type node[K comparable, V any] struct {
	key  K
	val  V
	prev int
	next int
}

// LRU is a fixed-capacity least-recently-used cache.
//
// Nodes live in an arena slice and link to each other by index, the lookup
// map stores arena indices. Freed slots are recycled, so the arena never
// holds more than Size nodes.
//
// LRU is not safe for concurrent use; callers serialize access.
type LRU[K comparable, V any] struct {
	size    int
	nodes   []node[K, V]
	free    []int
	index   map[K]int
	head    int // most recently used
	tail    int // least recently used
	onEvict func(key K, val V)
}

func NewLRU[K comparable, V any](opts LRUOpts[K, V]) *LRU[K, V] {
	if opts.Size <= 0 {
		opts.Size = 128
	}

	prealloc := min(opts.Size, preallocLimit)
	return &LRU[K, V]{
		size:    opts.Size,
		nodes:   make([]node[K, V], 0, prealloc),
		index:   make(map[K]int, prealloc),
		head:    nilIdx,
		tail:    nilIdx,
		onEvict: opts.OnEvict,
	}
}

// Get returns the value for key and marks it as most recently used.
func (l *LRU[K, V]) Get(key K) (val V, ok bool) {
	i, ok := l.index[key]
	if !ok {
		return val, false
	}
	l.promote(i)
	return l.nodes[i].val, true
}

// Peek returns the value for key without touching its recency.
func (l *LRU[K, V]) Peek(key K) (val V, ok bool) {
	i, ok := l.index[key]
	if !ok {
		return val, false
	}
	return l.nodes[i].val, true
}

func (l *LRU[K, V]) Contains(key K) bool {
	_, ok := l.index[key]
	return ok
}

// Put inserts or updates key and marks it as most recently used. Inserting a
// new key into a full cache evicts exactly one entry, the least recently used.
func (l *LRU[K, V]) Put(key K, val V) {
	if i, ok := l.index[key]; ok {
		l.nodes[i].val = val
		l.promote(i)
		return
	}

	if len(l.index) >= l.size {
		l.evictOldest()
	}

	i := l.alloc(key, val)
	l.pushFront(i)
	l.index[key] = i
}

// Delete removes key if present. It never evicts another entry.
func (l *LRU[K, V]) Delete(key K) {
	if i, ok := l.index[key]; ok {
		l.remove(i)
	}
}

// Oldest returns the least recently used entry without promoting it.
func (l *LRU[K, V]) Oldest() (key K, val V, ok bool) {
	if l.tail == nilIdx {
		return key, val, false
	}
	n := &l.nodes[l.tail]
	return n.key, n.val, true
}

// Keys returns the resident keys, most recently used first.
func (l *LRU[K, V]) Keys() []K {
	keys := make([]K, 0, len(l.index))
	for i := l.head; i != nilIdx; i = l.nodes[i].next {
		keys = append(keys, l.nodes[i].key)
	}
	return keys
}

func (l *LRU[K, V]) Len() int { return len(l.index) }

func (l *LRU[K, V]) Cap() int { return l.size }

// Purge drops every entry without calling OnEvict.
func (l *LRU[K, V]) Purge() {
	clear(l.index)
	l.nodes = l.nodes[:0]
	l.free = l.free[:0]
	l.head, l.tail = nilIdx, nilIdx
}

func (l *LRU[K, V]) promote(i int) {
	if i == l.head {
		return
	}
	l.unlink(i)
	l.pushFront(i)
}

func (l *LRU[K, V]) evictOldest() {
	if l.tail == nilIdx {
		return
	}
	key, val := l.remove(l.tail)
	if l.onEvict != nil {
		l.onEvict(key, val)
	}
}

func (l *LRU[K, V]) remove(i int) (key K, val V) {
	l.unlink(i)
	key, val = l.nodes[i].key, l.nodes[i].val
	delete(l.index, key)

	// drop references held by the slot so they can be collected
	l.nodes[i] = node[K, V]{prev: nilIdx, next: nilIdx}
	l.free = append(l.free, i)
	return key, val
}

func (l *LRU[K, V]) alloc(key K, val V) int {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.nodes[i] = node[K, V]{key: key, val: val, prev: nilIdx, next: nilIdx}
		return i
	}
	l.nodes = append(l.nodes, node[K, V]{key: key, val: val, prev: nilIdx, next: nilIdx})
	return len(l.nodes) - 1
}

func (l *LRU[K, V]) unlink(i int) {
	n := &l.nodes[i]
	if n.prev != nilIdx {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilIdx {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nilIdx, nilIdx
}

func (l *LRU[K, V]) pushFront(i int) {
	n := &l.nodes[i]
	n.prev = nilIdx
	n.next = l.head
	if l.head != nilIdx {
		l.nodes[l.head].prev = i
	}
	l.head = i
	if l.tail == nilIdx {
		l.tail = i
	}
}

var _ Cache[string, []byte] = (*LRU[string, []byte])(nil)
