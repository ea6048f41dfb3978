package kvstore

import (
	"log/slog"

	"github.com/codewandler/lrukv-go/core/cache"
	"github.com/codewandler/lrukv-go/internal/shard"
)

// DefaultCapacity is the number of entries a store caches unless told otherwise.
const DefaultCapacity = 10 * 1024

// Option configures a Store or a Sharded store.
type Option func(*options)

type options struct {
	capacity int
	preload  bool
	log      *slog.Logger
	metrics  Metrics
	cache    cache.Cache[string, []byte]
	sharder  func(n int) shard.Sharder
}

func newOptions(opts []Option) *options {
	o := &options{
		capacity: DefaultCapacity,
		preload:  true,
		sharder:  shard.Distributed,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NopMetrics()
	}
	return o
}

// WithCapacity sets the maximum number of cached entries (default:
// DefaultCapacity). For a Sharded store this is the total across shards,
// and OpenSharded rejects a total below the shard count.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithPreload controls whether Open fills the cache from the backing store
// (default: true).
func WithPreload(enabled bool) Option {
	return func(o *options) { o.preload = enabled }
}

func WithLog(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCache replaces the built-in LRU. The store still owns the cache and
// only touches it under its lock. Evictions of a custom cache are not
// reported to Metrics. Ignored by Sharded.
func WithCache(c cache.Cache[string, []byte]) Option {
	return func(o *options) { o.cache = c }
}

// WithRendezvous makes a Sharded store route keys by rendezvous hashing
// instead of plain xxhash modulo.
func WithRendezvous(seed string) Option {
	return func(o *options) {
		o.sharder = func(n int) shard.Sharder { return shard.Rendezvous(n, seed) }
	}
}
