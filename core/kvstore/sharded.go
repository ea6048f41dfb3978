package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codewandler/lrukv-go/internal/shard"
	"github.com/codewandler/lrukv-go/ports/kv"
)

// Sharded spreads keys over n independent Stores that share one backing
// store. A key always maps to the same shard, so each key still sees
// whole-operation exclusion, while operations on different shards run in
// parallel.
type Sharded struct {
	shards  []*Store
	sharder shard.Sharder
	backing kv.Store
	owned   bool

	closeOnce sync.Once
	closeErr  error
}

// OpenSharded wraps backing in n shards. The cache capacity (WithCapacity)
// is split evenly across shards and must be at least n. Preloading makes a single pass over the
// backing store and routes each entry to its shard, skipping entries whose
// shard is already full.
func OpenSharded(ctx context.Context, backing kv.Store, n int, opts ...Option) (*Sharded, error) {
	if backing == nil {
		return nil, fmt.Errorf("%w: backing store is nil", ErrOpen)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: shard count must be positive, got %d", ErrOpen, n)
	}

	o := newOptions(opts)
	o.cache = nil
	if o.capacity < n {
		return nil, fmt.Errorf("%w: capacity %d is less than shard count %d", ErrOpen, o.capacity, n)
	}

	s := &Sharded{
		shards:  make([]*Store, n),
		sharder: o.sharder(n),
		backing: backing,
	}

	base, rem := o.capacity/n, o.capacity%n
	for i := range s.shards {
		c := base
		if i < rem {
			c++
		}
		so := *o
		so.capacity = c
		s.shards[i] = newStore(backing, &so, o.log.With(slog.Int("shard", i)))
	}

	if o.preload {
		if it, ok := backing.(kv.Iterable); ok {
			loaded, err := s.preload(ctx, it, o.metrics)
			if err != nil {
				return nil, fmt.Errorf("%w: preload: %w", ErrOpen, err)
			}
			o.log.Debug("sharded cache preloaded", slog.Int("entries", loaded), slog.Int("shards", n))
		}
	}

	return s, nil
}

// OpenShardedWith opens the backing store at location and wraps it in n
// shards. The returned store owns the backing store.
func OpenShardedWith(ctx context.Context, open kv.Opener, location string, createIfMissing bool, n int, opts ...Option) (*Sharded, error) {
	backing, err := open(ctx, location, createIfMissing)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, location, err)
	}

	s, err := OpenSharded(ctx, backing, n, opts...)
	if err != nil {
		_ = closeStore(backing)
		return nil, err
	}
	s.owned = true
	return s, nil
}

func (s *Sharded) preload(ctx context.Context, it kv.Iterable, m Metrics) (loaded int, err error) {
	defer m.BackingDuration("iterate").ObserveDuration()

	filled := make([]int, len(s.shards))
	full := 0

	err = it.Iterate(ctx, func(key string, value []byte) bool {
		i := s.sharder.GetShardForKey(key)
		sh := s.shards[i]
		if filled[i] >= sh.capacity {
			return true
		}

		sh.mu.Lock()
		sh.cache.Put(key, value)
		sh.syncEntries()
		sh.mu.Unlock()

		loaded++
		filled[i]++
		if filled[i] == sh.capacity {
			full++
		}
		return full < len(s.shards)
	})
	if err != nil {
		m.BackingError("iterate")
	}
	return loaded, err
}

func (s *Sharded) shardFor(key string) *Store {
	return s.shards[s.sharder.GetShardForKey(key)]
}

func (s *Sharded) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.shardFor(key).Get(ctx, key)
}

func (s *Sharded) Put(ctx context.Context, key string, value []byte) error {
	return s.shardFor(key).Put(ctx, key, value)
}

func (s *Sharded) Delete(ctx context.Context, key string) error {
	return s.shardFor(key).Delete(ctx, key)
}

// Len returns the number of cached entries across all shards.
func (s *Sharded) Len() (n int) {
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}

func (s *Sharded) Shards() int { return len(s.shards) }

// Close closes every shard and, when owned, the backing store.
func (s *Sharded) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, sh := range s.shards {
			errs = append(errs, sh.Close())
		}
		if s.owned {
			errs = append(errs, closeStore(s.backing))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
