package kvstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/codewandler/lrukv-go/core/cache"
	"github.com/codewandler/lrukv-go/ports/kv"
)

// Store is a cache-aside key-value store: an LRU cache in front of a
// durable kv.Store.
//
// Every operation runs under one mutex, so callers never observe the cache
// and the backing store out of step with each other.
type Store struct {
	mu       sync.Mutex
	cache    cache.Cache[string, []byte]
	capacity int
	backing  kv.Store
	owned    bool
	closed   bool
	entries  int
	log      *slog.Logger
	metrics  Metrics
}

// Open wraps an already open backing store. Unless preloading is disabled,
// the cache is filled from the backing store's iteration order until it is
// full or the store is exhausted. The caller keeps ownership of backing.
func Open(ctx context.Context, backing kv.Store, opts ...Option) (*Store, error) {
	if backing == nil {
		return nil, fmt.Errorf("%w: backing store is nil", ErrOpen)
	}

	o := newOptions(opts)
	s := newStore(backing, o, o.log)

	if o.preload {
		it, ok := backing.(kv.Iterable)
		if ok {
			n, err := s.preload(ctx, it)
			if err != nil {
				return nil, fmt.Errorf("%w: preload: %w", ErrOpen, err)
			}
			s.log.Debug("cache preloaded", slog.Int("entries", n))
		}
	}

	s.log.Debug("store opened", slog.Int("capacity", s.capacity))
	return s, nil
}

// OpenWith opens the backing store at location and wraps it. The returned
// store owns the backing store and closes it on Close.
func OpenWith(ctx context.Context, open kv.Opener, location string, createIfMissing bool, opts ...Option) (*Store, error) {
	backing, err := open(ctx, location, createIfMissing)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, location, err)
	}

	s, err := Open(ctx, backing, opts...)
	if err != nil {
		_ = closeStore(backing)
		return nil, err
	}
	s.owned = true
	return s, nil
}

func newStore(backing kv.Store, o *options, log *slog.Logger) *Store {
	s := &Store{
		backing:  backing,
		capacity: o.capacity,
		log:      log.With(slog.String("component", "kvstore")),
		metrics:  o.metrics,
	}

	if o.cache != nil {
		s.cache = o.cache
		if c, ok := o.cache.(interface{ Cap() int }); ok {
			s.capacity = c.Cap()
		}
	} else {
		s.cache = cache.NewLRU(cache.LRUOpts[string, []byte]{
			Size:    o.capacity,
			OnEvict: func(string, []byte) { s.metrics.CacheEviction() },
		})
	}

	return s
}

func (s *Store) preload(ctx context.Context, it kv.Iterable) (n int, err error) {
	defer s.metrics.BackingDuration("iterate").ObserveDuration()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.syncEntries()

	err = it.Iterate(ctx, func(key string, value []byte) bool {
		if n >= s.capacity {
			return false
		}
		s.cache.Put(key, value)
		n++
		return n < s.capacity
	})
	if err != nil {
		s.metrics.BackingError("iterate")
	}
	return n, err
}

// Get returns the value for key. A cache hit never touches the backing
// store; a miss reads it and fills the cache. ok is false when the key
// exists in neither.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	if v, hit := s.cache.Get(key); hit {
		s.metrics.CacheHit()
		return bytes.Clone(v), true, nil
	}
	s.metrics.CacheMiss()

	v, err := s.backingGet(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get %q: %w", key, err)
	}

	s.cache.Put(key, bytes.Clone(v))
	s.syncEntries()
	return v, true, nil
}

// Put writes value for key to the backing store, then to the cache. When
// the cache already holds an identical value the backing write is skipped.
// If the backing write fails, key is dropped from the cache and the error
// is returned.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if cur, hit := s.cache.Get(key); hit && bytes.Equal(cur, value) {
		s.metrics.WriteElided()
		return nil
	}

	if err := s.backingPut(ctx, key, value); err != nil {
		s.invalidate(key, "put", err)
		return fmt.Errorf("kvstore: put %q: %w", key, err)
	}

	s.cache.Put(key, bytes.Clone(value))
	s.syncEntries()
	return nil
}

// Delete removes key from the backing store, then from the cache. If the
// backing delete fails, key is still dropped from the cache.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.backingDelete(ctx, key); err != nil {
		s.invalidate(key, "delete", err)
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}

	s.cache.Delete(key)
	s.syncEntries()
	return nil
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Close marks the store closed. A backing store opened by OpenWith is
// closed as well. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.owned {
		return closeStore(s.backing)
	}
	return nil
}

// invalidate drops key from the cache after a failed backing write, so the
// cache never claims a value the backing store may not hold.
func (s *Store) invalidate(key, op string, err error) {
	s.cache.Delete(key)
	s.syncEntries()
	s.log.Warn("backing store write failed, cache entry invalidated",
		slog.String("op", op),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

func (s *Store) syncEntries() {
	if n := s.cache.Len(); n != s.entries {
		s.metrics.CacheEntriesAdd(n - s.entries)
		s.entries = n
	}
}

func (s *Store) backingGet(ctx context.Context, key string) ([]byte, error) {
	defer s.metrics.BackingDuration("get").ObserveDuration()
	v, err := s.backing.Get(ctx, key)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		s.metrics.BackingError("get")
	}
	return v, err
}

func (s *Store) backingPut(ctx context.Context, key string, value []byte) error {
	defer s.metrics.BackingDuration("put").ObserveDuration()
	err := s.backing.Put(ctx, key, value)
	if err != nil {
		s.metrics.BackingError("put")
	}
	return err
}

func (s *Store) backingDelete(ctx context.Context, key string) error {
	defer s.metrics.BackingDuration("delete").ObserveDuration()
	err := s.backing.Delete(ctx, key)
	if err != nil {
		s.metrics.BackingError("delete")
	}
	return err
}

func closeStore(st kv.Store) error {
	if c, ok := st.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
