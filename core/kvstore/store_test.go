package kvstore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/lrukv-go/core/cache"
	"github.com/codewandler/lrukv-go/core/metrics"
	"github.com/codewandler/lrukv-go/ports/kv"
	"github.com/codewandler/lrukv-go/ports/kv/kvtest"
)

type countingMetrics struct {
	hits, misses, evictions, elided atomic.Int64
	entries                         atomic.Int64
	backingErrs                     sync.Map // op -> *atomic.Int64
}

func (m *countingMetrics) CacheHit()                 { m.hits.Add(1) }
func (m *countingMetrics) CacheMiss()                { m.misses.Add(1) }
func (m *countingMetrics) CacheEviction()            { m.evictions.Add(1) }
func (m *countingMetrics) CacheEntriesAdd(delta int) { m.entries.Add(int64(delta)) }
func (m *countingMetrics) WriteElided()              { m.elided.Add(1) }

func (m *countingMetrics) BackingDuration(string) metrics.Timer { return metrics.NopTimer() }
func (m *countingMetrics) BackingError(op string) {
	c, _ := m.backingErrs.LoadOrStore(op, new(atomic.Int64))
	c.(*atomic.Int64).Add(1)
}

func (m *countingMetrics) errs(op string) int64 {
	c, ok := m.backingErrs.Load(op)
	if !ok {
		return 0
	}
	return c.(*atomic.Int64).Load()
}

var _ Metrics = (*countingMetrics)(nil)

func openTestStore(t *testing.T, opts ...Option) (*Store, *kvtest.Recorder) {
	t.Helper()
	rec := kvtest.NewRecorder(kv.NewMemStore())
	s, err := Open(t.Context(), rec, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, rec
}

func requireGet(t *testing.T, s *Store, key string, want string) {
	t.Helper()
	v, ok, err := s.Get(t.Context(), key)
	require.NoError(t, err)
	require.True(t, ok, "expected %s to be found", key)
	require.Equal(t, want, string(v))
}

func requireMissing(t *testing.T, s *Store, key string) {
	t.Helper()
	_, ok, err := s.Get(t.Context(), key)
	require.NoError(t, err)
	require.False(t, ok, "expected %s to be missing", key)
}

func TestStore_RoundTrip(t *testing.T) {
	s, rec := openTestStore(t)

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	requireGet(t, s, "k", "v")
	require.Equal(t, 0, rec.Gets(), "served from cache")

	requireMissing(t, s, "nope")
	require.Equal(t, 1, rec.Gets())
}

func TestStore_RoundTripFromBacking(t *testing.T) {
	s, rec := openTestStore(t, WithCapacity(1))

	require.NoError(t, s.Put(t.Context(), "a", []byte("1")))
	require.NoError(t, s.Put(t.Context(), "b", []byte("2"))) // evicts a from the cache
	require.Equal(t, 1, s.Len())

	requireGet(t, s, "a", "1")
	require.Equal(t, 1, rec.Gets(), "a came from the backing store")

	requireGet(t, s, "a", "1")
	require.Equal(t, 1, rec.Gets(), "a was filled into the cache")
}

func TestStore_GetMissFillsCache(t *testing.T) {
	backing := kv.NewMemStore()
	require.NoError(t, backing.Put(t.Context(), "x", []byte("42")))

	rec := kvtest.NewRecorder(backing)
	s, err := Open(t.Context(), rec, WithPreload(false))
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())

	requireGet(t, s, "x", "42")
	requireGet(t, s, "x", "42")
	require.Equal(t, 1, rec.Gets())
	require.Equal(t, 1, s.Len())
}

func TestStore_WriteElision(t *testing.T) {
	m := &countingMetrics{}
	s, rec := openTestStore(t, WithMetrics(m))

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	require.Equal(t, 1, rec.Puts())

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	require.Equal(t, 1, rec.Puts(), "identical cached value must not be written")
	require.EqualValues(t, 1, m.elided.Load())

	require.NoError(t, s.Put(t.Context(), "k", []byte("v2")))
	require.Equal(t, 2, rec.Puts(), "changed value is written exactly once")
	requireGet(t, s, "k", "v2")
}

func TestStore_PutOnCacheMissAlwaysWrites(t *testing.T) {
	backing := kv.NewMemStore()
	require.NoError(t, backing.Put(t.Context(), "k", []byte("v")))

	rec := kvtest.NewRecorder(backing)
	s, err := Open(t.Context(), rec, WithPreload(false))
	require.NoError(t, err)

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	require.Equal(t, 1, rec.Puts())
}

func TestStore_DeletePropagation(t *testing.T) {
	s, rec := openTestStore(t)

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	requireGet(t, s, "k", "v")

	require.NoError(t, s.Delete(t.Context(), "k"))
	require.Equal(t, 1, rec.Deletes())
	requireMissing(t, s, "k")

	_, err := rec.Get(t.Context(), "k")
	require.ErrorIs(t, err, kv.ErrNotFound)

	// uncached keys are still deleted from the backing store
	require.NoError(t, s.Delete(t.Context(), "never-cached"))
	require.Equal(t, 2, rec.Deletes())
}

func TestStore_EvictionOrder(t *testing.T) {
	s, rec := openTestStore(t, WithCapacity(2))

	require.NoError(t, s.Put(t.Context(), "a", []byte("1")))
	require.NoError(t, s.Put(t.Context(), "b", []byte("2")))
	requireGet(t, s, "a", "1") // promote a
	require.NoError(t, s.Put(t.Context(), "c", []byte("3")))

	rec.Reset()
	requireGet(t, s, "a", "1")
	requireGet(t, s, "c", "3")
	require.Equal(t, 0, rec.Gets(), "a and c are cached")

	requireGet(t, s, "b", "2")
	require.Equal(t, 1, rec.Gets(), "b was evicted")
}

func TestStore_FailedPutInvalidatesCache(t *testing.T) {
	m := &countingMetrics{}
	s, rec := openTestStore(t, WithMetrics(m))
	boom := errors.New("disk full")

	require.NoError(t, s.Put(t.Context(), "k", []byte("old")))
	require.Equal(t, 1, s.Len())

	rec.FailPuts(boom)
	err := s.Put(t.Context(), "k", []byte("new"))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, s.Len(), "failed write drops the cache entry")
	require.EqualValues(t, 1, m.errs("put"))

	rec.FailPuts(nil)
	requireGet(t, s, "k", "old")
}

func TestStore_FailedPutOnMissLeavesCacheEmpty(t *testing.T) {
	s, rec := openTestStore(t)
	rec.FailPuts(errors.New("boom"))

	require.Error(t, s.Put(t.Context(), "k", []byte("v")))
	require.Equal(t, 0, s.Len())

	rec.FailPuts(nil)
	requireMissing(t, s, "k")
}

func TestStore_FailedDeleteInvalidatesCache(t *testing.T) {
	s, rec := openTestStore(t)
	boom := errors.New("io error")

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))

	rec.FailDeletes(boom)
	require.ErrorIs(t, s.Delete(t.Context(), "k"), boom)
	require.Equal(t, 0, s.Len())

	// the backing store still has it, so a read brings it back
	rec.FailDeletes(nil)
	requireGet(t, s, "k", "v")
}

func TestStore_FailedGetLeavesCacheUntouched(t *testing.T) {
	s, rec := openTestStore(t, WithCapacity(2))
	boom := errors.New("timeout")

	require.NoError(t, s.Put(t.Context(), "a", []byte("1")))
	require.NoError(t, s.Put(t.Context(), "b", []byte("2")))

	rec.FailGets(boom)
	_, _, err := s.Get(t.Context(), "c")
	require.ErrorIs(t, err, boom)

	// hits keep working while the backing store is failing
	requireGet(t, s, "a", "1")
	requireGet(t, s, "b", "2")
	require.Equal(t, 2, s.Len())
}

func TestStore_Preload(t *testing.T) {
	backing := kv.NewMemStore()
	for _, k := range []string{"e", "d", "c", "b", "a"} {
		require.NoError(t, backing.Put(t.Context(), k, []byte("v-"+k)))
	}

	rec := kvtest.NewRecorder(backing)
	s, err := Open(t.Context(), rec, WithCapacity(3))
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	// iteration order is by key, so a, b and c were preloaded
	for _, k := range []string{"a", "b", "c"} {
		requireGet(t, s, k, "v-"+k)
	}
	require.Equal(t, 0, rec.Gets())

	requireGet(t, s, "e", "v-e")
	require.Equal(t, 1, rec.Gets())
}

func TestStore_PreloadDisabled(t *testing.T) {
	backing := kv.NewMemStore()
	require.NoError(t, backing.Put(t.Context(), "a", []byte("1")))

	s, err := Open(t.Context(), backing, WithPreload(false))
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
}

type failingIterStore struct {
	*kv.MemStore
	err error
}

func (f *failingIterStore) Iterate(context.Context, func(string, []byte) bool) error {
	return f.err
}

func TestStore_PreloadError(t *testing.T) {
	boom := errors.New("corrupt")
	_, err := Open(t.Context(), &failingIterStore{MemStore: kv.NewMemStore(), err: boom})
	require.ErrorIs(t, err, ErrOpen)
	require.ErrorIs(t, err, boom)
}

type closableStore struct {
	*kv.MemStore
	closed atomic.Int32
}

func (c *closableStore) Close() error {
	c.closed.Add(1)
	return nil
}

func TestOpenWith(t *testing.T) {
	t.Run("open error", func(t *testing.T) {
		boom := errors.New("permission denied")
		_, err := OpenWith(t.Context(), func(context.Context, string, bool) (kv.Store, error) {
			return nil, boom
		}, "/nope", false)
		require.ErrorIs(t, err, ErrOpen)
		require.ErrorIs(t, err, boom)
	})

	t.Run("owns backing", func(t *testing.T) {
		backing := &closableStore{MemStore: kv.NewMemStore()}
		var gotLocation string
		var gotCreate bool
		s, err := OpenWith(t.Context(), func(_ context.Context, location string, create bool) (kv.Store, error) {
			gotLocation, gotCreate = location, create
			return backing, nil
		}, "db", true)
		require.NoError(t, err)
		require.Equal(t, "db", gotLocation)
		require.True(t, gotCreate)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		require.EqualValues(t, 1, backing.closed.Load())
	})

	t.Run("does not close borrowed backing", func(t *testing.T) {
		backing := &closableStore{MemStore: kv.NewMemStore()}
		s, err := Open(t.Context(), backing)
		require.NoError(t, err)
		require.NoError(t, s.Close())
		require.EqualValues(t, 0, backing.closed.Load())
	})

	t.Run("nil backing", func(t *testing.T) {
		_, err := Open(t.Context(), nil)
		require.ErrorIs(t, err, ErrOpen)
	})
}

func TestStore_Closed(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Close())

	_, _, err := s.Get(t.Context(), "k")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Put(t.Context(), "k", []byte("v")), ErrClosed)
	require.ErrorIs(t, s.Delete(t.Context(), "k"), ErrClosed)
}

func TestStore_ValuesAreCopied(t *testing.T) {
	s, _ := openTestStore(t)

	buf := []byte("value")
	require.NoError(t, s.Put(t.Context(), "k", buf))
	buf[0] = 'X'
	requireGet(t, s, "k", "value")

	v, _, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	v[0] = 'Y'
	requireGet(t, s, "k", "value")
}

func TestStore_NopCache(t *testing.T) {
	s, rec := openTestStore(t, WithCache(cache.NewNop[string, []byte]()))

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	require.Equal(t, 2, rec.Puts(), "nothing cached, nothing elided")

	requireGet(t, s, "k", "v")
	require.Equal(t, 1, rec.Gets())
}

func TestStore_Metrics(t *testing.T) {
	m := &countingMetrics{}
	s, _ := openTestStore(t, WithCapacity(2), WithMetrics(m))

	require.NoError(t, s.Put(t.Context(), "a", []byte("1")))
	require.NoError(t, s.Put(t.Context(), "b", []byte("2")))
	require.NoError(t, s.Put(t.Context(), "c", []byte("3")))
	requireGet(t, s, "c", "3")
	requireGet(t, s, "a", "1")
	requireMissing(t, s, "z")

	require.EqualValues(t, 1, m.hits.Load())
	require.EqualValues(t, 2, m.misses.Load())
	require.EqualValues(t, 2, m.evictions.Load()) // a by c, then b by a's refill
	require.EqualValues(t, 2, m.entries.Load())

	require.NoError(t, s.Delete(t.Context(), "a"))
	require.EqualValues(t, 1, m.entries.Load())
}

// TestStore_ConcurrentSameKey hammers a handful of keys from many goroutines
// and checks that cache and backing store agree afterwards.
func TestStore_ConcurrentSameKey(t *testing.T) {
	s, rec := openTestStore(t, WithCapacity(4))

	const workers = 16
	const ops = 500
	keys := []string{"k0", "k1", "k2", "k3", "k4", "k5"}

	g, ctx := errgroup.WithContext(t.Context())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < ops; i++ {
				key := keys[(w+i)%len(keys)]
				var err error
				switch (w * i) % 3 {
				case 0:
					_, _, err = s.Get(ctx, key)
				case 1:
					err = s.Put(ctx, key, []byte(strconv.Itoa(w)))
				case 2:
					err = s.Delete(ctx, key)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	s.mu.Lock()
	defer s.mu.Unlock()
	require.LessOrEqual(t, s.cache.Len(), 4)
	for _, key := range keys {
		cached, ok := s.cache.(*cache.LRU[string, []byte]).Peek(key)
		if !ok {
			continue
		}
		durable, err := rec.Get(t.Context(), key)
		require.NoError(t, err, "cached key %s must exist in the backing store", key)
		require.Equal(t, durable, cached, "cache and backing store disagree on %s", key)
	}
}
