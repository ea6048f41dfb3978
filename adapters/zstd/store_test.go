package zstd

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/lrukv-go/core/kvstore"
	"github.com/codewandler/lrukv-go/ports/kv"
	"github.com/codewandler/lrukv-go/ports/kv/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.RunStoreSuite(t, func(t *testing.T) kv.Store {
		s, err := Wrap(kv.NewMemStore(), 0)
		require.NoError(t, err)
		return s
	})
}

func TestStore_CompressesAtRest(t *testing.T) {
	inner := kv.NewMemStore()
	s, err := Wrap(inner, DefaultLevel)
	require.NoError(t, err)

	value := bytes.Repeat([]byte("lorem ipsum "), 512)
	require.NoError(t, s.Put(t.Context(), "k", value))

	raw, err := inner.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Less(t, len(raw), len(value)/10)

	got, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestStore_Corrupt(t *testing.T) {
	inner := kv.NewMemStore()
	require.NoError(t, inner.Put(t.Context(), "k", []byte("not zstd")))

	s, err := Wrap(inner, 0)
	require.NoError(t, err)

	_, err = s.Get(t.Context(), "k")
	require.ErrorContains(t, err, "decompress")

	err = s.(kv.Iterable).Iterate(t.Context(), func(string, []byte) bool { return true })
	require.Error(t, err)
}

type plainStore struct{ kv.Store }

type closer struct {
	*kv.MemStore
	closed atomic.Int32
}

func (c *closer) Close() error {
	c.closed.Add(1)
	return nil
}

var _ io.Closer = (*closer)(nil)

func TestWrap_IterableOnlyWhenInnerIs(t *testing.T) {
	s, err := Wrap(plainStore{kv.NewMemStore()}, 0)
	require.NoError(t, err)
	_, ok := s.(kv.Iterable)
	require.False(t, ok)

	s, err = Wrap(kv.NewMemStore(), 0)
	require.NoError(t, err)
	_, ok = s.(kv.Iterable)
	require.True(t, ok)
}

func TestOpener_PreloadsDecompressed(t *testing.T) {
	inner := &closer{MemStore: kv.NewMemStore()}
	open := Opener(func(context.Context, string, bool) (kv.Store, error) { return inner, nil }, 0)

	st, err := kvstore.OpenWith(t.Context(), open, "mem", true)
	require.NoError(t, err)
	require.NoError(t, st.Put(t.Context(), "apple", []byte("red")))
	require.NoError(t, st.Close())
	require.EqualValues(t, 1, inner.closed.Load())

	st, err = kvstore.OpenWith(t.Context(), open, "mem", false)
	require.NoError(t, err)
	defer st.Close()
	require.Equal(t, 1, st.Len())

	v, ok, err := st.Get(t.Context(), "apple")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("red"), v)
}
