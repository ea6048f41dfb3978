package kvtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/lrukv-go/ports/kv"
)

// RunStoreSuite checks the kv.Store contract. open must return a fresh,
// empty store on every call.
func RunStoreSuite(t *testing.T, open func(t *testing.T) kv.Store) {
	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(t.Context(), "missing")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("put get", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(t.Context(), "apple", []byte("red")))

		v, err := s.Get(t.Context(), "apple")
		require.NoError(t, err)
		require.Equal(t, []byte("red"), v)
	})

	t.Run("overwrite", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(t.Context(), "apple", []byte("red")))
		require.NoError(t, s.Put(t.Context(), "apple", []byte("green")))

		v, err := s.Get(t.Context(), "apple")
		require.NoError(t, err)
		require.Equal(t, []byte("green"), v)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(t.Context(), "apple", []byte("red")))
		require.NoError(t, s.Delete(t.Context(), "apple"))

		_, err := s.Get(t.Context(), "apple")
		require.ErrorIs(t, err, kv.ErrNotFound)

		// deleting again is a no-op
		require.NoError(t, s.Delete(t.Context(), "apple"))
	})

	t.Run("binary", func(t *testing.T) {
		s := open(t)
		key := "\x00key\xff"
		val := []byte{0, 1, 2, 0xfe, 0xff}
		require.NoError(t, s.Put(t.Context(), key, val))

		v, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		require.Equal(t, val, v)
	})

	t.Run("empty value", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Put(t.Context(), "empty", []byte{}))

		v, err := s.Get(t.Context(), "empty")
		require.NoError(t, err)
		require.Len(t, v, 0)
	})

	t.Run("value not aliased", func(t *testing.T) {
		s := open(t)
		buf := []byte("red")
		require.NoError(t, s.Put(t.Context(), "apple", buf))
		buf[0] = 'X'

		v, err := s.Get(t.Context(), "apple")
		require.NoError(t, err)
		require.Equal(t, []byte("red"), v)
	})

	t.Run("iterate", func(t *testing.T) {
		s := open(t)
		it, ok := s.(kv.Iterable)
		if !ok {
			t.Skip("store is not iterable")
		}

		for _, k := range []string{"c", "a", "b"} {
			require.NoError(t, s.Put(t.Context(), k, []byte("v-"+k)))
		}

		var keys []string
		require.NoError(t, it.Iterate(t.Context(), func(key string, value []byte) bool {
			require.Equal(t, []byte("v-"+key), value)
			keys = append(keys, key)
			return true
		}))
		require.Equal(t, []string{"a", "b", "c"}, keys)

		// restartable, and stops when fn says so
		keys = keys[:0]
		require.NoError(t, it.Iterate(t.Context(), func(key string, _ []byte) bool {
			keys = append(keys, key)
			return len(keys) < 2
		}))
		require.Equal(t, []string{"a", "b"}, keys)
	})
}
