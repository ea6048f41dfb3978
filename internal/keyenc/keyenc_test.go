package keyenc

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, k := range []string{"", "a", "user:123", "\x00\xff", "with space/and.dots"} {
		enc := Encode(k)
		require.Regexp(t, `^k[0-9a-f]*$`, enc)
		dec, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, k, dec)
	}
}

func TestOrderPreserved(t *testing.T) {
	keys := []string{"b", "a", "ab", "\x00", "\xff", "aa"}
	enc := make([]string, len(keys))
	for i, k := range keys {
		enc[i] = Encode(k)
	}
	slices.Sort(keys)
	slices.Sort(enc)
	for i := range keys {
		dec, err := Decode(enc[i])
		require.NoError(t, err)
		require.Equal(t, keys[i], dec)
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("x00")
	require.ErrorIs(t, err, ErrInvalid)
	_, err = Decode("kzz")
	require.ErrorIs(t, err, ErrInvalid)
}
