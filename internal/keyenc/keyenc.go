// Package keyenc maps arbitrary byte keys onto the restricted alphabets of
// NATS subjects and S3 object keys. Encoding preserves byte order, so
// listing encoded keys lexicographically yields the original key order.
package keyenc

import (
	"encoding/hex"
	"errors"
	"strings"
)

const prefix = "k"

var ErrInvalid = errors.New("keyenc: not an encoded key")

// Encode returns "k" followed by the lowercase hex of key. The prefix keeps
// the empty key representable.
func Encode(key string) string {
	return prefix + hex.EncodeToString([]byte(key))
}

func Decode(s string) (string, error) {
	raw, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return "", ErrInvalid
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", errors.Join(ErrInvalid, err)
	}
	return string(b), nil
}
