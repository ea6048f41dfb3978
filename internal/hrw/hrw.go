// Package hrw implements rendezvous (highest random weight) hashing over a
// fixed number of buckets.
package hrw

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Best returns the bucket in [0, n) with the highest score for key. seed is
// optional and lets independent deployments spread the same keys
// differently. Best returns -1 when n <= 0.
func Best(key string, n int, seed string) int {
	best, bestScore := -1, uint64(0)
	for i := 0; i < n; i++ {
		if s := score64(key, uint32(i), seed); best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func score64(key string, bucket uint32, seed string) uint64 {
	// 8-byte digest => uint64 score
	h, _ := blake2b.New(8, nil)

	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}

	h.Write([]byte(key))
	h.Write([]byte{0})

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], bucket)
	h.Write(b[:])

	return binary.BigEndian.Uint64(h.Sum(nil))
}
