package shard

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharders(t *testing.T) {
	for name, s := range map[string]Sharder{
		"distributed": Distributed(8),
		"rendezvous":  Rendezvous(8, "test"),
	} {
		t.Run(name, func(t *testing.T) {
			used := map[int]bool{}
			for i := 0; i < 1000; i++ {
				key := strconv.Itoa(i)
				n := s.GetShardForKey(key)
				require.GreaterOrEqual(t, n, 0)
				require.Less(t, n, 8)
				require.Equal(t, n, s.GetShardForKey(key))
				used[n] = true
			}
			require.Len(t, used, 8)
		})
	}
}
