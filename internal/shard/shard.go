package shard

import (
	"github.com/cespare/xxhash/v2"

	"github.com/codewandler/lrukv-go/internal/hrw"
)

type Func func(key string) int

func ForKey(key string, shardCount int) int {
	return int(xxhash.Sum64String(key) % uint64(shardCount))
}

type Sharder interface {
	GetShardForKey(key string) int
}

type fnSharder struct {
	fn Func
}

func NewSharder(fn Func) Sharder {
	return &fnSharder{fn: fn}
}

func (s *fnSharder) GetShardForKey(key string) int { return s.fn(key) }

// Distributed spreads keys over count shards by xxhash.
func Distributed(count int) Sharder {
	return NewSharder(func(key string) int {
		return ForKey(key, count)
	})
}

// Rendezvous spreads keys over count shards by rendezvous hashing, so
// changing count only moves the keys that land on added or removed shards.
func Rendezvous(count int, seed string) Sharder {
	return NewSharder(func(key string) int {
		return hrw.Best(key, count, seed)
	})
}
