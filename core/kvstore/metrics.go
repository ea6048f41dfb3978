package kvstore

import "github.com/codewandler/lrukv-go/core/metrics"

// Metrics is the instrumentation surface of the store. Implementations must
// be safe for concurrent use; shards of a Sharded store share one instance.
type Metrics interface {
	// Cache
	CacheHit()
	CacheMiss()
	CacheEviction()
	// CacheEntriesAdd reports a change in the number of resident entries.
	CacheEntriesAdd(delta int)

	// WriteElided counts Puts skipped because the cached value already matched.
	WriteElided()

	// Backing store operations ("get", "put", "delete", "iterate")
	BackingDuration(op string) metrics.Timer
	BackingError(op string)
}

// nopMetrics is a no-op implementation of Metrics.
type nopMetrics struct{}

func (nopMetrics) CacheHit()           {}
func (nopMetrics) CacheMiss()          {}
func (nopMetrics) CacheEviction()      {}
func (nopMetrics) CacheEntriesAdd(int) {}
func (nopMetrics) WriteElided()        {}

func (nopMetrics) BackingDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) BackingError(string)                  {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
