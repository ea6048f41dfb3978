package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/lrukv-go/core/kvstore"
	"github.com/codewandler/lrukv-go/core/metrics"
)

// storeMetrics implements kvstore.Metrics using Prometheus.
type storeMetrics struct {
	hits            prometheus.Counter
	misses          prometheus.Counter
	evictions       prometheus.Counter
	elisions        prometheus.Counter
	entries         prometheus.Gauge
	backingDuration *prometheus.HistogramVec
	backingErrors   *prometheus.CounterVec
}

// NewStoreMetrics creates a new Prometheus implementation of kvstore.Metrics.
// Shards of a kvstore.Sharded share the instance, so the entries gauge
// tracks the total over all shards.
func NewStoreMetrics(reg prometheus.Registerer) kvstore.Metrics {
	m := &storeMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lrukv_cache_hits_total",
			Help: "Total number of reads answered from the cache",
		}),

		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lrukv_cache_misses_total",
			Help: "Total number of reads that went to the backing store",
		}),

		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lrukv_cache_evictions_total",
			Help: "Total number of entries evicted to make room",
		}),

		elisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lrukv_write_elisions_total",
			Help: "Total number of writes skipped because the cached value was identical",
		}),

		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lrukv_cache_entries",
			Help: "Current number of cached entries",
		}),

		backingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lrukv_backing_duration_seconds",
			Help:    "Backing store operation duration in seconds",
			Buckets: defaultBuckets,
		}, []string{"op"}),

		backingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lrukv_backing_errors_total",
			Help: "Total number of failed backing store operations",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.hits,
		m.misses,
		m.evictions,
		m.elisions,
		m.entries,
		m.backingDuration,
		m.backingErrors,
	)

	return m
}

func (m *storeMetrics) CacheHit()      { m.hits.Inc() }
func (m *storeMetrics) CacheMiss()     { m.misses.Inc() }
func (m *storeMetrics) CacheEviction() { m.evictions.Inc() }
func (m *storeMetrics) WriteElided()   { m.elisions.Inc() }

func (m *storeMetrics) CacheEntriesAdd(delta int) {
	m.entries.Add(float64(delta))
}

func (m *storeMetrics) BackingDuration(op string) metrics.Timer {
	return newTimer(m.backingDuration.WithLabelValues(op))
}

func (m *storeMetrics) BackingError(op string) {
	m.backingErrors.WithLabelValues(op).Inc()
}

var _ kvstore.Metrics = (*storeMetrics)(nil)
