// Package metrics exposes the Tile Service's prometheus instruments for
// batch observability (spec §4.6 point 3), cache stats (§4.3), and
// backpressure warnings (§5).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge the Tile Service publishes. It is
// constructed once per process and threaded through constructors as a
// struct field, never a package global (spec §9 "Global state: the core
// has no process-wide singletons").
type Metrics struct {
	BatchesEmitted   prometheus.Counter
	BatchUpdateCount prometheus.Histogram
	BatchBytes       prometheus.Histogram

	CacheSize    prometheus.Gauge
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheEvicted prometheus.Counter

	BatcherPending       prometheus.Gauge
	BackpressureWarnings prometheus.Counter

	ConnectedViewers prometheus.Gauge
}

// New registers and returns a fresh Metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelmap_tile_batches_emitted_total",
			Help: "Total number of batches emitted to any viewer.",
		}),
		BatchUpdateCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxelmap_tile_batch_update_count",
			Help:    "Number of PendingUpdate records per emitted batch.",
			Buckets: prometheus.LinearBuckets(0, 5, 20),
		}),
		BatchBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxelmap_tile_batch_bytes",
			Help:    "Estimated serialized size of each emitted batch.",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12),
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxelmap_tile_cache_size",
			Help: "Current number of entries in TileCache.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelmap_tile_cache_hits_total",
			Help: "TileCache.Get calls that found an entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelmap_tile_cache_misses_total",
			Help: "TileCache.Get calls that found nothing.",
		}),
		CacheEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelmap_tile_cache_evicted_total",
			Help: "Entries evicted from TileCache under LRU pressure.",
		}),
		BatcherPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxelmap_tile_batcher_pending",
			Help: "Current number of distinct keys pending in UpdateBatcher.",
		}),
		BackpressureWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelmap_tile_backpressure_warnings_total",
			Help: "Times UpdateBatcher crossed the high-water mark (spec default 10000).",
		}),
		ConnectedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxelmap_tile_connected_viewers",
			Help: "Currently connected viewer count.",
		}),
	}

	reg.MustRegister(
		m.BatchesEmitted, m.BatchUpdateCount, m.BatchBytes,
		m.CacheSize, m.CacheHits, m.CacheMisses, m.CacheEvicted,
		m.BatcherPending, m.BackpressureWarnings, m.ConnectedViewers,
	)
	return m
}

// SampleCacheStats copies a cache.Stats snapshot into the gauges/counters
// that mirror it. Counters are monotonic so callers should pass deltas, not
// raw cumulative values, for Hits/Misses/Evicted.
func (m *Metrics) SampleCacheStats(size int, hitsDelta, missesDelta, evictedDelta uint64) {
	m.CacheSize.Set(float64(size))
	if hitsDelta > 0 {
		m.CacheHits.Add(float64(hitsDelta))
	}
	if missesDelta > 0 {
		m.CacheMisses.Add(float64(missesDelta))
	}
	if evictedDelta > 0 {
		m.CacheEvicted.Add(float64(evictedDelta))
	}
}
