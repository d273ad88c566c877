package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const cacheStatsInterval = 15 * time.Second

// Sizer reports the current entry count of a cache.
type Sizer interface {
	Len() int
}

// CacheStatsWorker periodically publishes the point-metric cache size to
// a gauge. Expiry in the cache is lazy, so the gauge counts physically
// held entries, not live ones.
type CacheStatsWorker struct {
	cache    Sizer
	gauge    prometheus.Gauge
	interval time.Duration
}

// NewCacheStatsWorker creates a CacheStatsWorker.
func NewCacheStatsWorker(cache Sizer, gauge prometheus.Gauge) *CacheStatsWorker {
	return &CacheStatsWorker{cache: cache, gauge: gauge, interval: cacheStatsInterval}
}

// Name returns the worker identifier.
func (w *CacheStatsWorker) Name() string { return "cache_stats" }

// Run publishes the cache size until ctx is cancelled.
func (w *CacheStatsWorker) Run(ctx context.Context) error {
	w.gauge.Set(float64(w.cache.Len()))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.gauge.Set(float64(w.cache.Len()))
		case <-ctx.Done():
			return nil
		}
	}
}
