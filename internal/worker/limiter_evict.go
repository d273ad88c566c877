package worker

import (
	"context"
	"log/slog"
	"time"
)

// StaleEvicter drops idle per-client state and reports how much it
// removed.
type StaleEvicter interface {
	EvictStale(cutoff time.Time) int
}

// LimiterEvictWorker periodically drops rate limiters for clients that
// have gone quiet, keeping the registry from growing with one-off
// callers.
type LimiterEvictWorker struct {
	registry StaleEvicter
	interval time.Duration
	maxIdle  time.Duration
}

// NewLimiterEvictWorker sweeps registry every interval, evicting
// clients idle longer than maxIdle.
func NewLimiterEvictWorker(registry StaleEvicter, interval, maxIdle time.Duration) *LimiterEvictWorker {
	return &LimiterEvictWorker{registry: registry, interval: interval, maxIdle: maxIdle}
}

func (w *LimiterEvictWorker) Name() string { return "limiter_evict" }

// Run sweeps until ctx is cancelled.
func (w *LimiterEvictWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := w.registry.EvictStale(time.Now().Add(-w.maxIdle)); n > 0 {
				slog.Debug("evicted stale rate limiters", "count", n)
			}
		}
	}
}
