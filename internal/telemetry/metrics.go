// Package telemetry provides observability primitives for Phenotrack.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	StoreDuration   *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheEvictions  *prometheus.CounterVec
	CacheSize       prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phenotrack",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "phenotrack",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "phenotrack",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "phenotrack",
			Name:                            "store_duration_seconds",
			Help:                            "Metric store call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"operation"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phenotrack",
			Name:      "cache_hits_total",
			Help:      "Total point-metric cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phenotrack",
			Name:      "cache_misses_total",
			Help:      "Total point-metric cache misses.",
		}),

		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phenotrack",
			Name:      "cache_evictions_total",
			Help:      "Total point-metric cache entries dropped.",
		}, []string{"reason"}), // "capacity" or "expired"

		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "phenotrack",
			Name:      "cache_size",
			Help:      "Current number of point-metric cache entries.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.StoreDuration,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheSize,
	)

	return m
}

// CountEviction is a cache eviction hook counting drops by reason.
func (m *Metrics) CountEviction(_ string, expired bool) {
	if expired {
		m.CacheEvictions.WithLabelValues("expired").Inc()
	} else {
		m.CacheEvictions.WithLabelValues("capacity").Inc()
	}
}
