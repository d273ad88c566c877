// Package query is the read-path application service: it composes an
// optional point-metric cache with a metric store and decides what is
// cacheable under which key.
package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	phenology "github.com/arborlab/phenotrack/internal"
	"github.com/arborlab/phenotrack/internal/cache"
	"github.com/arborlab/phenotrack/internal/storage"
	"github.com/arborlab/phenotrack/internal/telemetry"
)

// pointSource tags point-metric cache keys as served from the repository,
// keeping them disjoint from any future compute-backed keys.
const pointSource = "point-repo"

// PointCache is the cache shape the service consumes.
type PointCache = cache.TTLLRU[string, phenology.Metric]

// Service serves read-only phenology queries. It performs no retries, no
// coalescing, and no error translation: store errors reach the caller
// unchanged, including phenology.ErrNotFound for absence.
type Service struct {
	store   storage.MetricStore
	cache   *PointCache // nil disables caching
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New returns a Service. cache may be nil, in which case every call is a
// pass-through to the store. metrics may be nil.
func New(store storage.MetricStore, pointCache *PointCache, metrics *telemetry.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   pointCache,
		metrics: metrics,
		tracer:  telemetry.Tracer("query"),
	}
}

// GetPointMetric returns the metric for a single location and year.
//
// On a cache hit the store is not invoked. On a miss the store result is
// cached only when it is a metric: absence is never cached, so a write
// into the store becomes visible on the very next call instead of being
// masked until a TTL expires.
func (s *Service) GetPointMetric(ctx context.Context, product string, loc phenology.Location, year int) (*phenology.Metric, error) {
	ctx, span := s.tracer.Start(ctx, "GetPointMetric",
		trace.WithAttributes(attribute.String("product", product), attribute.Int("year", year)))
	defer span.End()

	var key string
	if s.cache != nil {
		key = cache.PointMetricKey(pointSource, product, year, loc, nil)
		if m, ok := s.cache.Get(key); ok {
			s.countHit(true)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &m, nil
		}
		s.countHit(false)
	}

	m, err := s.store.GetMetricForLocation(ctx, product, loc, year)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(key, *m)
	}
	return m, nil
}

// GetPointTimeseries returns per-year metrics for one location, ordered by
// year. It always reaches the store: range-keyed results are larger and
// less reusable than point results, so they are not cached.
func (s *Service) GetPointTimeseries(ctx context.Context, product string, loc phenology.Location, startYear, endYear int) ([]phenology.Metric, error) {
	ctx, span := s.tracer.Start(ctx, "GetPointTimeseries",
		trace.WithAttributes(attribute.String("product", product)))
	defer span.End()

	return s.store.GetTimeseriesForLocation(ctx, product, loc, startYear, endYear)
}

// GetAreaStats returns the aggregate over all cells inside the polygon.
// Like timeseries, it always reaches the store.
func (s *Service) GetAreaStats(ctx context.Context, product string, year int, polygonGeoJSON []byte, filters phenology.AreaFilters) (*phenology.AreaStats, error) {
	ctx, span := s.tracer.Start(ctx, "GetAreaStats",
		trace.WithAttributes(attribute.String("product", product), attribute.Int("year", year)))
	defer span.End()

	return s.store.GetAreaStats(ctx, product, year, polygonGeoJSON, filters)
}

func (s *Service) countHit(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.Inc()
	} else {
		s.metrics.CacheMisses.Inc()
	}
}
