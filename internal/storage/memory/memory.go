// Package memory implements storage.MetricStore with an in-process map.
// It backs development and test deployments where no database is wired.
package memory

import (
	"context"
	"sync"

	phenology "github.com/arborlab/phenotrack/internal"
	"github.com/arborlab/phenotrack/internal/geo"
	"github.com/arborlab/phenotrack/internal/storage"
)

// cellKey addresses one metric cell. Coordinates are snapped to the grid
// before use so lookups tolerate float noise the same way keys do.
type cellKey struct {
	product string
	year    int
	lat     float64
	lon     float64
}

// Store is an in-memory metric repository safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	metrics map[cellKey]phenology.Metric
}

// New returns an empty Store.
func New() *Store {
	return &Store{metrics: make(map[cellKey]phenology.Metric)}
}

func key(product string, loc phenology.Location, year int) cellKey {
	snapped := storage.Snap(loc)
	return cellKey{product: product, year: year, lat: snapped.Lat, lon: snapped.Lon}
}

// AddMetric inserts or replaces the metric for the cell of m.Location.
func (s *Store) AddMetric(_ context.Context, product string, m phenology.Metric) error {
	s.mu.Lock()
	s.metrics[key(product, m.Location, m.Year)] = m
	s.mu.Unlock()
	return nil
}

// GetMetricForLocation returns the metric for one cell and year.
func (s *Store) GetMetricForLocation(_ context.Context, product string, loc phenology.Location, year int) (*phenology.Metric, error) {
	s.mu.RLock()
	m, ok := s.metrics[key(product, loc, year)]
	s.mu.RUnlock()
	if !ok {
		return nil, phenology.ErrNotFound
	}
	return &m, nil
}

// GetTimeseriesForLocation returns per-year metrics ordered by year.
// Years without a metric are skipped; an empty result is not an error.
func (s *Store) GetTimeseriesForLocation(_ context.Context, product string, loc phenology.Location, startYear, endYear int) ([]phenology.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []phenology.Metric
	for year := startYear; year <= endYear; year++ {
		if m, ok := s.metrics[key(product, loc, year)]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetAreaStats aggregates season length over all cells inside the polygon.
func (s *Store) GetAreaStats(_ context.Context, product string, year int, polygonGeoJSON []byte, filters phenology.AreaFilters) (*phenology.AreaStats, error) {
	poly, err := geo.ParsePolygon(polygonGeoJSON)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var inside []phenology.Metric
	for k, m := range s.metrics {
		if k.product != product || k.year != year {
			continue
		}
		if poly.Contains(m.Location) {
			inside = append(inside, m)
		}
	}
	s.mu.RUnlock()

	return storage.AggregateSeasonLength(product, year, inside, filters)
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
