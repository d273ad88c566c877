// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	phenology "github.com/arborlab/phenotrack/internal"
	"github.com/arborlab/phenotrack/internal/geo"
	"github.com/arborlab/phenotrack/internal/storage"
)

type metricKey struct {
	product string
	year    int
	lat     float64
	lon     float64
}

// FakeMetricStore is an in-memory storage.MetricStore that counts every
// call, so tests can assert that a cache hit suppressed the store call
// and that bypass paths always reach it.
type FakeMetricStore struct {
	mu      sync.RWMutex
	metrics map[metricKey]phenology.Metric

	// Err, when set, is returned by every read operation.
	Err error

	PointCalls      atomic.Int64
	TimeseriesCalls atomic.Int64
	AreaCalls       atomic.Int64
}

// NewFakeMetricStore returns an empty FakeMetricStore.
func NewFakeMetricStore() *FakeMetricStore {
	return &FakeMetricStore{metrics: make(map[metricKey]phenology.Metric)}
}

func (s *FakeMetricStore) key(product string, loc phenology.Location, year int) metricKey {
	cell := storage.Snap(loc)
	return metricKey{product: product, year: year, lat: cell.Lat, lon: cell.Lon}
}

// AddMetric stores a metric under the cell of its location.
func (s *FakeMetricStore) AddMetric(_ context.Context, product string, m phenology.Metric) error {
	s.mu.Lock()
	s.metrics[s.key(product, m.Location, m.Year)] = m
	s.mu.Unlock()
	return nil
}

// GetMetricForLocation returns the stored metric or phenology.ErrNotFound.
func (s *FakeMetricStore) GetMetricForLocation(_ context.Context, product string, loc phenology.Location, year int) (*phenology.Metric, error) {
	s.PointCalls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	m, ok := s.metrics[s.key(product, loc, year)]
	s.mu.RUnlock()
	if !ok {
		return nil, phenology.ErrNotFound
	}
	return &m, nil
}

// GetTimeseriesForLocation returns stored metrics ordered by year.
func (s *FakeMetricStore) GetTimeseriesForLocation(_ context.Context, product string, loc phenology.Location, startYear, endYear int) ([]phenology.Metric, error) {
	s.TimeseriesCalls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []phenology.Metric
	for year := startYear; year <= endYear; year++ {
		if m, ok := s.metrics[s.key(product, loc, year)]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetAreaStats aggregates stored metrics inside the polygon.
func (s *FakeMetricStore) GetAreaStats(_ context.Context, product string, year int, polygonGeoJSON []byte, filters phenology.AreaFilters) (*phenology.AreaStats, error) {
	s.AreaCalls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	poly, err := geo.ParsePolygon(polygonGeoJSON)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	var inside []phenology.Metric
	for k, m := range s.metrics {
		if k.product == product && k.year == year && poly.Contains(m.Location) {
			inside = append(inside, m)
		}
	}
	s.mu.RUnlock()
	return storage.AggregateSeasonLength(product, year, inside, filters)
}

// Delete removes the metric for the given cell, simulating external loss.
func (s *FakeMetricStore) Delete(product string, loc phenology.Location, year int) {
	s.mu.Lock()
	delete(s.metrics, s.key(product, loc, year))
	s.mu.Unlock()
}

// Ping always succeeds.
func (s *FakeMetricStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *FakeMetricStore) Close() error { return nil }
