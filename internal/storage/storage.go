// Package storage defines the repository interfaces consumed by the query
// layer. Implementations live in subpackages; the query layer is agnostic
// to whether metrics come from memory or a persisted store.
package storage

import (
	"context"
	"math"

	phenology "github.com/arborlab/phenotrack/internal"
)

// MetricStore is the durable (or computed) source of phenology metrics.
// Reads return phenology.ErrNotFound when no metric exists for the query;
// any other error is an internal failure and is surfaced unchanged.
type MetricStore interface {
	// GetMetricForLocation returns the metric for one grid cell and year.
	GetMetricForLocation(ctx context.Context, product string, loc phenology.Location, year int) (*phenology.Metric, error)
	// GetTimeseriesForLocation returns per-year metrics for one cell,
	// ordered by ascending year. An empty range is not an error.
	GetTimeseriesForLocation(ctx context.Context, product string, loc phenology.Location, startYear, endYear int) ([]phenology.Metric, error)
	// GetAreaStats aggregates season length over all cells inside the
	// GeoJSON polygon for one product and year.
	GetAreaStats(ctx context.Context, product string, year int, polygonGeoJSON []byte, filters phenology.AreaFilters) (*phenology.AreaStats, error)
	// AddMetric inserts or replaces the metric for the cell the metric's
	// location falls in.
	AddMetric(ctx context.Context, product string, m phenology.Metric) error
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// CellPrecision is the number of decimal digits a coordinate is rounded to
// when addressing a metric cell. Matches the cache key normalization so a
// cached metric and its backing row always describe the same cell.
const CellPrecision = 6

// SnapCoord rounds a coordinate to the cell grid.
func SnapCoord(v float64) float64 {
	const pow = 1e6 // 10^CellPrecision
	return math.Round(v*pow) / pow
}

// Snap rounds a location onto the cell grid.
func Snap(loc phenology.Location) phenology.Location {
	return phenology.Location{Lat: SnapCoord(loc.Lat), Lon: SnapCoord(loc.Lon)}
}
