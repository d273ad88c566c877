package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	phenology "github.com/arborlab/phenotrack/internal"
	"github.com/arborlab/phenotrack/internal/geo"
	"github.com/arborlab/phenotrack/internal/storage"
)

const metricColumns = "year, lat, lon, sos_date, eos_date, season_length, is_forest"

// AddMetric inserts or replaces the metric for the cell of m.Location.
func (s *Store) AddMetric(ctx context.Context, product string, m phenology.Metric) error {
	cell := storage.Snap(m.Location)
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO phenology_metrics
			(product, year, lat, lon, sos_date, eos_date, season_length, is_forest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product, year, lat, lon) DO UPDATE SET
			sos_date = excluded.sos_date,
			eos_date = excluded.eos_date,
			season_length = excluded.season_length,
			is_forest = excluded.is_forest`,
		product, m.Year, cell.Lat, cell.Lon,
		dateArg(m.SOSDate), dateArg(m.EOSDate), intArg(m.SeasonLength), boolToInt(m.IsForest),
	)
	return err
}

// GetMetricForLocation returns the metric for one cell and year.
func (s *Store) GetMetricForLocation(ctx context.Context, product string, loc phenology.Location, year int) (*phenology.Metric, error) {
	cell := storage.Snap(loc)
	row := s.read.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM phenology_metrics
		WHERE product = ? AND year = ? AND lat = ? AND lon = ?`,
		product, year, cell.Lat, cell.Lon)

	m, err := scanMetric(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, phenology.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query point metric: %w", err)
	}
	return m, nil
}

// GetTimeseriesForLocation returns per-year metrics ordered by year.
func (s *Store) GetTimeseriesForLocation(ctx context.Context, product string, loc phenology.Location, startYear, endYear int) ([]phenology.Metric, error) {
	cell := storage.Snap(loc)
	rows, err := s.read.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM phenology_metrics
		WHERE product = ? AND lat = ? AND lon = ? AND year BETWEEN ? AND ?
		ORDER BY year ASC`,
		product, cell.Lat, cell.Lon, startYear, endYear)
	if err != nil {
		return nil, fmt.Errorf("query timeseries: %w", err)
	}
	defer rows.Close()

	var out []phenology.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeseries row: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetAreaStats aggregates season length over all cells inside the polygon.
// SQL prefilters by bounding box; the exact polygon test runs in Go.
func (s *Store) GetAreaStats(ctx context.Context, product string, year int, polygonGeoJSON []byte, filters phenology.AreaFilters) (*phenology.AreaStats, error) {
	poly, err := geo.ParsePolygon(polygonGeoJSON)
	if err != nil {
		return nil, err
	}
	minLon, minLat, maxLon, maxLat := poly.Bounds()

	rows, err := s.read.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM phenology_metrics
		WHERE product = ? AND year = ?
		  AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`,
		product, year, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("query area cells: %w", err)
	}
	defer rows.Close()

	var inside []phenology.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan area cell: %w", err)
		}
		if poly.Contains(m.Location) {
			inside = append(inside, *m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return storage.AggregateSeasonLength(product, year, inside, filters)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMetric(row scanner) (*phenology.Metric, error) {
	var (
		m            phenology.Metric
		sosDate      sql.NullString
		eosDate      sql.NullString
		seasonLength sql.NullInt64
		isForest     int
	)
	if err := row.Scan(&m.Year, &m.Location.Lat, &m.Location.Lon,
		&sosDate, &eosDate, &seasonLength, &isForest); err != nil {
		return nil, err
	}
	if sosDate.Valid {
		d, err := phenology.ParseDate(sosDate.String)
		if err != nil {
			return nil, err
		}
		m.SOSDate = &d
	}
	if eosDate.Valid {
		d, err := phenology.ParseDate(eosDate.String)
		if err != nil {
			return nil, err
		}
		m.EOSDate = &d
	}
	if seasonLength.Valid {
		v := int(seasonLength.Int64)
		m.SeasonLength = &v
	}
	m.IsForest = isForest != 0
	return &m, nil
}

func dateArg(d *phenology.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
