// Package phenology defines domain types and interfaces for the Phenotrack
// service. This package has no project imports -- it is the dependency root.
package phenology

import (
	"context"
	"fmt"
	"time"
)

// --- Location ---

// Location is a geographic point in WGS84 latitude/longitude coordinates.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewLocation validates coordinate ranges and returns a Location.
func NewLocation(lat, lon float64) (Location, error) {
	if lat < -90 || lat > 90 {
		return Location{}, fmt.Errorf("%w: latitude must be between -90 and 90, got %v", ErrBadRequest, lat)
	}
	if lon < -180 || lon > 180 {
		return Location{}, fmt.Errorf("%w: longitude must be between -180 and 180, got %v", ErrBadRequest, lon)
	}
	return Location{Lat: lat, Lon: lon}, nil
}

// --- Date ---

// dateLayout is the wire and storage format for calendar dates.
const dateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	t time.Time
}

// NewDate returns the calendar day for the given year, month, and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrBadRequest, s)
	}
	return Date{t: t}, nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string { return d.t.Format(dateLayout) }

// Time returns the date as a time.Time at UTC midnight.
func (d Date) Time() time.Time { return d.t }

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t) / (24 * time.Hour))
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: invalid date %s", ErrBadRequest, data)
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// --- Metric ---

// Metric holds the derived seasonal attributes for one location and year.
// Values are produced by the repository or an external compute step and are
// never mutated after construction.
type Metric struct {
	Year         int      `json:"year"`
	Location     Location `json:"location"`
	SOSDate      *Date    `json:"sos_date,omitempty"`
	EOSDate      *Date    `json:"eos_date,omitempty"`
	SeasonLength *int     `json:"season_length,omitempty"`
	IsForest     bool     `json:"is_forest"`
}

// --- Area statistics ---

// Season length statistics supported by area aggregation.
const (
	StatMean = "mean"
	StatMin  = "min"
	StatMax  = "max"
)

// AreaFilters narrows the set of cells included in an area aggregate.
type AreaFilters struct {
	OnlyForest      bool
	MinSeasonLength *int
	Stat            string // mean, min, or max; defaults to mean
}

// AreaStats is the aggregate over all metric cells inside a polygon.
type AreaStats struct {
	Product        string  `json:"product"`
	Year           int     `json:"year"`
	Stat           string  `json:"stat"`
	Count          int     `json:"count"`
	SeasonLength   float64 `json:"season_length"`
	ForestFraction float64 `json:"forest_fraction"`
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from ctx, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
