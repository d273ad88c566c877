package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	phenology "github.com/arborlab/phenotrack/internal"
)

// maxPolygonBytes bounds the area-stats request body.
const maxPolygonBytes = 1 << 20

// yearMetric is a metric without its location, for timeseries responses
// where the location is lifted to the envelope.
type yearMetric struct {
	Year         int              `json:"year"`
	SOSDate      *phenology.Date  `json:"sos_date,omitempty"`
	EOSDate      *phenology.Date  `json:"eos_date,omitempty"`
	SeasonLength *int             `json:"season_length,omitempty"`
	IsForest     bool             `json:"is_forest"`
}

// timeseriesResponse is the envelope for GET /phenology/timeseries.
type timeseriesResponse struct {
	Product   string             `json:"product"`
	Location  phenology.Location `json:"location"`
	StartYear int                `json:"start_year"`
	EndYear   int                `json:"end_year"`
	Metrics   []yearMetric       `json:"metrics"`
}

// handlePointMetric serves GET /phenology/point.
func (s *server) handlePointMetric(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	product, err := requiredString(q.Get("product"), "product")
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := parseLocation(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, err)
		return
	}
	year, err := parseYear(q.Get("year"), "year")
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := s.deps.Query.GetPointMetric(r.Context(), product, loc, year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleSeedPointMetric serves POST /phenology/point: it writes a metric
// straight into the store, bypassing the read path. Used by ingestion
// tooling and tests.
func (s *server) handleSeedPointMetric(w http.ResponseWriter, r *http.Request) {
	product, err := requiredString(r.URL.Query().Get("product"), "product")
	if err != nil {
		writeError(w, err)
		return
	}

	var m phenology.Metric
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPolygonBytes)).Decode(&m); err != nil {
		writeError(w, fmt.Errorf("%w: invalid metric body: %v", phenology.ErrBadRequest, err))
		return
	}
	if _, err := phenology.NewLocation(m.Location.Lat, m.Location.Lon); err != nil {
		writeError(w, err)
		return
	}
	if m.Year < minYear || m.Year > maxYear {
		writeError(w, fmt.Errorf("%w: year must be between %d and %d", phenology.ErrBadRequest, minYear, maxYear))
		return
	}

	if err := s.deps.Store.AddMetric(r.Context(), product, m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// handlePointTimeseries serves GET /phenology/timeseries.
func (s *server) handlePointTimeseries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	product, err := requiredString(q.Get("product"), "product")
	if err != nil {
		writeError(w, err)
		return
	}
	loc, err := parseLocation(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, err)
		return
	}
	startYear, err := parseYear(q.Get("start_year"), "start_year")
	if err != nil {
		writeError(w, err)
		return
	}
	endYear, err := parseYear(q.Get("end_year"), "end_year")
	if err != nil {
		writeError(w, err)
		return
	}
	if endYear < startYear {
		writeError(w, fmt.Errorf("%w: end_year %d before start_year %d", phenology.ErrBadRequest, endYear, startYear))
		return
	}

	series, err := s.deps.Query.GetPointTimeseries(r.Context(), product, loc, startYear, endYear)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := timeseriesResponse{
		Product:   product,
		Location:  loc,
		StartYear: startYear,
		EndYear:   endYear,
		Metrics:   make([]yearMetric, 0, len(series)),
	}
	for _, m := range series {
		resp.Metrics = append(resp.Metrics, yearMetric{
			Year:         m.Year,
			SOSDate:      m.SOSDate,
			EOSDate:      m.EOSDate,
			SeasonLength: m.SeasonLength,
			IsForest:     m.IsForest,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAreaStats serves POST /phenology/area-stats with a GeoJSON
// polygon body and filter query parameters.
func (s *server) handleAreaStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	product, err := requiredString(q.Get("product"), "product")
	if err != nil {
		writeError(w, err)
		return
	}
	year, err := parseYear(q.Get("year"), "year")
	if err != nil {
		writeError(w, err)
		return
	}

	filters := phenology.AreaFilters{Stat: q.Get("stat")}
	if v := q.Get("only_forest"); v != "" {
		onlyForest, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid only_forest %q", phenology.ErrBadRequest, v))
			return
		}
		filters.OnlyForest = onlyForest
	}
	if v := q.Get("min_season_length"); v != "" {
		minLen, err := strconv.Atoi(v)
		if err != nil || minLen < 0 {
			writeError(w, fmt.Errorf("%w: invalid min_season_length %q", phenology.ErrBadRequest, v))
			return
		}
		filters.MinSeasonLength = &minLen
	}

	polygon, err := io.ReadAll(io.LimitReader(r.Body, maxPolygonBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: read body: %v", phenology.ErrBadRequest, err))
		return
	}

	stats, err := s.deps.Query.GetAreaStats(r.Context(), product, year, polygon, filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Parsing and response helpers ---

// Year bounds accepted by the API.
const (
	minYear = 2000
	maxYear = 2100
)

func requiredString(v, name string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("%w: missing query parameter %q", phenology.ErrBadRequest, name)
	}
	return v, nil
}

func parseLocation(latStr, lonStr string) (phenology.Location, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return phenology.Location{}, fmt.Errorf("%w: invalid lat %q", phenology.ErrBadRequest, latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return phenology.Location{}, fmt.Errorf("%w: invalid lon %q", phenology.ErrBadRequest, lonStr)
	}
	return phenology.NewLocation(lat, lon)
}

func parseYear(v, name string) (int, error) {
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", phenology.ErrBadRequest, name, v)
	}
	if year < minYear || year > maxYear {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", phenology.ErrBadRequest, name, minYear, maxYear)
	}
	return year, nil
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, phenology.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, phenology.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, phenology.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals to clients.
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse(msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
