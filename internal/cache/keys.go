package cache

import (
	"math"
	"strconv"
	"strings"

	phenology "github.com/arborlab/phenotrack/internal"
)

// noThreshold is the key segment for an absent threshold. It can never
// collide with a formatted float, so "no threshold" and "threshold 0.0"
// stay distinct keys.
const noThreshold = "none"

// PointMetricKey builds the canonical cache key for a point metric query.
//
// Independent callers rarely produce bit-identical floats for the "same"
// query, so coordinates are rounded to 6 decimal digits (sub-0.2m at the
// equator, far finer than any raster cell) and the threshold to 3 before
// formatting. Without this the hit rate collapses toward zero for any
// floating-point input.
func PointMetricKey(source, product string, year int, loc phenology.Location, thresholdFrac *float64) string {
	thr := noThreshold
	if thresholdFrac != nil {
		thr = formatRounded(*thresholdFrac, 3)
	}
	var b strings.Builder
	b.WriteString("phenology:point:")
	b.WriteString(source)
	b.WriteByte(':')
	b.WriteString(product)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(year))
	b.WriteByte(':')
	b.WriteString(formatRounded(loc.Lat, 6))
	b.WriteByte(':')
	b.WriteString(formatRounded(loc.Lon, 6))
	b.WriteByte(':')
	b.WriteString(thr)
	return b.String()
}

// formatRounded rounds v to the given number of decimal digits and formats
// it with the shortest representation that survives a round-trip, so
// 52.500000 and 52.5 encode identically.
func formatRounded(v float64, digits int) string {
	pow := math.Pow(10, float64(digits))
	return strconv.FormatFloat(math.Round(v*pow)/pow, 'f', -1, 64)
}
