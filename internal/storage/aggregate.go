package storage

import (
	"fmt"

	phenology "github.com/arborlab/phenotrack/internal"
)

// AggregateSeasonLength folds the metrics of all cells that passed the
// polygon test into an area aggregate. Both store implementations share
// this so filter and stat semantics cannot drift between backends.
//
// A cell must carry a season length to contribute to the stat; cells
// without one still count toward the forest fraction unless filtered out.
// Returns phenology.ErrNotFound when no cell passes the filters.
func AggregateSeasonLength(product string, year int, metrics []phenology.Metric, f phenology.AreaFilters) (*phenology.AreaStats, error) {
	stat := f.Stat
	if stat == "" {
		stat = phenology.StatMean
	}
	switch stat {
	case phenology.StatMean, phenology.StatMin, phenology.StatMax:
	default:
		return nil, fmt.Errorf("%w: unknown season length stat %q", phenology.ErrBadRequest, stat)
	}

	var (
		included []phenology.Metric
		forest   int
	)
	for _, m := range metrics {
		if f.OnlyForest && !m.IsForest {
			continue
		}
		if f.MinSeasonLength != nil && (m.SeasonLength == nil || *m.SeasonLength < *f.MinSeasonLength) {
			continue
		}
		included = append(included, m)
		if m.IsForest {
			forest++
		}
	}
	if len(included) == 0 {
		return nil, phenology.ErrNotFound
	}

	var (
		sum      float64
		n        int
		minV     float64
		maxV     float64
		haveStat bool
	)
	for _, m := range included {
		if m.SeasonLength == nil {
			continue
		}
		v := float64(*m.SeasonLength)
		if !haveStat {
			minV, maxV = v, v
			haveStat = true
		} else {
			minV = min(minV, v)
			maxV = max(maxV, v)
		}
		sum += v
		n++
	}
	if !haveStat {
		return nil, phenology.ErrNotFound
	}

	var value float64
	switch stat {
	case phenology.StatMean:
		value = sum / float64(n)
	case phenology.StatMin:
		value = minV
	case phenology.StatMax:
		value = maxV
	}

	return &phenology.AreaStats{
		Product:        product,
		Year:           year,
		Stat:           stat,
		Count:          len(included),
		SeasonLength:   value,
		ForestFraction: float64(forest) / float64(len(included)),
	}, nil
}
