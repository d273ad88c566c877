package cache

import (
	"strings"
	"testing"

	phenology "github.com/arborlab/phenotrack/internal"
)

func mustLocation(t *testing.T, lat, lon float64) phenology.Location {
	t.Helper()
	loc, err := phenology.NewLocation(lat, lon)
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestPointMetricKey_Deterministic(t *testing.T) {
	t.Parallel()

	loc := mustLocation(t, 52.5, 13.4)
	a := PointMetricKey("point-repo", "mcd12q2", 2020, loc, nil)
	b := PointMetricKey("point-repo", "mcd12q2", 2020, loc, nil)
	if a != b {
		t.Errorf("keys differ for identical queries: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "phenology:point:point-repo:mcd12q2:2020:") {
		t.Errorf("unexpected key layout: %q", a)
	}
}

func TestPointMetricKey_CoordinateNormalization(t *testing.T) {
	t.Parallel()

	// Differ only beyond the 6th decimal digit.
	a := PointMetricKey("point-repo", "p", 2020, mustLocation(t, 52.5000001, 13.4000004), nil)
	b := PointMetricKey("point-repo", "p", 2020, mustLocation(t, 52.5000002, 13.3999996), nil)
	if a != b {
		t.Errorf("sub-precision coordinate noise fragmented keys:\n%q\n%q", a, b)
	}

	// Differ at the 6th digit: distinct queries, distinct keys.
	c := PointMetricKey("point-repo", "p", 2020, mustLocation(t, 52.500001, 13.4), nil)
	d := PointMetricKey("point-repo", "p", 2020, mustLocation(t, 52.500002, 13.4), nil)
	if c == d {
		t.Errorf("distinct coordinates collided: %q", c)
	}
}

func TestPointMetricKey_ThresholdNormalization(t *testing.T) {
	t.Parallel()

	loc := mustLocation(t, 0, 0)
	t1 := 0.5001
	t2 := 0.50009
	a := PointMetricKey("compute", "p", 2020, loc, &t1)
	b := PointMetricKey("compute", "p", 2020, loc, &t2)
	if a != b {
		t.Errorf("sub-precision threshold noise fragmented keys:\n%q\n%q", a, b)
	}

	t3 := 0.501
	c := PointMetricKey("compute", "p", 2020, loc, &t3)
	if a == c {
		t.Errorf("distinct thresholds collided: %q", a)
	}
}

func TestPointMetricKey_AbsentThresholdDistinctFromZero(t *testing.T) {
	t.Parallel()

	loc := mustLocation(t, 10, 20)
	zero := 0.0
	withZero := PointMetricKey("point-repo", "p", 2020, loc, &zero)
	absent := PointMetricKey("point-repo", "p", 2020, loc, nil)
	if withZero == absent {
		t.Errorf("absent threshold collided with threshold 0.0: %q", absent)
	}
}

func TestPointMetricKey_NegativeCoordinates(t *testing.T) {
	t.Parallel()

	a := PointMetricKey("point-repo", "p", 2020, mustLocation(t, -33.8688197, 151.2092955), nil)
	b := PointMetricKey("point-repo", "p", 2020, mustLocation(t, -33.86881974, 151.20929551), nil)
	if a != b {
		t.Errorf("rounding broke for negative coordinates:\n%q\n%q", a, b)
	}
}
