package geo

import (
	"errors"
	"testing"

	phenology "github.com/arborlab/phenotrack/internal"
)

// A unit square from (0,0) to (10,10).
const squarePolygon = `{
	"type": "Polygon",
	"coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]
}`

func TestParsePolygon_Square(t *testing.T) {
	t.Parallel()

	p, err := ParsePolygon([]byte(squarePolygon))
	if err != nil {
		t.Fatal(err)
	}
	minLon, minLat, maxLon, maxLat := p.Bounds()
	if minLon != 0 || minLat != 0 || maxLon != 10 || maxLat != 10 {
		t.Errorf("bounds = (%v,%v,%v,%v), want (0,0,10,10)", minLon, minLat, maxLon, maxLat)
	}
}

func TestParsePolygon_Feature(t *testing.T) {
	t.Parallel()

	doc := `{"type":"Feature","properties":{},"geometry":` + squarePolygon + `}`
	if _, err := ParsePolygon([]byte(doc)); err != nil {
		t.Fatalf("feature-wrapped polygon should parse: %v", err)
	}
}

func TestParsePolygon_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":       `{`,
		"wrong geometry": `{"type":"Point","coordinates":[1,2]}`,
		"no ring":        `{"type":"Polygon","coordinates":[]}`,
		"short ring":     `{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,0]]]}`,
	}
	for name, doc := range cases {
		if _, err := ParsePolygon([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !errors.Is(err, phenology.ErrBadRequest) {
			t.Errorf("%s: error should wrap ErrBadRequest, got %v", name, err)
		}
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	p, err := ParsePolygon([]byte(squarePolygon))
	if err != nil {
		t.Fatal(err)
	}

	inside := phenology.Location{Lat: 5, Lon: 5}
	if !p.Contains(inside) {
		t.Error("(5,5) should be inside the square")
	}
	outside := phenology.Location{Lat: 15, Lon: 5}
	if p.Contains(outside) {
		t.Error("(15,5) should be outside the square")
	}
	outsideBBox := phenology.Location{Lat: 5, Lon: -3}
	if p.Contains(outsideBBox) {
		t.Error("points outside the bounding box should be rejected early")
	}
}

func TestContains_Concave(t *testing.T) {
	t.Parallel()

	// An L shape: the notch at the top right is outside.
	doc := `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,5],[5,5],[5,10],[0,10],[0,0]]]}`
	p, err := ParsePolygon([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Contains(phenology.Location{Lat: 2, Lon: 8}) {
		t.Error("(lat 2, lon 8) should be inside the L")
	}
	if p.Contains(phenology.Location{Lat: 8, Lon: 8}) {
		t.Error("(lat 8, lon 8) is in the notch and should be outside")
	}
}
