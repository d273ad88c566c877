// Package geo parses GeoJSON polygons and answers point-in-polygon queries
// for area aggregation.
package geo

import (
	"fmt"

	"github.com/tidwall/gjson"

	phenology "github.com/arborlab/phenotrack/internal"
)

// Point is a lon/lat coordinate pair, GeoJSON axis order.
type Point struct {
	Lon float64
	Lat float64
}

// Polygon is the outer ring of a GeoJSON Polygon with its bounding box.
// Holes are not supported; interior rings are ignored.
type Polygon struct {
	ring           []Point
	minLon, minLat float64
	maxLon, maxLat float64
}

// ParsePolygon extracts the outer ring from a GeoJSON Polygon document.
// Validation failures wrap phenology.ErrBadRequest.
func ParsePolygon(doc []byte) (*Polygon, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("%w: invalid JSON", phenology.ErrBadRequest)
	}
	root := gjson.ParseBytes(doc)

	// Accept a bare geometry or a Feature wrapping one.
	geom := root
	if root.Get("type").String() == "Feature" {
		geom = root.Get("geometry")
	}
	if typ := geom.Get("type").String(); typ != "Polygon" {
		return nil, fmt.Errorf("%w: expected GeoJSON Polygon, got %q", phenology.ErrBadRequest, typ)
	}

	outer := geom.Get("coordinates.0")
	if !outer.Exists() {
		return nil, fmt.Errorf("%w: polygon has no outer ring", phenology.ErrBadRequest)
	}

	var ring []Point
	var parseErr error
	outer.ForEach(func(_, pos gjson.Result) bool {
		coords := pos.Array()
		if len(coords) < 2 {
			parseErr = fmt.Errorf("%w: ring position needs lon and lat", phenology.ErrBadRequest)
			return false
		}
		ring = append(ring, Point{Lon: coords[0].Float(), Lat: coords[1].Float()})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("%w: polygon ring needs at least 4 positions", phenology.ErrBadRequest)
	}

	p := &Polygon{ring: ring}
	p.minLon, p.minLat = ring[0].Lon, ring[0].Lat
	p.maxLon, p.maxLat = ring[0].Lon, ring[0].Lat
	for _, pt := range ring[1:] {
		p.minLon = min(p.minLon, pt.Lon)
		p.maxLon = max(p.maxLon, pt.Lon)
		p.minLat = min(p.minLat, pt.Lat)
		p.maxLat = max(p.maxLat, pt.Lat)
	}
	return p, nil
}

// Bounds returns the bounding box as (minLon, minLat, maxLon, maxLat).
func (p *Polygon) Bounds() (minLon, minLat, maxLon, maxLat float64) {
	return p.minLon, p.minLat, p.maxLon, p.maxLat
}

// Contains reports whether the location is inside the polygon, using
// ray casting against the outer ring. Points exactly on an edge may land
// on either side; area aggregation over grid cells does not care.
func (p *Polygon) Contains(loc phenology.Location) bool {
	if loc.Lon < p.minLon || loc.Lon > p.maxLon || loc.Lat < p.minLat || loc.Lat > p.maxLat {
		return false
	}
	inside := false
	n := len(p.ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.ring[i], p.ring[j]
		if (a.Lat > loc.Lat) != (b.Lat > loc.Lat) &&
			loc.Lon < (b.Lon-a.Lon)*(loc.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lon {
			inside = !inside
		}
	}
	return inside
}
