// Package boundary loads an administrative outline from GeoJSON and answers
// point-in-area questions against it.
package boundary

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"nursery-locator/internal/models"
)

// Boundary is an immutable set of polygons plus the document it came from.
type Boundary struct {
	name     string
	raw      []byte
	polygons []orb.Polygon
	bound    orb.Bound
}

// Load reads and parses the GeoJSON file at path.
func Load(path, name string) (*Boundary, error) {
	//nolint:gosec // G304: path comes from configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary %s: %w", path, err)
	}
	return Parse(data, name)
}

// Parse accepts a FeatureCollection, a single Feature or a bare geometry.
// Only polygonal geometry is kept; a document without any is an error.
func Parse(data []byte, name string) (*Boundary, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid boundary GeoJSON: %w", err)
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid boundary feature collection: %w", err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid boundary feature: %w", err)
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid boundary geometry: %w", err)
		}
		geoms = append(geoms, g.Geometry())
	}

	b := &Boundary{name: name, raw: data}
	for _, g := range geoms {
		b.polygons = appendPolygons(b.polygons, g)
	}
	if len(b.polygons) == 0 {
		return nil, fmt.Errorf("boundary %q has no polygon geometry", name)
	}

	b.bound = b.polygons[0].Bound()
	for _, p := range b.polygons[1:] {
		b.bound = b.bound.Union(p.Bound())
	}
	return b, nil
}

func appendPolygons(dst []orb.Polygon, g orb.Geometry) []orb.Polygon {
	switch t := g.(type) {
	case orb.Polygon:
		if len(t) > 0 {
			dst = append(dst, t)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			dst = appendPolygons(dst, p)
		}
	case orb.Collection:
		for _, c := range t {
			dst = appendPolygons(dst, c)
		}
	}
	return dst
}

func (b *Boundary) Name() string { return b.name }

// GeoJSON returns the document as loaded, for the map layer.
func (b *Boundary) GeoJSON() []byte { return b.raw }

// Contains reports whether c lies inside any polygon. Edges are planar in
// lon/lat.
func (b *Boundary) Contains(c models.Coordinate) bool {
	pt := orb.Point{c.Lon, c.Lat}
	if !b.bound.Contains(pt) {
		return false
	}
	for _, p := range b.polygons {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// Center is the middle of the bounding box.
func (b *Boundary) Center() models.Coordinate {
	c := b.bound.Center()
	return models.Coordinate{Lat: c[1], Lon: c[0]}
}
