package calculator

import (
	"nursery-locator/internal/models"

	"github.com/tidwall/geodesic"
)

// Distance returns the geodesic distance in meters between a and b on the
// WGS-84 ellipsoid.
func Distance(a, b models.Coordinate) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	if s12 < 0 {
		return 0
	}
	return s12
}

// DistanceIn is Distance converted to unit.
func DistanceIn(a, b models.Coordinate, unit models.Unit) float64 {
	return convert(Distance(a, b), unit)
}

func convert(meters float64, unit models.Unit) float64 {
	if unit == models.Meters {
		return meters
	}
	return meters / 1000.0
}
