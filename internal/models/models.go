package models

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Unit is the distance unit a Finder reports in.
type Unit string

const (
	Kilometers Unit = "km"
	Meters     Unit = "m"
)

// ParseUnit maps a query value to a Unit. Empty means kilometers.
func ParseUnit(s string) (Unit, bool) {
	switch s {
	case "", "km":
		return Kilometers, true
	case "m":
		return Meters, true
	}
	return "", false
}

type Nursery struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Loc             Coordinate `json:"location"`
	Capacity        string     `json:"capacity"`
	PlantsAvailable string     `json:"plants_available"`
	Contact         string     `json:"contact"`

	// Source row, 1-based, for diagnostics only.
	RowIndex int `json:"-"`
}

type DistanceResult struct {
	Nursery  Nursery `json:"nursery"`
	Distance float64 `json:"distance"`
	Unit     Unit    `json:"unit"`
}

// QueryPoint is one row of a batch job: a place that needs its nearest nursery.
type QueryPoint struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Loc      Coordinate `json:"location"`
	RowIndex int        `json:"-"`
}

type Assignment struct {
	Point   QueryPoint
	Nursery Nursery
	Meters  float64
}
