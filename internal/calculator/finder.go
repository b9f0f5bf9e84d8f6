package calculator

import (
	"math"

	"nursery-locator/internal/models"
)

const DefaultEpsilon = 1e-9

// Finder selects nurseries by geodesic distance from a reference point.
// It keeps no state between calls and is safe for concurrent use.
type Finder struct {
	unit    models.Unit
	epsilon float64
}

type Option func(*Finder)

// WithUnit sets the unit of reported distances (and of the epsilon).
func WithUnit(u models.Unit) Option {
	return func(f *Finder) { f.unit = u }
}

// WithEpsilon sets how close two distances must be to count as a tie.
func WithEpsilon(eps float64) Option {
	return func(f *Finder) {
		if eps >= 0 && !math.IsNaN(eps) && !math.IsInf(eps, 0) {
			f.epsilon = eps
		}
	}
}

func NewFinder(opts ...Option) *Finder {
	f := &Finder{unit: models.Kilometers, epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(f)
	}
	if f.unit != models.Meters {
		f.unit = models.Kilometers
	}
	return f
}

func (f *Finder) Unit() models.Unit { return f.unit }

// AnnotateDistances returns one result per candidate, in input order.
func (f *Finder) AnnotateDistances(ref models.Coordinate, candidates []models.Nursery) ([]models.DistanceResult, error) {
	if err := validateQuery(ref, candidates); err != nil {
		return nil, err
	}

	results := make([]models.DistanceResult, len(candidates))
	for i, c := range candidates {
		results[i] = models.DistanceResult{
			Nursery:  c,
			Distance: convert(Distance(ref, c.Loc), f.unit),
			Unit:     f.unit,
		}
	}
	return results, nil
}

// Nearest returns the closest candidate. Among candidates within epsilon of
// each other the earliest one in the slice wins.
func (f *Finder) Nearest(ref models.Coordinate, candidates []models.Nursery) (models.DistanceResult, error) {
	if err := validateQuery(ref, candidates); err != nil {
		return models.DistanceResult{}, err
	}

	idx, d := f.nearestIndex(ref, candidates)
	return models.DistanceResult{
		Nursery:  candidates[idx],
		Distance: d,
		Unit:     f.unit,
	}, nil
}

// nearestIndex assumes validated input. The distance is in the finder's unit.
func (f *Finder) nearestIndex(ref models.Coordinate, candidates []models.Nursery) (int, float64) {
	nearestIdx := 0
	minDist := math.MaxFloat64
	for i, c := range candidates {
		d := convert(Distance(ref, c.Loc), f.unit)
		if i == 0 || d < minDist-f.epsilon {
			minDist = d
			nearestIdx = i
		}
	}
	return nearestIdx, minDist
}

// WithinRadius returns the candidates no farther than radiusMeters from ref,
// in input order.
func (f *Finder) WithinRadius(ref models.Coordinate, candidates []models.Nursery, radiusMeters float64) ([]models.DistanceResult, error) {
	if err := validateRadius(radiusMeters); err != nil {
		return nil, err
	}
	if err := validateQuery(ref, candidates); err != nil {
		return nil, err
	}

	results := []models.DistanceResult{}
	for _, c := range candidates {
		m := Distance(ref, c.Loc)
		if m <= radiusMeters {
			results = append(results, models.DistanceResult{
				Nursery:  c,
				Distance: convert(m, f.unit),
				Unit:     f.unit,
			})
		}
	}
	return results, nil
}

func validateRadius(radiusMeters float64) error {
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters < 0 {
		return &InvalidInputError{Index: -1, Reason: "radius must be a finite, non-negative number of meters"}
	}
	return nil
}
