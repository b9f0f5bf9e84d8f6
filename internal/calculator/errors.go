package calculator

import (
	"errors"
	"fmt"
	"math"

	"nursery-locator/internal/models"
)

// ErrInvalidInput is matched by every *InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports why a query was rejected. Index is the candidate
// position, or -1 when the reference point (or the set as a whole) is at fault.
type InvalidInputError struct {
	Index  int
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: candidate %d: %s", e.Index, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// ValidateCoordinate checks that c is finite and inside the lat/lon ranges.
func ValidateCoordinate(c models.Coordinate) error {
	switch {
	case math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0):
		return fmt.Errorf("latitude is not finite")
	case math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0):
		return fmt.Errorf("longitude is not finite")
	case c.Lat < -90 || c.Lat > 90:
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	case c.Lon < -180 || c.Lon > 180:
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lon)
	}
	return nil
}

func validateQuery(ref models.Coordinate, candidates []models.Nursery) error {
	if len(candidates) == 0 {
		return &InvalidInputError{Index: -1, Reason: "empty candidate list"}
	}
	if err := ValidateCoordinate(ref); err != nil {
		return &InvalidInputError{Index: -1, Reason: "reference: " + err.Error()}
	}
	return validateCandidates(candidates)
}

func validateCandidates(candidates []models.Nursery) error {
	for i, c := range candidates {
		if err := ValidateCoordinate(c.Loc); err != nil {
			return &InvalidInputError{Index: i, Reason: err.Error()}
		}
	}
	return nil
}
