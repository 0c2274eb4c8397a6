// Package geo gates photo evidence against an expected property location.
// Pure functions only; the caller decides what to do with a failed check.
package geo

import (
	"fmt"

	"github.com/umahmood/haversine"

	id "verilink/pkg/domain"
)

// DefaultToleranceMeters is the geofence radius applied when configuration
// does not override it.
const DefaultToleranceMeters = 100.0

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Coordinates) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lon},
		haversine.Coord{Lat: b.Lat, Lon: b.Lon},
	)
	return km * 1000
}

// Result reports the outcome of a geofence check.
type Result struct {
	IsValid         bool
	DistanceMeters  *float64
	WithinTolerance bool
	Message         string
}

// Validate checks a captured photo location against the expected property
// location.
//
// A missing capture is a hard fail: evidence without GPS cannot be validated.
// A missing expectation passes: policy types without a fixed location have
// nothing to check against.
func Validate(captured, expected *Coordinates, toleranceMeters float64) Result {
	if captured == nil {
		return Result{
			IsValid: false,
			Message: "no GPS data captured",
		}
	}
	if expected == nil {
		return Result{
			IsValid:         true,
			WithinTolerance: true,
			Message:         "no expected location on record",
		}
	}

	distance := Distance(*captured, *expected)
	within := distance <= toleranceMeters
	result := Result{
		IsValid:         true,
		DistanceMeters:  &distance,
		WithinTolerance: within,
	}
	if within {
		result.Message = fmt.Sprintf("within tolerance: %.0fm of expected location", distance)
	} else {
		result.Message = fmt.Sprintf("outside tolerance: %.0fm from expected location (limit %.0fm)", distance, toleranceMeters)
	}
	return result
}

// Required reports whether GPS capture and validation apply to the given
// policy type. Non-property policies accept photos regardless of location.
func Required(policyType id.PolicyType) bool {
	return policyType.PropertyBound()
}
