// Package units provides shared constants and conversions for area and length units
package units

// Conversion factors from the metric mesh frame. The mesh is assumed to be
// in metres; there is no calibration against real-world roof size.
const (
	SquareMetresToSquareFeet = 10.764
	MetresToFeet             = 3.28084
)

// Area unit constants
const (
	SqFt = "sq_ft"
	SqM  = "sq_m"
)

// Length unit constants
const (
	Feet   = "ft"
	Metres = "m"
)

// ValidAreaUnits contains all valid area unit values
var ValidAreaUnits = []string{SqFt, SqM}

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{Feet, Metres}

// IsValidArea checks if the given unit is in the list of valid area units
func IsValidArea(unit string) bool {
	for _, validUnit := range ValidAreaUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// IsValidLength checks if the given unit is in the list of valid length units
func IsValidLength(unit string) bool {
	for _, validUnit := range ValidLengthUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertArea converts an area in square metres to the target units
func ConvertArea(sqm float64, targetUnits string) float64 {
	switch targetUnits {
	case SqFt:
		return sqm * SquareMetresToSquareFeet
	default:
		return sqm
	}
}

// ConvertLength converts a length in metres to the target units
func ConvertLength(m float64, targetUnits string) float64 {
	switch targetUnits {
	case Feet:
		return m * MetresToFeet
	default:
		return m
	}
}
