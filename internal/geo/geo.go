// Package geo estimates the great-circle distance between countries and
// classifies them by continent.
//
// Lookups are exact (after trimming whitespace). Unknown countries resolve to
// the Default coordinate (0,0) and ContinentUnknown rather than an error, so
// two unknown countries are reported as 0 km apart. Callers that care must
// compare country names before relying on the distance.
package geo

import (
	"math"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Default is the fallback coordinate for countries missing from the table.
var Default = Coordinates{Lat: 0, Lng: 0}

// Continent is the coarse region used by continent-based delay tiers.
type Continent string

const (
	ContinentNorthAmerica Continent = "north_america"
	ContinentSouthAmerica Continent = "south_america"
	ContinentEurope       Continent = "europe"
	ContinentAsia         Continent = "asia"
	ContinentAfrica       Continent = "africa"
	ContinentOceania      Continent = "oceania"
	ContinentUnknown      Continent = "unknown"
)

// CoordinatesOf returns the table coordinates for country, or Default.
func CoordinatesOf(country string) Coordinates {
	if info, ok := countries[strings.TrimSpace(country)]; ok {
		return info.coords
	}
	return Default
}

// ContinentOf returns the continent for country, or ContinentUnknown.
func ContinentOf(country string) Continent {
	if info, ok := countries[strings.TrimSpace(country)]; ok {
		return info.continent
	}
	return ContinentUnknown
}

// Known reports whether country has an entry in the table.
func Known(country string) bool {
	_, ok := countries[strings.TrimSpace(country)]
	return ok
}

// DistanceKm returns the Haversine distance in kilometres between two
// countries.
func DistanceKm(countryA, countryB string) float64 {
	return Haversine(CoordinatesOf(countryA), CoordinatesOf(countryB))
}

// Haversine returns the great-circle distance in kilometres between a and b.
func Haversine(a, b Coordinates) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
