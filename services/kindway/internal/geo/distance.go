package geo

import (
	"math"
	"sort"
	"strings"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.009

// Candidate is anything with a display name and an optional location.
type Candidate[T any] struct {
	Item     T
	Name     string
	Location *models.Coordinate
}

// Match is a candidate that passed the filter. DistanceKm is nil when the
// origin was unknown.
type Match[T any] struct {
	Item       T
	Name       string
	DistanceKm *float64
}

// DistanceKm returns the haversine distance between two points.
func DistanceKm(a, b models.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// FindWithinRadius filters candidates around origin.
//
// With a known origin, candidates without a location or farther than
// radiusKm are dropped and the rest are sorted nearest first. A NaN radius
// matches nothing. With a nil
// origin every candidate is kept, without distances, sorted by name
// (case-insensitive). Both sorts are stable. The result is never nil.
func FindWithinRadius[T any](origin *models.Coordinate, candidates []Candidate[T], radiusKm float64) []Match[T] {
	matches := make([]Match[T], 0, len(candidates))

	if origin == nil {
		for _, c := range candidates {
			matches = append(matches, Match[T]{Item: c.Item, Name: c.Name})
		}
		sort.SliceStable(matches, func(i, j int) bool {
			return strings.ToLower(matches[i].Name) < strings.ToLower(matches[j].Name)
		})
		return matches
	}

	for _, c := range candidates {
		if c.Location == nil {
			continue
		}
		d := DistanceKm(*origin, *c.Location)
		if !(d <= radiusKm) {
			continue
		}
		matches = append(matches, Match[T]{Item: c.Item, Name: c.Name, DistanceKm: &d})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return *matches[i].DistanceKm < *matches[j].DistanceKm
	})
	return matches
}

// RoundKm rounds a distance to 0.1 km for display.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}
