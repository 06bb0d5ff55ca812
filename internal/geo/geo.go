// Package geo computes distances between recorded samples.
package geo

import (
	"math"

	"github.com/roach88/embarcadero/internal/location"
)

const earthRadiusMeters = 6371008.8

// HaversineMeters returns the great-circle distance between two points
// given in degrees.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// PathLength sums the distances between consecutive samples.
func PathLength(samples []location.Sample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		total += HaversineMeters(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	return total
}

// Duration returns the time spanned by samples in milliseconds.
func Duration(samples []location.Sample) int64 {
	if len(samples) < 2 {
		return 0
	}
	return samples[len(samples)-1].Time - samples[0].Time
}
