package matrix

import (
	"math"

	"fleetrouting/pkg/domain"
)

// EarthRadiusKm is the mean Earth radius used by the great-circle formula.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// BuildHaversineMatrix computes straight-line distance and time matrices for
// the given locations. Travel time is derived from the average speed:
// time_min = distance_km / speed_kmh * 60.
func BuildHaversineMatrix(locations []*domain.Location, speedKmh float64) *domain.Matrix {
	n := len(locations)

	ids := make([]string, n)
	for i, loc := range locations {
		ids[i] = loc.ID
	}

	dist := make([][]float64, n)
	tm := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		tm[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := Haversine(
				locations[i].Latitude, locations[i].Longitude,
				locations[j].Latitude, locations[j].Longitude,
			)
			dist[i][j] = d
			tm[i][j] = d / speedKmh * 60
		}
	}

	return &domain.Matrix{
		LocationIDs: ids,
		Distance:    dist,
		Time:        tm,
	}
}
