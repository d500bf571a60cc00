package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKM is the mean Earth radius used for all distances.
const EarthRadiusKM = 6371.0

// Distance returns the haversine great-circle distance between a and b in
// kilometers. It returns +Inf when either point is invalid.
func Distance(a, b Point) float64 {
	if !a.valid || !b.valid {
		return math.Inf(1)
	}
	return haversine(a.lat, a.lng, b.lat, b.lng)
}

// Distances returns the distance from origin to each target, in target order.
func Distances(origin Point, targets []Point) []float64 {
	out := make([]float64, len(targets))
	for i, t := range targets {
		out[i] = Distance(origin, t)
	}
	return out
}

func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusKM
}
