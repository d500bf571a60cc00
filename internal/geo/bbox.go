package geo

import "math"

// kmPerDegree is the approximation used to size search boxes. It is slightly
// below the true 111.195 km per degree of latitude, so boxes err large.
const kmPerDegree = 111.0

// minCosLat floors the longitude scaling so boxes near the poles do not divide
// by a vanishing cosine.
const minCosLat = 0.1

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether p lies inside or on the edge of b.
func (b BBox) Contains(p Point) bool {
	return p.lat >= b.MinLat && p.lat <= b.MaxLat &&
		p.lng >= b.MinLng && p.lng <= b.MaxLng
}

// SearchBoxes returns the boxes that together cover every point within
// radiusKM of origin. Usually that is a single box; a box that crosses the
// antimeridian is split in two. Boxes are never smaller than the radius
// circle, so they can narrow a search without excluding true matches.
func SearchBoxes(origin Point, radiusKM float64) []BBox {
	if !origin.valid || radiusKM < 0 || math.IsNaN(radiusKM) {
		return nil
	}

	latDelta := radiusKM / kmPerDegree
	minLat := origin.lat - latDelta
	maxLat := origin.lat + latDelta

	// A box that reaches a pole wraps every meridian.
	if minLat <= -90 || maxLat >= 90 {
		return []BBox{{
			MinLng: -180, MaxLng: 180,
			MinLat: math.Max(minLat, -90), MaxLat: math.Min(maxLat, 90),
		}}
	}

	cosLat := math.Cos(origin.lat * math.Pi / 180)
	lngDelta := radiusKM / (kmPerDegree * math.Max(cosLat, minCosLat))

	// The flat approximation can undershoot at high latitudes and large radii;
	// widen to the exact spherical extent when it does.
	angular := radiusKM / EarthRadiusKM
	if s := math.Sin(angular) / cosLat; s >= 1 {
		lngDelta = 180
	} else if exact := math.Asin(s) * 180 / math.Pi; exact > lngDelta {
		lngDelta = exact
	}

	if lngDelta >= 180 {
		return []BBox{{MinLng: -180, MaxLng: 180, MinLat: minLat, MaxLat: maxLat}}
	}

	minLng := origin.lng - lngDelta
	maxLng := origin.lng + lngDelta
	switch {
	case minLng < -180:
		return []BBox{
			{MinLng: minLng + 360, MaxLng: 180, MinLat: minLat, MaxLat: maxLat},
			{MinLng: -180, MaxLng: maxLng, MinLat: minLat, MaxLat: maxLat},
		}
	case maxLng > 180:
		return []BBox{
			{MinLng: minLng, MaxLng: 180, MinLat: minLat, MaxLat: maxLat},
			{MinLng: -180, MaxLng: maxLng - 360, MinLat: minLat, MaxLat: maxLat},
		}
	}
	return []BBox{{MinLng: minLng, MaxLng: maxLng, MinLat: minLat, MaxLat: maxLat}}
}
