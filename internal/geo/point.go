// Package geo provides validated coordinates, great-circle distances, bounding
// boxes, and district polygons for school proximity analysis.
package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// ErrInvalidCoordinate is returned when a latitude/longitude pair is missing,
// out of range, or carries the zero placeholder used by the source datasets.
var ErrInvalidCoordinate = eris.New("geo: invalid coordinate")

// Point is a validated latitude/longitude pair in decimal degrees.
// The zero value is not a valid point; construct points with NewPoint.
type Point struct {
	lat   float64
	lng   float64
	valid bool
}

// NewPoint validates lat/lng and returns an immutable Point.
// Zero on either axis is treated as a missing value, not as the equator or
// prime meridian.
func NewPoint(lat, lng float64) (Point, error) {
	switch {
	case math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0):
		return Point{}, eris.Wrapf(ErrInvalidCoordinate, "non-finite value (%v, %v)", lat, lng)
	case lat == 0 || lng == 0:
		return Point{}, eris.Wrapf(ErrInvalidCoordinate, "zero placeholder (%v, %v)", lat, lng)
	case lat < -90 || lat > 90:
		return Point{}, eris.Wrapf(ErrInvalidCoordinate, "latitude %v out of range [-90, 90]", lat)
	case lng < -180 || lng > 180:
		return Point{}, eris.Wrapf(ErrInvalidCoordinate, "longitude %v out of range [-180, 180]", lng)
	}
	return Point{lat: lat, lng: lng, valid: true}, nil
}

// MustPoint is NewPoint for literals known to be valid. It panics otherwise.
func MustPoint(lat, lng float64) Point {
	p, err := NewPoint(lat, lng)
	if err != nil {
		panic(err)
	}
	return p
}

// Lat returns the latitude in degrees.
func (p Point) Lat() float64 { return p.lat }

// Lng returns the longitude in degrees.
func (p Point) Lng() float64 { return p.lng }

// Valid reports whether p was built by NewPoint.
func (p Point) Valid() bool { return p.valid }

// Equal reports whether p and q are the same coordinate.
func (p Point) Equal(q Point) bool { return p == q }

// String returns the point in WKT order (lng lat).
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.lng, p.lat)
}

// MarshalJSON encodes the point as {"lat":..,"lng":..}.
func (p Point) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`{"lat":%g,"lng":%g}`, p.lat, p.lng)), nil
}

// UnmarshalJSON decodes {"lat":..,"lng":..} through NewPoint. null yields the
// zero (invalid) point.
func (p *Point) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Point{}
		return nil
	}
	var raw struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "geo: decode point")
	}
	pt, err := NewPoint(raw.Lat, raw.Lng)
	if err != nil {
		return err
	}
	*p = pt
	return nil
}
