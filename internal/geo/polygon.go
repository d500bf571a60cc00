package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// ErrMalformedPolygon is returned for rings with fewer than three distinct vertices.
var ErrMalformedPolygon = eris.New("geo: malformed polygon")

// Polygon is a named district boundary made of one or more simple outer rings.
// Holes are not modelled; a multi-part boundary contains a point when any of
// its parts does.
type Polygon struct {
	Name  string
	rings [][]float64 // flat XY (lng, lat) coords, each ring closed
}

// NewPolygon builds a single-ring polygon from ordered vertices. The ring is
// closed automatically when the last vertex differs from the first.
func NewPolygon(name string, vertices []Point) (*Polygon, error) {
	ring, err := closedRing(vertices)
	if err != nil {
		return nil, eris.Wrapf(err, "polygon %q", name)
	}
	return &Polygon{Name: name, rings: [][]float64{ring}}, nil
}

// PolygonFromGeom converts a go-geom Polygon or MultiPolygon into a Polygon
// using the outer ring of each part.
func PolygonFromGeom(name string, g geom.T) (*Polygon, error) {
	p := &Polygon{Name: name}
	switch t := g.(type) {
	case *geom.Polygon:
		if err := p.pushGeomPolygon(t); err != nil {
			return nil, eris.Wrapf(err, "polygon %q", name)
		}
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if err := p.pushGeomPolygon(t.Polygon(i)); err != nil {
				return nil, eris.Wrapf(err, "polygon %q part %d", name, i)
			}
		}
	default:
		return nil, eris.Wrapf(ErrMalformedPolygon, "polygon %q: unsupported geometry %T", name, g)
	}
	if len(p.rings) == 0 {
		return nil, eris.Wrapf(ErrMalformedPolygon, "polygon %q: no rings", name)
	}
	return p, nil
}

func (p *Polygon) pushGeomPolygon(poly *geom.Polygon) error {
	if poly.NumLinearRings() == 0 {
		return eris.Wrap(ErrMalformedPolygon, "empty polygon")
	}
	outer := poly.LinearRing(0)
	stride := outer.Stride()
	flat := outer.FlatCoords()
	vertices := make([]Point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		// Raw vertex coordinates are kept even on the zero meridian or equator.
		vertices = append(vertices, Point{lat: flat[i+1], lng: flat[i], valid: true})
	}
	ring, err := closedRing(vertices)
	if err != nil {
		return err
	}
	p.rings = append(p.rings, ring)
	return nil
}

func closedRing(vertices []Point) ([]float64, error) {
	distinct := make(map[[2]float64]struct{}, len(vertices))
	for _, v := range vertices {
		distinct[[2]float64{v.lat, v.lng}] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, eris.Wrapf(ErrMalformedPolygon, "%d distinct vertices, need at least 3", len(distinct))
	}

	ring := make([]float64, 0, 2*(len(vertices)+1))
	for _, v := range vertices {
		ring = append(ring, v.lng, v.lat)
	}
	first, last := vertices[0], vertices[len(vertices)-1]
	if first.lat != last.lat || first.lng != last.lng {
		ring = append(ring, first.lng, first.lat)
	}
	return ring, nil
}

// Contains reports whether pt lies strictly inside the polygon. Points on the
// boundary are outside.
func (p *Polygon) Contains(pt Point) bool {
	if p == nil || !pt.valid {
		return false
	}
	c := geom.Coord{pt.lng, pt.lat}
	for _, ring := range p.rings {
		if xy.LocatePointInRing(geom.XY, c, ring) == location.Interior {
			return true
		}
	}
	return false
}

// Bounds returns the bounding box of all rings.
func (p *Polygon) Bounds() BBox {
	b := BBox{MinLng: 180, MinLat: 90, MaxLng: -180, MaxLat: -90}
	for _, ring := range p.rings {
		for i := 0; i+1 < len(ring); i += 2 {
			lng, lat := ring[i], ring[i+1]
			if lng < b.MinLng {
				b.MinLng = lng
			}
			if lng > b.MaxLng {
				b.MaxLng = lng
			}
			if lat < b.MinLat {
				b.MinLat = lat
			}
			if lat > b.MaxLat {
				b.MaxLat = lat
			}
		}
	}
	return b
}

// Centroid returns the vertex average of the polygon, skipping the closing
// vertex of each ring.
func (p *Polygon) Centroid() Point {
	var sumLat, sumLng float64
	var n int
	for _, ring := range p.rings {
		for i := 0; i+3 < len(ring); i += 2 {
			sumLng += ring[i]
			sumLat += ring[i+1]
			n++
		}
	}
	if n == 0 {
		return Point{}
	}
	return Point{lat: sumLat / float64(n), lng: sumLng / float64(n), valid: true}
}

// NumRings returns the number of outer rings.
func (p *Polygon) NumRings() int { return len(p.rings) }
