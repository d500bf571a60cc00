package geo

import (
	"math"
	"sort"
)

// DistrictRelation describes the spatial relationship between a point and a
// district polygon.
type DistrictRelation struct {
	District       string  `json:"district"`
	IsWithin       bool    `json:"is_within"`
	CentroidKM     float64 `json:"centroid_km"`
	EdgeKM         float64 `json:"edge_km"`
	Classification string  `json:"classification"`
}

// Associate ranks districts by their relationship to pt and returns the top N.
// Containing districts come first, then the rest by distance to the nearest
// boundary vertex. EdgeKM is zero for containing districts.
func Associate(pt Point, districts []*Polygon, topN int) []DistrictRelation {
	if topN <= 0 {
		topN = 3
	}
	if !pt.valid {
		return nil
	}

	relations := make([]DistrictRelation, 0, len(districts))
	for _, d := range districts {
		r := DistrictRelation{
			District:   d.Name,
			IsWithin:   d.Contains(pt),
			CentroidKM: Distance(pt, d.Centroid()),
		}
		if !r.IsWithin {
			r.EdgeKM = nearestVertexKM(pt, d)
		}
		r.Classification = Classify(r.IsWithin, r.EdgeKM)
		relations = append(relations, r)
	}

	sort.SliceStable(relations, func(i, j int) bool {
		a, b := relations[i], relations[j]
		if a.IsWithin != b.IsWithin {
			return a.IsWithin
		}
		if a.EdgeKM != b.EdgeKM {
			return a.EdgeKM < b.EdgeKM
		}
		return a.CentroidKM < b.CentroidKM
	})

	if len(relations) > topN {
		relations = relations[:topN]
	}
	return relations
}

func nearestVertexKM(pt Point, d *Polygon) float64 {
	best := math.Inf(1)
	for _, ring := range d.rings {
		for i := 0; i+1 < len(ring); i += 2 {
			if km := haversine(pt.lat, pt.lng, ring[i+1], ring[i]); km < best {
				best = km
			}
		}
	}
	return best
}
