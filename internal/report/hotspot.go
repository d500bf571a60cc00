package report

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/uber/h3-go/v4"

	"github.com/sells-group/schoolsite/internal/model"
)

// DefaultHotspotResolution is roughly a 5 km² hexagon.
const DefaultHotspotResolution = 7

// Hotspot is the verdict density of one H3 cell.
type Hotspot struct {
	Cell       string            `json:"cell"`
	Resolution int               `json:"resolution"`
	Count      int               `json:"count"`
	ByTag      map[model.Tag]int `json:"by_tag"`
	CenterLat  float64           `json:"center_lat"`
	CenterLng  float64           `json:"center_lng"`
}

// Hotspots buckets verdicts into H3 cells at res and returns the cells by
// descending count, ties by cell ID. Verdicts without a location are skipped.
func Hotspots(verdicts []model.Verdict, res int) ([]Hotspot, error) {
	if res < 0 || res > 15 {
		return nil, eris.Errorf("report: h3 resolution %d out of range [0, 15]", res)
	}

	cells := make(map[h3.Cell]*Hotspot)
	for _, v := range verdicts {
		if !v.Location.Valid() {
			continue
		}
		cell, err := h3.LatLngToCell(h3.NewLatLng(v.Location.Lat(), v.Location.Lng()), res)
		if err != nil {
			return nil, eris.Wrapf(err, "report: h3 cell for %s", v.CandidateID)
		}
		hs, ok := cells[cell]
		if !ok {
			hs = &Hotspot{Cell: cell.String(), Resolution: res, ByTag: make(map[model.Tag]int)}
			cells[cell] = hs
		}
		hs.Count++
		hs.ByTag[v.Tag]++
		// Running mean of member locations.
		hs.CenterLat += (v.Location.Lat() - hs.CenterLat) / float64(hs.Count)
		hs.CenterLng += (v.Location.Lng() - hs.CenterLng) / float64(hs.Count)
	}

	out := make([]Hotspot, 0, len(cells))
	for _, hs := range cells {
		out = append(out, *hs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cell < out[j].Cell
	})
	return out, nil
}
