package policy

import (
	"fmt"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

// Region checks whether a candidate lies strictly inside poly. Points on the
// boundary are outside.
func Region(poly *geo.Polygon, cand model.Entity) model.Verdict {
	v := model.NewVerdict(cand, model.PolicyRegion)
	if poly == nil {
		v.Tag = model.TagOutOfRegion
		v.Reason = "No boundary available"
		return v
	}
	if poly.Contains(cand.Location) {
		v.Tag = model.TagInRegion
		v.Reason = fmt.Sprintf("Inside %s boundary", poly.Name)
		return v
	}
	v.Tag = model.TagOutOfRegion
	v.Reason = fmt.Sprintf("Outside %s boundary", poly.Name)
	return v
}

// RegionOf checks a candidate against the boundary of its own district and
// reports the districts it actually falls in or borders.
func RegionOf(boundaries []*geo.Polygon, cand model.Entity) model.Verdict {
	var own *geo.Polygon
	for _, b := range boundaries {
		if model.NormalizeRegion(b.Name) == cand.Region.District {
			own = b
			break
		}
	}

	v := Region(own, cand)
	if own == nil {
		v.Reason = fmt.Sprintf("No boundary loaded for district %q", cand.Region.District)
	}

	rels := geo.Associate(cand.Location, boundaries, 3)
	d := &model.Details{Extra: map[string]any{"relations": rels}}
	for _, r := range rels {
		d.Districts = append(d.Districts, r.District)
	}
	if v.Tag == model.TagOutOfRegion && len(rels) > 0 && rels[0].IsWithin {
		v.Reason += fmt.Sprintf("; located in %s", rels[0].District)
	}
	v.Details = d
	return v
}
