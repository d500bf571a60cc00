package policy

import (
	"math"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/proximity"
)

// keepFunc decides whether a reference match counts for a candidate.
type keepFunc func(e model.Entity) bool

// isSelf reports whether ref is the candidate itself, present in its own
// reference set.
func isSelf(cand, ref model.Entity) bool {
	return cand.ID != "" && cand.ID == ref.ID && cand.Location == ref.Location
}

func neighbourFilter(cand model.Entity, districts []string) keepFunc {
	return func(e model.Entity) bool {
		return !isSelf(cand, e) && model.MatchesDistrict(e.Region.District, districts)
	}
}

// filter drops matches rejected by keep and recomputes TotalFound.
// Truncation to k happens after filtering; k <= 0 keeps all.
func filter(r proximity.Result, keep keepFunc, k int) proximity.Result {
	out := proximity.Result{Matches: make([]proximity.Match, 0, len(r.Matches))}
	for _, m := range r.Matches {
		if keep != nil && !keep(m.Entity) {
			continue
		}
		out.TotalFound++
		if k <= 0 || len(out.Matches) < k {
			out.Matches = append(out.Matches, m)
		}
	}
	return out
}

// closerThan keeps matches strictly under km. Radius queries are inclusive;
// spacing rules are not.
func closerThan(r proximity.Result, km float64) proximity.Result {
	out := proximity.Result{Matches: make([]proximity.Match, 0, len(r.Matches))}
	for _, m := range r.Matches {
		if m.DistanceKM < km {
			out.Matches = append(out.Matches, m)
		}
	}
	out.TotalFound = len(out.Matches)
	return out
}

// nearestByLevel returns the closest kept entity of every indexed level
// within radiusKM of origin.
func nearestByLevel(idx *proximity.Index, origin geo.Point, radiusKM float64, keep keepFunc) map[model.Level]model.Neighbor {
	out := make(map[model.Level]model.Neighbor)
	for _, lvl := range idx.Levels() {
		r := filter(idx.Query(origin, lvl, radiusKM), keep, 1)
		if len(r.Matches) > 0 {
			out[lvl] = proximity.NeighborOf(r.Matches[0])
		}
	}
	return out
}

// neighbourhood summarizes the kept matches of r.
func neighbourhood(r proximity.Result) *model.Details {
	d := &model.Details{
		NearbyCount: len(r.Matches),
		LevelCounts: make(map[model.Level]int),
		Genders:     make(map[string]int),
	}
	var functional int
	var distSum float64
	for _, m := range r.Matches {
		e := m.Entity
		d.LevelCounts[e.Level]++
		d.TotalEnrollment += e.Attributes.Enrollment
		if e.Functional() {
			functional++
		}
		if e.Attributes.Gender != "" {
			d.Genders[e.Attributes.Gender]++
		}
		distSum += m.DistanceKM
	}
	if n := len(r.Matches); n > 0 {
		d.AvgEnrollment = round(float64(d.TotalEnrollment)/float64(n), 1)
		d.FunctionalPct = round(float64(functional)/float64(n)*100, 1)
		d.NearestKM = r.Matches[0].DistanceKM
		d.AvgDistanceKM = distSum / float64(n)
	}
	return d
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
