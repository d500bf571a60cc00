// Package report rolls verdicts up into overall and per-region summaries.
package report

import (
	"math"
	"sort"

	"github.com/sells-group/schoolsite/internal/model"
)

// UnknownRegion is the bucket for verdicts without a district.
const UnknownRegion = "Unknown"

// RegionSummary holds the per-district breakdown.
type RegionSummary struct {
	Region            string              `json:"region"`
	Candidates        int                 `json:"candidates"`
	ByTag             map[model.Tag]int   `json:"by_tag"`
	ReferenceEntities int                 `json:"reference_entities"`
	ReferenceByLevel  map[model.Level]int `json:"reference_by_level"`
}

// Feasible counts the region's candidates with a feasible grade.
func (r RegionSummary) Feasible() int {
	n := 0
	for tag, c := range r.ByTag {
		if tag.Feasible() {
			n += c
		}
	}
	return n
}

// Recommended counts the region's candidates carrying a recommendation.
func (r RegionSummary) Recommended() int {
	n := 0
	for tag, c := range r.ByTag {
		if tag.Recommended() {
			n += c
		}
	}
	return n
}

// Summary is the roll-up of one run.
type Summary struct {
	Total          int                      `json:"total"`
	ByTag          map[model.Tag]int        `json:"by_tag"`
	ByRisk         map[model.Risk]int       `json:"by_risk"`
	FeasiblePct    float64                  `json:"feasible_pct"`
	RecommendedPct float64                  `json:"recommended_pct"`
	AvgNearestKM   float64                  `json:"avg_nearest_km"`
	AvgScore       float64                  `json:"avg_score,omitempty"`
	Regions        map[string]RegionSummary `json:"regions"`
}

// RegionNames returns the region keys in sorted order.
func (s Summary) RegionNames() []string {
	names := make([]string, 0, len(s.Regions))
	for name := range s.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// region returns the bucket for key, creating it empty.
func (s Summary) region(key string) RegionSummary {
	if rs, ok := s.Regions[key]; ok {
		return rs
	}
	return RegionSummary{
		Region:           key,
		ByTag:            make(map[model.Tag]int),
		ReferenceByLevel: make(map[model.Level]int),
	}
}

// regionKey normalizes a district for grouping.
func regionKey(district string) string {
	if k := model.NormalizeRegion(district); k != "" {
		return k
	}
	return UnknownRegion
}

// Summarize counts verdicts by tag, risk, and district. Every district seen in
// verdicts or reference gets a bucket; reference-only districts report zero
// candidates. District names are normalized first, so "quetta " and "Quetta"
// share a bucket.
func Summarize(verdicts []model.Verdict, reference []model.Entity) Summary {
	s := Summary{
		Total:   len(verdicts),
		ByTag:   make(map[model.Tag]int),
		ByRisk:  make(map[model.Risk]int),
		Regions: make(map[string]RegionSummary),
	}

	var feasible, recommended, withNearest, scored int
	var nearestSum float64
	var scoreSum int
	for _, v := range verdicts {
		s.ByTag[v.Tag]++
		if v.Risk != "" {
			s.ByRisk[v.Risk]++
		}
		if v.Tag.Feasible() {
			feasible++
		}
		if v.Tag.Recommended() {
			recommended++
		}
		if km, ok := nearestKM(v); ok {
			nearestSum += km
			withNearest++
		}
		if v.Policy == model.PolicySite {
			scoreSum += v.Score
			scored++
		}

		key := regionKey(v.Region.District)
		rs := s.region(key)
		rs.Candidates++
		rs.ByTag[v.Tag]++
		s.Regions[key] = rs
	}

	for _, e := range reference {
		key := regionKey(e.Region.District)
		rs := s.region(key)
		rs.ReferenceEntities++
		rs.ReferenceByLevel[e.Level]++
		s.Regions[key] = rs
	}

	if s.Total > 0 {
		s.FeasiblePct = pct(feasible, s.Total)
		s.RecommendedPct = pct(recommended, s.Total)
	}
	if withNearest > 0 {
		s.AvgNearestKM = nearestSum / float64(withNearest)
	}
	if scored > 0 {
		s.AvgScore = float64(scoreSum) / float64(scored)
	}
	return s
}

// nearestKM is the distance of the closest neighbour behind a verdict.
func nearestKM(v model.Verdict) (float64, bool) {
	if v.Details != nil && v.Details.NearestKM > 0 {
		return v.Details.NearestKM, true
	}
	if len(v.Matches) > 0 {
		return v.Matches[0].DistanceKM, true
	}
	return 0, false
}

func pct(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
