package policy

import (
	"fmt"
	"strings"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/proximity"
)

// Site scores a bare coordinate for a new school of any level. Every
// hierarchy level is checked against its site spacing; the score is 10 with
// no school in range, 8 with at most two, 6 with more, and 2 when any level
// is too close.
func Site(idx *proximity.Index, cand model.Entity, cfg Config) model.Verdict {
	cfg = cfg.withDefaults()
	v := model.NewVerdict(cand, model.PolicySite)
	keep := neighbourFilter(cand, cfg.Districts)

	nearby := filter(idx.QueryAll(cand.Location, cfg.SiteRadiusKM), keep, 0)
	d := neighbourhood(nearby)
	d.SearchRadiusKM = cfg.SiteRadiusKM
	v.Details = d
	v.TotalFound = nearby.TotalFound
	v.Matches = nearby.Neighbors()
	if len(v.Matches) > 10 {
		v.Matches = v.Matches[:10]
	}
	v.NearestByLevel = make(map[model.Level]model.Neighbor)

	var issues []string
	for _, lvl := range cfg.Hierarchy {
		minKM, ok := cfg.SiteMinDistanceKM[lvl]
		if !ok {
			minKM = cfg.MinDistance(lvl)
		}
		r := filter(idx.Query(cand.Location, lvl, cfg.SiteRadiusKM), keep, 1)
		if len(r.Matches) == 0 {
			continue
		}
		nearest := r.Matches[0]
		v.NearestByLevel[lvl] = proximity.NeighborOf(nearest)
		if nearest.DistanceKM < minKM {
			d.SameLevelConflicts++
			issues = append(issues, fmt.Sprintf("Too close to %s school '%s' (%.2fkm, minimum: %gkm)",
				lvl, nearest.Entity.Name, nearest.DistanceKM, minKM))
		}
	}

	switch {
	case len(issues) > 0:
		v.Tag = model.TagNotFeasible
		v.Score = 2
		v.Risk = model.RiskHigh
		v.Reason = "Too close to existing schools: " + strings.Join(issues, "; ")
	case nearby.TotalFound == 0:
		v.Tag = model.TagHighlyRecommended
		v.Score = 10
		v.Risk = model.RiskVeryLow
		v.Reason = fmt.Sprintf("No schools within %gkm radius", cfg.SiteRadiusKM)
	case nearby.TotalFound <= 2:
		v.Tag = model.TagRecommended
		v.Score = 8
		v.Risk = model.RiskLow
		v.Reason = "Limited nearby schools, good for new establishment"
	default:
		v.Tag = model.TagFeasible
		v.Score = 6
		v.Risk = model.RiskLow
		v.Reason = "Some nearby schools but acceptable distances maintained"
	}
	return v
}
