package policy

import (
	"fmt"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/proximity"
)

// Feasibility applies the minimum-distance rule to a proposed school. A
// same-level school strictly closer than the level's minimum makes the site
// NOT_FEASIBLE; otherwise the site is graded by the enrollment of schools
// within the search radius.
func Feasibility(idx *proximity.Index, cand model.Entity, cfg Config) model.Verdict {
	cfg = cfg.withDefaults()
	v := model.NewVerdict(cand, model.PolicyFeasibility)
	minKM := cfg.MinDistance(cand.Level)
	keep := neighbourFilter(cand, cfg.Districts)

	nearby := filter(idx.QueryAll(cand.Location, cfg.SearchRadiusKM), keep, 0)
	conflicts := closerThan(filter(idx.Query(cand.Location, cand.Level, minKM), keep, 0), minKM)

	d := neighbourhood(nearby)
	d.SearchRadiusKM = cfg.SearchRadiusKM
	d.MinDistanceKM = minKM
	d.SameLevelConflicts = conflicts.TotalFound
	v.Details = d
	v.NearestByLevel = nearestByLevel(idx, cand.Location, cfg.SearchRadiusKM, keep)
	v.TotalFound = conflicts.TotalFound
	v.Matches = conflicts.Neighbors()

	if conflicts.TotalFound == 0 {
		gradeFeasible(&v, cand.Level, minKM, d.TotalEnrollment, cfg)
		return v
	}

	nearest := conflicts.Matches[0]
	v.Tag = model.TagNotFeasible
	base := fmt.Sprintf("%s school '%s' only %.2fkm away (minimum: %gkm)",
		cand.Level, nearest.Entity.Name, nearest.DistanceKM, minKM)
	switch {
	case nearest.DistanceKM < 0.5*minKM:
		v.Risk = model.RiskVeryHigh
		v.Reason = base + ". CRITICAL: Too close to existing school - may cause enrollment conflicts."
	case nearest.DistanceKM < 0.75*minKM:
		v.Risk = model.RiskHigh
		v.Reason = base + ". HIGH RISK: Close proximity may impact both schools' viability."
	default:
		v.Risk = model.RiskMedium
		v.Reason = base + ". MODERATE RISK: Consider upgrading existing school instead."
	}
	return v
}

func gradeFeasible(v *model.Verdict, level model.Level, minKM float64, students int, cfg Config) {
	base := fmt.Sprintf("No %s school within %gkm radius", level, minKM)
	switch {
	case students > cfg.HighDensityEnrollment && cfg.highDensityLevel(level):
		v.Tag = model.TagHighlyRecommended
		v.Risk = model.RiskVeryLow
		v.Reason = fmt.Sprintf("%s. High student density (%d students) indicates strong demand.", base, students)
	case students > cfg.DensityEnrollment:
		v.Tag = model.TagRecommended
		v.Risk = model.RiskLow
		v.Reason = fmt.Sprintf("%s. Moderate student density (%d students) supports new school.", base, students)
	default:
		v.Tag = model.TagFeasible
		v.Risk = model.RiskLow
		v.Reason = fmt.Sprintf("%s. Low student density (%d students) - consider community need assessment.", base, students)
	}
}
