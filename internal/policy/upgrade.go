package policy

import (
	"fmt"
	"sort"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/proximity"
	"github.com/sells-group/schoolsite/internal/report"
)

// Upgrade decides whether an existing school should move up one level. It
// applies only when no next-level school is within the search radius, and
// then recommends the school only if it leads its same-level cluster by
// enrollment, reaches the cluster's upgrade quantile, or is alone in it.
func Upgrade(idx *proximity.Index, cand model.Entity, cfg Config) model.Verdict {
	cfg = cfg.withDefaults()
	v := model.NewVerdict(cand, model.PolicyUpgrade)
	v.Tag = model.TagUpgradeNotNeeded
	d := &model.Details{SearchRadiusKM: cfg.SearchRadiusKM}
	v.Details = d

	next, ok := cfg.Next(cand.Level)
	if !ok {
		v.Reason = fmt.Sprintf("No upgrade beyond %s level", cand.Level)
		return v
	}
	if cfg.FunctionalOnly && !cand.Functional() {
		v.Reason = "School is not functional"
		return v
	}
	if cand.Attributes.Enrollment < cfg.MinEnrollment {
		v.Reason = fmt.Sprintf("Enrollment %d below minimum %d", cand.Attributes.Enrollment, cfg.MinEnrollment)
		return v
	}

	keep := func(e model.Entity) bool {
		if isSelf(cand, e) {
			return false
		}
		if cfg.SameDistrictOnly && e.Region.District != cand.Region.District {
			return false
		}
		return !cfg.FunctionalOnly || e.Functional()
	}

	higher := filter(idx.Query(cand.Location, next, cfg.SearchRadiusKM), keep, cfg.TopK)
	if higher.TotalFound > 0 {
		v.TotalFound = higher.TotalFound
		v.Matches = higher.Neighbors()
		v.NearestByLevel = map[model.Level]model.Neighbor{next: v.Matches[0]}
		v.Reason = fmt.Sprintf("%d %s schools within %gkm", higher.TotalFound, next, cfg.SearchRadiusKM)
		return v
	}

	peers := filter(idx.Query(cand.Location, cand.Level, cfg.SearchRadiusKM), keep, 0)
	d.NearbyCount = peers.TotalFound
	v.TotalFound = peers.TotalFound
	v.Matches = peers.Neighbors()
	if len(v.Matches) > cfg.TopK {
		v.Matches = v.Matches[:cfg.TopK]
	}

	if peers.TotalFound == 0 {
		v.Tag = model.TagUpgradeRecommended
		v.Reason = fmt.Sprintf("No %s school within %gkm, only %s school in area", next, cfg.SearchRadiusKM, cand.Level)
		return v
	}

	// The cluster includes the candidate at distance zero.
	type member struct {
		m    proximity.Match
		self bool
	}
	cluster := []member{{m: proximity.Match{Entity: cand}, self: true}}
	for _, m := range peers.Matches {
		cluster = append(cluster, member{m: m})
	}
	sort.SliceStable(cluster, func(i, j int) bool {
		a, b := cluster[i].m, cluster[j].m
		if a.Entity.Attributes.Enrollment != b.Entity.Attributes.Enrollment {
			return a.Entity.Attributes.Enrollment > b.Entity.Attributes.Enrollment
		}
		return a.DistanceKM < b.DistanceKM
	})
	enrollments := make([]float64, len(cluster))
	for i, c := range cluster {
		enrollments[i] = float64(c.m.Entity.Attributes.Enrollment)
	}
	cutoff := report.Quantile(enrollments, cfg.UpgradeQuantile)
	d.EnrollmentCutoff = cutoff
	enrolled := cand.Attributes.Enrollment

	switch {
	case cluster[0].self:
		v.Tag = model.TagUpgradeRecommended
		v.Reason = fmt.Sprintf("No %s school within %gkm, highest enrollment in area", next, cfg.SearchRadiusKM)
	case float64(enrolled) >= cutoff:
		v.Tag = model.TagUpgradeRecommended
		v.Reason = fmt.Sprintf("No %s school within %gkm, enrollment %d at or above %.0fth percentile (%.1f)",
			next, cfg.SearchRadiusKM, enrolled, cfg.UpgradeQuantile*100, cutoff)
	default:
		top := cluster[0].m.Entity
		v.Reason = fmt.Sprintf("No %s school within %gkm, but %s '%s' has higher enrollment (%d vs %d)",
			next, cfg.SearchRadiusKM, top.Level, top.Name, top.Attributes.Enrollment, enrolled)
	}
	return v
}
