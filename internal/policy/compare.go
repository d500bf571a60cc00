package policy

import (
	"fmt"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/proximity"
)

// Compare measures a BEF school against the government schools around it.
// BEF entries in the reference set are ignored.
func Compare(idx *proximity.Index, cand model.Entity, cfg Config) model.Verdict {
	cfg = cfg.withDefaults()
	v := model.NewVerdict(cand, model.PolicyCompare)
	keep := func(e model.Entity) bool {
		return !isSelf(cand, e) && e.Type != model.SchoolTypeBEF
	}

	govt := filter(idx.QueryAll(cand.Location, cfg.SearchRadiusKM), keep, 0)
	d := neighbourhood(govt)
	d.SearchRadiusKM = cfg.SearchRadiusKM
	v.Details = d
	v.TotalFound = govt.TotalFound
	v.Matches = govt.Neighbors()
	if len(v.Matches) > cfg.TopK {
		v.Matches = v.Matches[:cfg.TopK]
	}

	if govt.TotalFound == 0 {
		v.Tag = model.TagNoGovtNearby
		v.Reason = fmt.Sprintf("No government schools within %gkm", cfg.SearchRadiusKM)
		return v
	}
	v.NearestByLevel = nearestByLevel(idx, cand.Location, cfg.SearchRadiusKM, keep)
	v.Tag = model.TagGovtNearby
	v.Reason = fmt.Sprintf("%d government schools within %gkm (nearest %.2fkm, average %.2fkm)",
		govt.TotalFound, cfg.SearchRadiusKM, d.NearestKM, d.AvgDistanceKM)
	return v
}
