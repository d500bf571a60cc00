package policy

import (
	"fmt"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/proximity"
)

// Progression finds the nearest schools of the next hierarchy level within the
// search radius. Terminal levels, a next level missing from the dataset, and
// no next-level school in range each get their own tag.
func Progression(idx *proximity.Index, cand model.Entity, cfg Config) model.Verdict {
	cfg = cfg.withDefaults()
	v := model.NewVerdict(cand, model.PolicyProgression)
	v.Details = &model.Details{SearchRadiusKM: cfg.SearchRadiusKM}

	next, ok := cfg.Next(cand.Level)
	if !ok {
		v.Tag = model.TagTerminalLevel
		v.Reason = fmt.Sprintf("No progression beyond %s level", cand.Level)
		return v
	}
	if !idx.Has(next) {
		v.Tag = model.TagNoProgressionDataset
		v.Reason = fmt.Sprintf("No %s schools found in dataset", next)
		return v
	}

	r := filter(idx.Query(cand.Location, next, cfg.SearchRadiusKM), func(e model.Entity) bool {
		return !isSelf(cand, e)
	}, cfg.TopK)
	v.TotalFound = r.TotalFound
	v.Matches = r.Neighbors()
	if r.TotalFound == 0 {
		v.Tag = model.TagNoProgressionInRadius
		v.Reason = fmt.Sprintf("No %s schools within %gkm", next, cfg.SearchRadiusKM)
		return v
	}

	v.Tag = model.TagProgressionFound
	v.Reason = fmt.Sprintf("Found %d %s schools within %gkm", r.TotalFound, next, cfg.SearchRadiusKM)
	v.NearestByLevel = map[model.Level]model.Neighbor{next: v.Matches[0]}
	v.Details.NearestKM = r.Matches[0].DistanceKM
	return v
}
