// Package proximity indexes reference entities by level and answers radius
// and top-K queries over them.
package proximity

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

const (
	// pointTolerance pads each stored point into a tiny rect; rtreego treats
	// touching rects as disjoint.
	pointTolerance = 1e-9

	minChildren = 25
	maxChildren = 50
)

// Match is one reference entity within a query radius.
type Match struct {
	Entity     model.Entity `json:"entity"`
	DistanceKM float64      `json:"distance_km"`
}

// Result is the outcome of a radius query. Matches are ascending by distance,
// ties broken by entity ID. TotalFound counts every entity within the radius,
// including those dropped by a top-K limit.
type Result struct {
	Matches    []Match `json:"matches"`
	TotalFound int     `json:"total_found"`
}

// Neighbors converts the matches into verdict neighbors.
func (r Result) Neighbors() []model.Neighbor {
	out := make([]model.Neighbor, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = NeighborOf(m)
	}
	return out
}

// NeighborOf converts a match into a verdict neighbor.
func NeighborOf(m Match) model.Neighbor {
	return model.Neighbor{
		ID:         m.Entity.ID,
		Name:       m.Entity.Name,
		Level:      m.Entity.Level,
		District:   m.Entity.Region.District,
		Enrollment: m.Entity.Attributes.Enrollment,
		DistanceKM: m.DistanceKM,
	}
}

type item struct {
	seq    int
	entity *model.Entity
	rect   rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect { return it.rect }

// Index is an immutable per-level R-tree over a reference set. It is safe for
// concurrent queries once Build returns.
type Index struct {
	trees  map[model.Level]*rtreego.Rtree
	counts map[model.Level]int
	levels []model.Level
	size   int
}

// Build indexes entities by level. Entities without a valid location are
// skipped. The input slice is copied, so later changes to it do not affect
// the index.
func Build(entities []model.Entity) *Index {
	owned := make([]model.Entity, len(entities))
	copy(owned, entities)

	grouped := make(map[model.Level][]rtreego.Spatial)
	for i := range owned {
		e := &owned[i]
		if !e.Location.Valid() {
			continue
		}
		pt := rtreego.Point{e.Location.Lng(), e.Location.Lat()}
		grouped[e.Level] = append(grouped[e.Level], &item{seq: i, entity: e, rect: pt.ToRect(pointTolerance)})
	}

	idx := &Index{
		trees:  make(map[model.Level]*rtreego.Rtree, len(grouped)),
		counts: make(map[model.Level]int, len(grouped)),
	}
	for lvl, objs := range grouped {
		idx.trees[lvl] = rtreego.NewTree(2, minChildren, maxChildren, objs...)
		idx.counts[lvl] = len(objs)
		idx.levels = append(idx.levels, lvl)
		idx.size += len(objs)
	}
	sortLevels(idx.levels)
	return idx
}

// Size returns the number of indexed entities.
func (idx *Index) Size() int { return idx.size }

// Has reports whether any entity of level is indexed.
func (idx *Index) Has(level model.Level) bool { return idx.counts[level] > 0 }

// Count returns the number of indexed entities of level.
func (idx *Index) Count(level model.Level) int { return idx.counts[level] }

// Levels returns the indexed levels, hierarchy levels first.
func (idx *Index) Levels() []model.Level {
	out := make([]model.Level, len(idx.levels))
	copy(out, idx.levels)
	return out
}

// Query returns every entity of level within radiusKM of origin.
func (idx *Index) Query(origin geo.Point, level model.Level, radiusKM float64) Result {
	hits := idx.collect(origin, level, radiusKM, nil)
	return finish(hits, 0)
}

// QueryTopK is Query truncated to the k nearest matches. k <= 0 means no limit.
func (idx *Index) QueryTopK(origin geo.Point, level model.Level, radiusKM float64, k int) Result {
	hits := idx.collect(origin, level, radiusKM, nil)
	return finish(hits, k)
}

// QueryAll returns entities of every level within radiusKM of origin.
func (idx *Index) QueryAll(origin geo.Point, radiusKM float64) Result {
	var hits []hit
	for _, lvl := range idx.levels {
		hits = idx.collect(origin, lvl, radiusKM, hits)
	}
	return finish(hits, 0)
}

// Nearest returns the closest entity of level within radiusKM.
func (idx *Index) Nearest(origin geo.Point, level model.Level, radiusKM float64) (Match, bool) {
	r := idx.QueryTopK(origin, level, radiusKM, 1)
	if len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}

type hit struct {
	seq int
	m   Match
}

func (idx *Index) collect(origin geo.Point, level model.Level, radiusKM float64, hits []hit) []hit {
	tree := idx.trees[level]
	if tree == nil || !origin.Valid() || radiusKM < 0 || math.IsNaN(radiusKM) {
		return hits
	}
	for _, box := range geo.SearchBoxes(origin, radiusKM) {
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{box.MinLng, box.MinLat},
			rtreego.Point{box.MaxLng, box.MaxLat},
		)
		if err != nil {
			continue
		}
		for _, s := range tree.SearchIntersect(rect) {
			it := s.(*item)
			d := geo.Distance(origin, it.entity.Location)
			if d <= radiusKM {
				hits = append(hits, hit{seq: it.seq, m: Match{Entity: *it.entity, DistanceKM: d}})
			}
		}
	}
	return dedupe(hits)
}

// dedupe drops repeats that arise when split antimeridian boxes both touch a
// point lying on the ±180 meridian.
func dedupe(hits []hit) []hit {
	if len(hits) < 2 {
		return hits
	}
	seen := make(map[int]struct{}, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if _, ok := seen[h.seq]; ok {
			continue
		}
		seen[h.seq] = struct{}{}
		out = append(out, h)
	}
	return out
}

func finish(hits []hit, k int) Result {
	sortHits(hits)
	res := Result{TotalFound: len(hits), Matches: make([]Match, 0, len(hits))}
	for _, h := range hits {
		if k > 0 && len(res.Matches) == k {
			break
		}
		res.Matches = append(res.Matches, h.m)
	}
	return res
}

func sortHits(hits []hit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.m.DistanceKM != b.m.DistanceKM {
			return a.m.DistanceKM < b.m.DistanceKM
		}
		if a.m.Entity.ID != b.m.Entity.ID {
			return a.m.Entity.ID < b.m.Entity.ID
		}
		return a.seq < b.seq
	})
}

func sortLevels(levels []model.Level) {
	rank := func(l model.Level) int {
		for i, h := range model.DefaultHierarchy {
			if h == l {
				return i
			}
		}
		return len(model.DefaultHierarchy)
	}
	sort.Slice(levels, func(i, j int) bool {
		ri, rj := rank(levels[i]), rank(levels[j])
		if ri != rj {
			return ri < rj
		}
		return levels[i] < levels[j]
	})
}

// BruteForce scans entities linearly and returns the same result Query would
// for an index built over them.
func BruteForce(entities []model.Entity, origin geo.Point, level model.Level, radiusKM float64) Result {
	var hits []hit
	if origin.Valid() && radiusKM >= 0 {
		for i, e := range entities {
			if e.Level != level || !e.Location.Valid() {
				continue
			}
			if d := geo.Distance(origin, e.Location); d <= radiusKM {
				hits = append(hits, hit{seq: i, m: Match{Entity: e, DistanceKM: d}})
			}
		}
	}
	return finish(hits, 0)
}
