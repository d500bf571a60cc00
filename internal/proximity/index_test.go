package proximity

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

func school(id string, lvl model.Level, lat, lng float64) model.Entity {
	return model.Entity{ID: id, Name: "School " + id, Level: lvl, Location: geo.MustPoint(lat, lng)}
}

func matchIDs(r Result) []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.Entity.ID
	}
	return ids
}

func TestQuery_SortedWithinRadius(t *testing.T) {
	idx := Build([]model.Entity{
		school("far", model.LevelPrimary, 30.50, 67.00),
		school("mid", model.LevelPrimary, 30.20, 67.00),
		school("near", model.LevelPrimary, 30.11, 67.00),
		school("other-level", model.LevelMiddle, 30.10, 67.00),
	})

	r := idx.Query(geo.MustPoint(30.10, 67.00), model.LevelPrimary, 20)
	assert.Equal(t, []string{"near", "mid"}, matchIDs(r))
	assert.Equal(t, 2, r.TotalFound)
	assert.InDelta(t, 1.112, r.Matches[0].DistanceKM, 0.001)
	assert.InDelta(t, 11.12, r.Matches[1].DistanceKM, 0.01)
}

func TestQuery_TiesBrokenByID(t *testing.T) {
	idx := Build([]model.Entity{
		school("c", model.LevelHigh, 30.20, 67.00),
		school("a", model.LevelHigh, 30.20, 67.00),
		school("b", model.LevelHigh, 30.20, 67.00),
	})

	r := idx.Query(geo.MustPoint(30.10, 67.00), model.LevelHigh, 25)
	assert.Equal(t, []string{"a", "b", "c"}, matchIDs(r))
}

func TestQueryTopK_TotalFoundBeforeTruncation(t *testing.T) {
	var ents []model.Entity
	for i := 0; i < 8; i++ {
		ents = append(ents, school(fmt.Sprintf("s%d", i), model.LevelMiddle, 30.10+float64(i)*0.01, 67.00))
	}
	idx := Build(ents)

	r := idx.QueryTopK(geo.MustPoint(30.10, 67.00), model.LevelMiddle, 25, 3)
	assert.Equal(t, []string{"s0", "s1", "s2"}, matchIDs(r))
	assert.Equal(t, 8, r.TotalFound)

	all := idx.QueryTopK(geo.MustPoint(30.10, 67.00), model.LevelMiddle, 25, 0)
	assert.Len(t, all.Matches, 8)
}

func TestQuery_Empty(t *testing.T) {
	idx := Build([]model.Entity{school("a", model.LevelPrimary, 30.10, 67.00)})

	tests := []struct {
		name   string
		origin geo.Point
		level  model.Level
		radius float64
	}{
		{"no hits in box", geo.MustPoint(25.0, 62.0), model.LevelPrimary, 5},
		{"level absent", geo.MustPoint(30.10, 67.00), model.LevelHigherSecondary, 25},
		{"invalid origin", geo.Point{}, model.LevelPrimary, 25},
		{"negative radius", geo.MustPoint(30.10, 67.00), model.LevelPrimary, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := idx.Query(tt.origin, tt.level, tt.radius)
			assert.Empty(t, r.Matches)
			assert.NotNil(t, r.Matches)
			assert.Zero(t, r.TotalFound)
		})
	}
}

func TestQuery_ZeroRadiusHitsColocated(t *testing.T) {
	idx := Build([]model.Entity{school("a", model.LevelPrimary, 30.10, 67.00)})
	r := idx.Query(geo.MustPoint(30.10, 67.00), model.LevelPrimary, 0)
	assert.Equal(t, []string{"a"}, matchIDs(r))
}

func TestQueryAll(t *testing.T) {
	idx := Build([]model.Entity{
		school("p", model.LevelPrimary, 30.12, 67.00),
		school("m", model.LevelMiddle, 30.11, 67.00),
		school("h", model.LevelHigh, 31.50, 67.00),
	})

	r := idx.QueryAll(geo.MustPoint(30.10, 67.00), 10)
	assert.Equal(t, []string{"m", "p"}, matchIDs(r))
	assert.Equal(t, 2, r.TotalFound)
}

func TestNearest(t *testing.T) {
	idx := Build([]model.Entity{
		school("a", model.LevelHigh, 30.30, 67.00),
		school("b", model.LevelHigh, 30.20, 67.00),
	})

	m, ok := idx.Nearest(geo.MustPoint(30.10, 67.00), model.LevelHigh, 50)
	require.True(t, ok)
	assert.Equal(t, "b", m.Entity.ID)

	_, ok = idx.Nearest(geo.MustPoint(30.10, 67.00), model.LevelHigh, 5)
	assert.False(t, ok)
}

func TestIndexLevels(t *testing.T) {
	idx := Build([]model.Entity{
		school("1", model.LevelHigherSecondary, 30.1, 67.0),
		school("2", model.Level("Madrassa"), 30.1, 67.0),
		school("3", model.LevelPrimary, 30.1, 67.0),
		school("4", model.LevelPrimary, 30.2, 67.0),
		{ID: "no-location", Level: model.LevelMiddle},
	})

	assert.Equal(t, []model.Level{model.LevelPrimary, model.LevelHigherSecondary, "Madrassa"}, idx.Levels())
	assert.Equal(t, 4, idx.Size())
	assert.Equal(t, 2, idx.Count(model.LevelPrimary))
	assert.True(t, idx.Has(model.LevelHigherSecondary))
	assert.False(t, idx.Has(model.LevelMiddle))
}

func TestBuild_CopiesInput(t *testing.T) {
	ents := []model.Entity{school("a", model.LevelPrimary, 30.10, 67.00)}
	idx := Build(ents)
	ents[0].ID = "mutated"

	r := idx.Query(geo.MustPoint(30.10, 67.00), model.LevelPrimary, 1)
	assert.Equal(t, []string{"a"}, matchIDs(r))
}

func TestQuery_Antimeridian(t *testing.T) {
	idx := Build([]model.Entity{
		school("east", model.LevelPrimary, -17.70, 179.95),
		school("west", model.LevelPrimary, -17.70, -179.95),
	})

	r := idx.Query(geo.MustPoint(-17.70, 179.99), model.LevelPrimary, 20)
	assert.ElementsMatch(t, []string{"east", "west"}, matchIDs(r))
}

func randomEntities(r *rand.Rand, n int, center geo.Point, spreadDeg float64) []model.Entity {
	levels := model.DefaultHierarchy
	out := make([]model.Entity, 0, n)
	for len(out) < n {
		lat := center.Lat() + (r.Float64()*2-1)*spreadDeg
		lng := center.Lng() + (r.Float64()*2-1)*spreadDeg
		p, err := geo.NewPoint(lat, lng)
		if err != nil {
			continue
		}
		out = append(out, model.Entity{
			ID:       fmt.Sprintf("E%04d", len(out)),
			Level:    levels[r.Intn(len(levels))],
			Location: p,
		})
	}
	return out
}

// The index must agree with a linear scan for any origin and radius.
func TestQuery_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for trial := 0; trial < 1000; trial++ {
		var center geo.Point
		switch trial % 4 {
		case 0:
			center = geo.MustPoint(30.0, 67.0) // Balochistan
		case 1:
			center = geo.MustPoint(78.0, 15.0) // high latitude
		case 2:
			center = geo.MustPoint(-10.0, 179.5) // antimeridian
		default:
			center = geo.MustPoint(r.Float64()*160-80, r.Float64()*340-170)
		}

		ents := randomEntities(r, 60, center, 1.5)
		idx := Build(ents)
		origin := randomEntities(r, 1, center, 1.0)[0].Location
		radius := r.Float64() * 150
		level := model.DefaultHierarchy[r.Intn(len(model.DefaultHierarchy))]

		got := idx.Query(origin, level, radius)
		want := BruteForce(ents, origin, level, radius)
		if diff := cmp.Diff(matchIDs(want), matchIDs(got)); diff != "" {
			t.Fatalf("trial %d origin %v radius %.2f: mismatch (-want +got):\n%s", trial, origin, radius, diff)
		}
		assert.Equal(t, want.TotalFound, got.TotalFound)
	}
}

func TestQuery_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	ents := randomEntities(r, 500, geo.MustPoint(30.0, 67.0), 0.5)
	idx := Build(ents)
	origin := geo.MustPoint(30.0, 67.0)

	first := idx.QueryAll(origin, 40)
	for i := 0; i < 5; i++ {
		assert.Equal(t, matchIDs(first), matchIDs(idx.QueryAll(origin, 40)))
	}
	assert.Equal(t, matchIDs(first), matchIDs(Build(ents).QueryAll(origin, 40)))
}

func TestIndex_ConcurrentQueries(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	ents := randomEntities(r, 300, geo.MustPoint(30.0, 67.0), 0.5)
	idx := Build(ents)
	origin := geo.MustPoint(30.0, 67.0)
	want := matchIDs(idx.Query(origin, model.LevelPrimary, 30))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, matchIDs(idx.Query(origin, model.LevelPrimary, 30)))
		}()
	}
	wg.Wait()
}

func TestResultNeighbors(t *testing.T) {
	e := school("a", model.LevelPrimary, 30.10, 67.00)
	e.Region = model.NewRegion("quetta", "", "")
	e.Attributes.Enrollment = 240

	n := Result{Matches: []Match{{Entity: e, DistanceKM: 1.5}}}.Neighbors()
	assert.Equal(t, []model.Neighbor{{
		ID: "a", Name: "School a", Level: model.LevelPrimary,
		District: "Quetta", Enrollment: 240, DistanceKM: 1.5,
	}}, n)
}
