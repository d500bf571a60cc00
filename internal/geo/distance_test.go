package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_KnownPairs(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Point
		wantKM float64
		delta  float64
	}{
		{
			name:   "one degree of latitude",
			a:      MustPoint(30.0, 67.0),
			b:      MustPoint(31.0, 67.0),
			wantKM: 111.195,
			delta:  0.01,
		},
		{
			name:   "Quetta to Karachi",
			a:      MustPoint(30.1798, 66.9750),
			b:      MustPoint(24.8607, 67.0011),
			wantKM: 591.4,
			delta:  1.0,
		},
		{
			name:   "small offset",
			a:      MustPoint(30.10, 67.00),
			b:      MustPoint(30.105, 67.00),
			wantKM: 0.556,
			delta:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKM, Distance(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistance_InvalidIsInfinite(t *testing.T) {
	assert.True(t, math.IsInf(Distance(Point{}, MustPoint(30, 67)), 1))
	assert.True(t, math.IsInf(Distance(MustPoint(30, 67), Point{}), 1))
}

func randomPoint(r *rand.Rand) Point {
	for {
		p, err := NewPoint(r.Float64()*178-89, r.Float64()*358-179)
		if err == nil {
			return p
		}
	}
}

func TestDistance_MetricProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a, b, c := randomPoint(r), randomPoint(r), randomPoint(r)

		ab, ba := Distance(a, b), Distance(b, a)
		assert.InDelta(t, ab, ba, 1e-9, "symmetry")
		assert.Zero(t, Distance(a, a), "identity")
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, math.Pi*EarthRadiusKM+1e-6)
		assert.LessOrEqual(t, ab, Distance(a, c)+Distance(c, b)+1e-6, "triangle inequality")
	}
}

func TestDistances_PreservesOrder(t *testing.T) {
	origin := MustPoint(30.0, 67.0)
	targets := []Point{MustPoint(31.0, 67.0), {}, MustPoint(30.0, 67.0)}

	got := Distances(origin, targets)
	assert.Len(t, got, 3)
	assert.InDelta(t, 111.195, got[0], 0.01)
	assert.True(t, math.IsInf(got[1], 1))
	assert.Zero(t, got[2])
}
