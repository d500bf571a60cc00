package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns a closed axis-aligned polygon spanning the given lat/lng ranges.
func square(t *testing.T, name string, minLat, minLng, maxLat, maxLng float64) *Polygon {
	t.Helper()
	p, err := NewPolygon(name, []Point{
		MustPoint(maxLat, minLng),
		MustPoint(maxLat, maxLng),
		MustPoint(minLat, maxLng),
		MustPoint(minLat, minLng),
	})
	require.NoError(t, err)
	return p
}

func TestAssociate_ContainingDistrictFirst(t *testing.T) {
	killa := square(t, "Killa Saifullah", 30.45, 68.75, 30.85, 69.20)
	zhob := square(t, "Zhob", 31.00, 69.00, 31.60, 69.80)
	quetta := square(t, "Quetta", 30.00, 66.80, 30.40, 67.20)

	rels := Associate(MustPoint(30.60, 69.00), []*Polygon{quetta, zhob, killa}, 3)
	require.Len(t, rels, 3)

	assert.Equal(t, "Killa Saifullah", rels[0].District)
	assert.True(t, rels[0].IsWithin)
	assert.Equal(t, ClassInside, rels[0].Classification)
	assert.Zero(t, rels[0].EdgeKM)

	assert.Equal(t, "Zhob", rels[1].District)
	assert.False(t, rels[1].IsWithin)
	assert.Equal(t, "Quetta", rels[2].District)
	assert.Equal(t, ClassOutside, rels[2].Classification)
	assert.Greater(t, rels[2].EdgeKM, rels[1].EdgeKM)
}

func TestAssociate_TopNDefaultsAndTruncates(t *testing.T) {
	var polys []*Polygon
	for i := 0; i < 5; i++ {
		base := 25.0 + float64(i)
		polys = append(polys, square(t, "D", base, 66.0, base+0.5, 66.5))
	}

	assert.Len(t, Associate(MustPoint(27.2, 66.2), polys, 0), 3)
	assert.Len(t, Associate(MustPoint(27.2, 66.2), polys, 2), 2)
	assert.Len(t, Associate(MustPoint(27.2, 66.2), polys, 10), 5)
}

func TestAssociate_InvalidPoint(t *testing.T) {
	p := square(t, "Quetta", 30.00, 66.80, 30.40, 67.20)
	assert.Nil(t, Associate(Point{}, []*Polygon{p}, 1))
}

func TestAssociate_BorderClassification(t *testing.T) {
	p := square(t, "Pishin", 30.00, 66.80, 30.40, 67.20)

	// About 1.1 km north of the north-east corner.
	rels := Associate(MustPoint(30.41, 67.20), []*Polygon{p}, 1)
	require.Len(t, rels, 1)
	assert.False(t, rels[0].IsWithin)
	assert.Equal(t, ClassBorder, rels[0].Classification)
	assert.InDelta(t, 1.11, rels[0].EdgeKM, 0.01)
}
