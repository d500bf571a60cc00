package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

func rect(t *testing.T, name string, minLat, minLng, maxLat, maxLng float64) *geo.Polygon {
	t.Helper()
	p, err := geo.NewPolygon(name, []geo.Point{
		geo.MustPoint(minLat, minLng),
		geo.MustPoint(minLat, maxLng),
		geo.MustPoint(maxLat, maxLng),
		geo.MustPoint(maxLat, minLng),
	})
	require.NoError(t, err)
	return p
}

func TestRegion(t *testing.T) {
	killa := rect(t, "Killa Saifullah", 30.45, 68.75, 30.85, 69.20)

	tests := []struct {
		name    string
		pt      geo.Point
		wantTag model.Tag
		wantMsg string
	}{
		{"inside", geo.MustPoint(30.60, 69.00), model.TagInRegion, "Inside Killa Saifullah boundary"},
		{"outside", geo.MustPoint(30.20, 67.00), model.TagOutOfRegion, "Outside Killa Saifullah boundary"},
		{"on boundary", geo.MustPoint(30.45, 69.00), model.TagOutOfRegion, "Outside Killa Saifullah boundary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Region(killa, entity("c", model.LevelPrimary, tt.pt))
			assert.Equal(t, tt.wantTag, v.Tag)
			assert.Equal(t, tt.wantMsg, v.Reason)
			assert.Equal(t, model.PolicyRegion, v.Policy)
		})
	}

	v := Region(nil, entity("c", model.LevelPrimary, geo.MustPoint(30.60, 69.00)))
	assert.Equal(t, model.TagOutOfRegion, v.Tag)
}

func TestRegionOf(t *testing.T) {
	boundaries := []*geo.Polygon{
		rect(t, "Killa Saifullah", 30.45, 68.75, 30.85, 69.20),
		rect(t, "ZHOB", 31.00, 69.00, 31.60, 69.80),
	}

	inOwn := entity("a", model.LevelPrimary, geo.MustPoint(30.60, 69.00), district("killa saifullah"))
	v := RegionOf(boundaries, inOwn)
	assert.Equal(t, model.TagInRegion, v.Tag)
	require.NotNil(t, v.Details)
	assert.Equal(t, []string{"Killa Saifullah", "ZHOB"}, v.Details.Districts)

	listedZhob := entity("b", model.LevelPrimary, geo.MustPoint(30.60, 69.00), district("Zhob"))
	v = RegionOf(boundaries, listedZhob)
	assert.Equal(t, model.TagOutOfRegion, v.Tag)
	assert.Equal(t, "Outside ZHOB boundary; located in Killa Saifullah", v.Reason)

	unknown := entity("c", model.LevelPrimary, geo.MustPoint(30.60, 69.00), district("Ziarat"))
	v = RegionOf(boundaries, unknown)
	assert.Equal(t, model.TagOutOfRegion, v.Tag)
	assert.Equal(t, `No boundary loaded for district "Ziarat"; located in Killa Saifullah`, v.Reason)
}
