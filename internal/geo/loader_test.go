package geo

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"district": "Killa Saifullah"},
      "geometry": {"type": "Polygon", "coordinates": [[[68.75,30.85],[69.20,30.85],[69.20,30.45],[68.75,30.45],[68.75,30.85]]]}
    },
    {
      "type": "Feature",
      "id": "zhob",
      "properties": {},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[69.0,31.0],[69.8,31.0],[69.8,31.6],[69.0,31.0]]]]}
    },
    {
      "type": "Feature",
      "properties": {"DISTRICT": "Broken"},
      "geometry": {"type": "Polygon", "coordinates": [[[67.0,30.0],[67.1,30.0],[67.0,30.0]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": 7},
      "geometry": {"type": "Point", "coordinates": [67.0,30.0]}
    }
  ]
}`

func TestLoadBoundaries_GeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testGeoJSON), 0o644))

	polys, err := LoadBoundaries(path, "")
	require.NoError(t, err)
	require.Len(t, polys, 2)

	assert.Equal(t, "Killa Saifullah", polys[0].Name)
	assert.True(t, polys[0].Contains(MustPoint(30.6, 69.0)))
	assert.Equal(t, "zhob", polys[1].Name)
}

func TestLoadBoundaries_GeoJSONBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadBoundaries(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geojson")
}

func TestLoadBoundaries_Unsupported(t *testing.T) {
	_, err := LoadBoundaries("districts.kml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported boundary file")
}

func writeTestShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "districts.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("DISTRICT", 40)}))

	rings := []struct {
		name string
		pts  []shp.Point
	}{
		{"Killa Saifullah", []shp.Point{{X: 68.75, Y: 30.85}, {X: 69.20, Y: 30.85}, {X: 69.20, Y: 30.45}, {X: 68.75, Y: 30.45}, {X: 68.75, Y: 30.85}}},
		{"Quetta", []shp.Point{{X: 66.80, Y: 30.40}, {X: 67.20, Y: 30.40}, {X: 67.20, Y: 30.00}, {X: 66.80, Y: 30.00}, {X: 66.80, Y: 30.40}}},
	}
	for i, r := range rings {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{r.pts}))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, r.name))
	}
	w.Close()
	return path
}

func TestLoadBoundaries_Shapefile(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())

	polys, err := LoadBoundaries(path, "district")
	require.NoError(t, err)
	require.Len(t, polys, 2)
	assert.Equal(t, "Killa Saifullah", polys[0].Name)
	assert.Equal(t, "Quetta", polys[1].Name)
	assert.True(t, polys[1].Contains(MustPoint(30.18, 66.98)))
	assert.False(t, polys[1].Contains(MustPoint(30.60, 69.00)))
}

func TestLoadBoundaries_ShapefileMissingField(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())

	_, err := LoadBoundaries(path, "PROVINCE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVINCE")
}

func TestLoadBoundaries_ZIP(t *testing.T) {
	src := t.TempDir()
	writeTestShapefile(t, src)

	zipPath := filepath.Join(t.TempDir(), "districts.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		in, err := os.Open(filepath.Join(src, "districts"+ext))
		require.NoError(t, err)
		out, err := zw.Create("boundaries/districts" + ext)
		require.NoError(t, err)
		_, err = io.Copy(out, in)
		require.NoError(t, err)
		_ = in.Close()
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	polys, err := LoadBoundaries(zipPath, "")
	require.NoError(t, err)
	assert.Len(t, polys, 2)
}

func TestFindFileByExt_NotFound(t *testing.T) {
	_, err := findFileByExt(t.TempDir(), ".shp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file found")
}
