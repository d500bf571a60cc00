package geo

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// DefaultNameField is the attribute holding a district name in boundary files.
const DefaultNameField = "DISTRICT"

// LoadBoundaries reads district polygons from a GeoJSON FeatureCollection, an
// ESRI shapefile, or a ZIP archive containing a shapefile. nameField selects
// the attribute used as the polygon name (case-insensitive).
func LoadBoundaries(path, nameField string) ([]*Polygon, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSON(path, nameField)
	case ".shp":
		return loadShapefile(path, nameField)
	case ".zip":
		dir, err := os.MkdirTemp("", "boundaries-*")
		if err != nil {
			return nil, eris.Wrap(err, "geo: create extract dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		if err := extractZIP(path, dir); err != nil {
			return nil, eris.Wrap(err, "geo: extract boundary ZIP")
		}
		shpPath, err := findFileByExt(dir, ".shp")
		if err != nil {
			return nil, eris.Wrap(err, "geo: find .shp file")
		}
		return loadShapefile(shpPath, nameField)
	default:
		return nil, eris.Errorf("geo: unsupported boundary file %q", path)
	}
}

func loadGeoJSON(path, nameField string) ([]*Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson")
	}

	log := zap.L().With(zap.String("component", "geo.loader"))
	polys := make([]*Polygon, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := propertyString(f.Properties, nameField)
		if name == "" {
			name = f.ID
		}
		if name == "" {
			name = fmt.Sprintf("feature-%d", i+1)
		}
		p, err := PolygonFromGeom(name, f.Geometry)
		if err != nil {
			log.Warn("geo: skipping boundary feature", zap.String("name", name), zap.Error(err))
			continue
		}
		polys = append(polys, p)
	}

	log.Info("boundaries loaded", zap.String("path", path), zap.Int("polygons", len(polys)))
	return polys, nil
}

func propertyString(props map[string]interface{}, key string) string {
	for k, v := range props {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}

func loadShapefile(path, nameField string) ([]*Polygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, nameField)
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: shapefile field %q not found", nameField)
	}

	log := zap.L().With(zap.String("component", "geo.loader"))
	var polys []*Polygon
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			continue
		}

		name := strings.TrimSpace(reader.Attribute(nameIdx))
		p, err := polygonFromShape(name, poly)
		if err != nil {
			log.Warn("geo: skipping boundary record", zap.String("name", name), zap.Error(err))
			continue
		}
		polys = append(polys, p)
	}

	log.Info("boundaries loaded", zap.String("path", path), zap.Int("polygons", len(polys)))
	return polys, nil
}

// polygonFromShape converts each part of a shapefile polygon into a ring.
func polygonFromShape(name string, s *shp.Polygon) (*Polygon, error) {
	if s.NumParts == 0 || len(s.Points) == 0 {
		return nil, eris.Wrap(ErrMalformedPolygon, "empty shape")
	}

	p := &Polygon{Name: name}
	for i := int32(0); i < s.NumParts; i++ {
		start := s.Parts[i]
		end := int32(len(s.Points))
		if i+1 < s.NumParts {
			end = s.Parts[i+1]
		}

		vertices := make([]Point, 0, end-start)
		for j := start; j < end; j++ {
			vertices = append(vertices, Point{lat: s.Points[j].Y, lng: s.Points[j].X, valid: true})
		}
		ring, err := closedRing(vertices)
		if err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.String("name", name), zap.Int32("part", i), zap.Error(err))
			continue
		}
		p.rings = append(p.rings, ring)
	}
	if len(p.rings) == 0 {
		return nil, eris.Wrap(ErrMalformedPolygon, "no usable rings")
	}
	return p, nil
}

// extractZIP extracts a ZIP archive to the destination directory.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}
		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}
		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}
	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
