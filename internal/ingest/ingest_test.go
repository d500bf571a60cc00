package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schoolsite/internal/fetcher"
	"github.com/sells-group/schoolsite/internal/geo"
	"github.com/sells-group/schoolsite/internal/model"
)

func table(t *testing.T, csv string) *fetcher.Table {
	t.Helper()
	tbl, err := fetcher.StreamCSV(context.Background(), strings.NewReader(csv), fetcher.CSVOptions{})
	require.NoError(t, err)
	return tbl
}

func TestResolveHeader(t *testing.T) {
	cols := ResolveHeader([]string{"BemisCode", "SchoolName", "_yCord", "_xCord", "School Level", "TotalStudentProfileEntered", "Building", "Latitude"})

	for _, f := range []string{FieldCode, FieldName, FieldLatitude, FieldLongitude, FieldLevel, FieldEnrollment} {
		assert.True(t, cols.Has(f), f)
	}
	assert.False(t, cols.Has(FieldDistrict))

	rec := []string{"101", "GPS Killi", "30.18", "66.97", "Primary", "120", "Pakka", "31.0"}
	// First matching column wins; later duplicates become extras.
	assert.Equal(t, "30.18", cols.Get(rec, FieldLatitude))
	assert.Equal(t, map[string]string{"Building": "Pakka", "Latitude": "31.0"}, cols.Extras(rec))
	assert.Equal(t, "", cols.Get(rec[:2], FieldLatitude))
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"_xCord":            "xcord",
		" Latitude ":        "latitude",
		"School-Level":      "schoollevel",
		"Functional Status": "functionalstatus",
		"U.C":               "uc",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}

func TestLoad_Entities(t *testing.T) {
	csv := "BemisCode,SchoolName,District,Tehsil,UC,SchoolLevel,Gender,FunctionalStatus,TotalStudentProfileEntered,_xCord,_yCord,Building\n" +
		"101,GPS Killi, quetta ,sariab,Killi Ismail,Primary,boys,Functional,\"1,234\",66.975,30.1798,Pakka\n" +
		",GGMS Pishin,PISHIN,,,middle school,Girls,Non Functional,85.0,67.0,30.58,\n"

	res, err := Load(context.Background(), table(t, csv), Options{Type: model.SchoolTypeGovernment})
	require.NoError(t, err)
	require.Empty(t, res.Rejected)
	require.Len(t, res.Entities, 2)

	first := res.Entities[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "GPS Killi", first.Name)
	assert.Equal(t, model.LevelPrimary, first.Level)
	assert.Equal(t, model.SchoolTypeGovernment, first.Type)
	assert.Equal(t, model.Region{District: "Quetta", Tehsil: "Sariab", UC: "Killi Ismail"}, first.Region)
	assert.Equal(t, geo.MustPoint(30.1798, 66.975), first.Location)
	assert.Equal(t, 1234, first.Attributes.Enrollment)
	assert.Equal(t, "Boys", first.Attributes.Gender)
	assert.True(t, first.Functional())
	assert.Equal(t, map[string]string{"Building": "Pakka"}, first.Attributes.Extra)

	second := res.Entities[1]
	assert.Equal(t, "SYN-3", second.ID)
	assert.Equal(t, model.LevelMiddle, second.Level)
	assert.Equal(t, "Pishin", second.Region.District)
	assert.Equal(t, 85, second.Attributes.Enrollment)
	assert.Equal(t, model.StatusNonFunctional, second.Attributes.Functional)
	assert.Nil(t, second.Attributes.Extra)
}

func TestLoad_RejectsBadRows(t *testing.T) {
	csv := "code,name,level,lat,lng,enrollment\n" +
		"1,ok,Primary,30.1,67.0,10\n" +
		"2,no lat,Primary,,67.0,10\n" +
		"3,zero,Primary,0,67.0,10\n" +
		"4,range,Primary,95,67.0,10\n" +
		"5,text,Primary,abc,67.0,10\n" +
		"6,enroll,Primary,30.2,67.1,many\n" +
		"7,ok too,High,30.3,67.2,\n"

	res, err := Load(context.Background(), table(t, csv), Options{})
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Entities))
	for _, e := range res.Entities {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"1", "7"}, ids)
	require.Len(t, res.Rejected, 5)

	assert.Equal(t, 3, res.Rejected[0].Line)
	assert.Equal(t, FieldLatitude, res.Rejected[0].Field)
	assert.True(t, eris.Is(res.Rejected[0].Err, ErrMissingCoordinate))

	assert.Equal(t, "location", res.Rejected[1].Field)
	assert.True(t, eris.Is(res.Rejected[1].Err, geo.ErrInvalidCoordinate))
	assert.True(t, eris.Is(res.Rejected[2].Err, geo.ErrInvalidCoordinate))

	assert.True(t, eris.Is(res.Rejected[3].Err, ErrInvalidNumber))
	assert.Contains(t, res.Rejected[3].Error(), `line 6: latitude "abc"`)

	assert.Equal(t, FieldEnrollment, res.Rejected[4].Field)
	assert.Zero(t, res.Entities[1].Attributes.Enrollment)
}

func TestLoad_MissingCoordinateColumns(t *testing.T) {
	res, err := Load(context.Background(), table(t, "code,name\n1,a\n2,b\n"), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Entities)
	require.Len(t, res.Rejected, 2)
	for _, r := range res.Rejected {
		assert.True(t, eris.Is(r.Err, ErrMissingCoordinate))
	}
}

func TestLoad_DefaultsWithoutOptionalColumns(t *testing.T) {
	res, err := Load(context.Background(), table(t, "latitude,longitude\n30.1,67.0\n"), Options{})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)

	e := res.Entities[0]
	assert.Equal(t, "SYN-2", e.ID)
	assert.Equal(t, "SYN-2", e.Name)
	assert.Equal(t, model.Level(""), e.Level)
	// Without a status column every school is taken as functional.
	assert.True(t, e.Functional())
}

func TestLoad_FunctionalOnlyAndTypeColumn(t *testing.T) {
	csv := "code,type,functional,lat,lng\n" +
		"1,BEF,Functional,30.1,67.0\n" +
		"2,Govt,Closed,30.2,67.0\n" +
		"3,,,30.3,67.0\n"

	res, err := Load(context.Background(), table(t, csv), Options{FunctionalOnly: true, Type: model.SchoolTypeGovernment})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, model.SchoolTypeBEF, res.Entities[0].Type)
	assert.Equal(t, 2, res.Skipped)
}

func TestLoad_TableReadError(t *testing.T) {
	tbl := table(t, "lat,lng\n30.1,67.0\n\"unterminated\n")
	res, err := Load(context.Background(), tbl, Options{})
	require.Error(t, err)
	assert.Len(t, res.Entities, 1)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schools.csv")
	require.NoError(t, os.WriteFile(path, []byte("BemisCode,_yCord,_xCord,SchoolLevel\n1,30.1,67.0,High\n"), 0o644))

	res, err := LoadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, model.LevelHigh, res.Entities[0].Level)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "x.doc"), Options{})
	assert.True(t, eris.Is(err, fetcher.ErrUnsupportedFormat))
}
