package ingest

import "strings"

// Canonical field names produced by the alias table.
const (
	FieldLatitude   = "latitude"
	FieldLongitude  = "longitude"
	FieldCode       = "code"
	FieldName       = "name"
	FieldLevel      = "level"
	FieldType       = "type"
	FieldDistrict   = "district"
	FieldTehsil     = "tehsil"
	FieldUC         = "uc"
	FieldEnrollment = "enrollment"
	FieldFunctional = "functional"
	FieldGender     = "gender"
)

// aliases maps normalized header spellings to canonical fields. Keys are
// lowercased with spaces, underscores, hyphens, and dots removed.
var aliases = map[string]string{
	"latitude": FieldLatitude,
	"lat":      FieldLatitude,
	"ycord":    FieldLatitude,
	"ycoord":   FieldLatitude,
	"y":        FieldLatitude,

	"longitude": FieldLongitude,
	"lng":       FieldLongitude,
	"lon":       FieldLongitude,
	"long":      FieldLongitude,
	"xcord":     FieldLongitude,
	"xcoord":    FieldLongitude,
	"x":         FieldLongitude,

	"code":       FieldCode,
	"bemiscode":  FieldCode,
	"bemis":      FieldCode,
	"schoolcode": FieldCode,
	"emiscode":   FieldCode,
	"id":         FieldCode,

	"name":       FieldName,
	"schoolname": FieldName,
	"school":     FieldName,

	"level":       FieldLevel,
	"schoollevel": FieldLevel,
	"category":    FieldLevel,

	"type":       FieldType,
	"schooltype": FieldType,
	"source":     FieldType,

	"district":     FieldDistrict,
	"region":       FieldDistrict,
	"tehsil":       FieldTehsil,
	"uc":           FieldUC,
	"unioncouncil": FieldUC,

	"enrollment":                 FieldEnrollment,
	"enrolment":                  FieldEnrollment,
	"totalstudentprofileentered": FieldEnrollment,
	"totalschoolprofilestudents": FieldEnrollment,
	"studentenrollment":          FieldEnrollment,
	"totalstudents":              FieldEnrollment,
	"students":                   FieldEnrollment,

	"functional":       FieldFunctional,
	"functionalstatus": FieldFunctional,
	"status":           FieldFunctional,

	"gender": FieldGender,
}

// normalizeHeader folds a column name into alias-table form.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
}

// Columns is a header resolved against the alias table.
type Columns struct {
	index  map[string]int
	extras []extraColumn
}

type extraColumn struct {
	name string
	idx  int
}

// ResolveHeader maps each header cell to a canonical field. The first column
// claiming a field wins; unmapped and duplicate columns are kept as extras
// under their original name.
func ResolveHeader(header []string) Columns {
	c := Columns{index: make(map[string]int, len(header))}
	for i, col := range header {
		name := strings.TrimSpace(col)
		if name == "" {
			continue
		}
		field, ok := aliases[normalizeHeader(name)]
		if ok {
			if _, taken := c.index[field]; !taken {
				c.index[field] = i
				continue
			}
		}
		c.extras = append(c.extras, extraColumn{name: name, idx: i})
	}
	return c
}

// Has reports whether the header supplies field.
func (c Columns) Has(field string) bool {
	_, ok := c.index[field]
	return ok
}

// Get returns the value of field in record, or "" when absent.
func (c Columns) Get(record []string, field string) string {
	idx, ok := c.index[field]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Extras returns the non-empty unmapped values of record keyed by header.
func (c Columns) Extras(record []string) map[string]string {
	var out map[string]string
	for _, e := range c.extras {
		if e.idx >= len(record) || record[e.idx] == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(c.extras))
		}
		out[e.name] = record[e.idx]
	}
	return out
}
