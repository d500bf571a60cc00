package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Region holds the administrative tags of an entity.
type Region struct {
	District string `json:"district,omitempty"`
	Tehsil   string `json:"tehsil,omitempty"`
	UC       string `json:"uc,omitempty"`
}

// NewRegion builds a Region with every tag normalized.
func NewRegion(district, tehsil, uc string) Region {
	return Region{
		District: NormalizeRegion(district),
		Tehsil:   NormalizeRegion(tehsil),
		UC:       NormalizeRegion(uc),
	}
}

// NormalizeRegion trims s, collapses inner whitespace, and title-cases it, so
// "quetta " and "QUETTA" both become "Quetta".
func NormalizeRegion(s string) string {
	s = collapseSpaces(s)
	if s == "" {
		return ""
	}
	// A Caser holds state and must not be shared across goroutines.
	return cases.Title(language.English).String(s)
}

// MatchesDistrict reports whether district is in filter. An empty filter or
// one containing "all" matches everything.
func MatchesDistrict(district string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	d := NormalizeRegion(district)
	for _, f := range filter {
		if strings.EqualFold(strings.TrimSpace(f), "all") || NormalizeRegion(f) == d {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
