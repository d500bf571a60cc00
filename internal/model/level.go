package model

import (
	"strings"
)

// Level is a school level. The known levels form the default progression
// hierarchy; other values pass through ingestion title-cased.
type Level string

const (
	LevelPrimary         Level = "Primary"
	LevelMiddle          Level = "Middle"
	LevelSecondary       Level = "Secondary"
	LevelHigh            Level = "High"
	LevelHigherSecondary Level = "Higher Secondary"
)

// DefaultHierarchy is the canonical progression order, lowest first.
var DefaultHierarchy = []Level{LevelPrimary, LevelMiddle, LevelHigh, LevelHigherSecondary}

var levelAliases = map[string]Level{
	"primary":          LevelPrimary,
	"prim":             LevelPrimary,
	"p":                LevelPrimary,
	"middle":           LevelMiddle,
	"mid":              LevelMiddle,
	"m":                LevelMiddle,
	"secondary":        LevelSecondary,
	"sec":              LevelSecondary,
	"high":             LevelHigh,
	"h":                LevelHigh,
	"higher secondary": LevelHigherSecondary,
	"higher sec":       LevelHigherSecondary,
	"hsec":             LevelHigherSecondary,
	"h.sec":            LevelHigherSecondary,
	"h sec":            LevelHigherSecondary,
	"hss":              LevelHigherSecondary,
	"higher":           LevelHigherSecondary,
}

// ParseLevel maps a raw level label to a Level. ok is false when the label is
// not a known level; the returned Level is then the title-cased label, or
// empty for a blank label.
func ParseLevel(raw string) (lvl Level, ok bool) {
	key := strings.ToLower(collapseSpaces(raw))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.TrimSuffix(key, " school")
	if l, found := levelAliases[key]; found {
		return l, true
	}
	return Level(NormalizeRegion(raw)), false
}

// Known reports whether l is one of the defined levels.
func (l Level) Known() bool {
	switch l {
	case LevelPrimary, LevelMiddle, LevelSecondary, LevelHigh, LevelHigherSecondary:
		return true
	}
	return false
}

// SchoolType separates government schools from BEF (foundation) schools.
type SchoolType string

const (
	SchoolTypeGovernment SchoolType = "Government"
	SchoolTypeBEF        SchoolType = "BEF"
)

// ParseSchoolType maps labels like "govt", "Government", "bef" to a
// SchoolType. Unknown labels return "".
func ParseSchoolType(raw string) SchoolType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "government", "govt", "govt.", "gov", "public":
		return SchoolTypeGovernment
	case "bef", "foundation", "balochistan education foundation":
		return SchoolTypeBEF
	}
	return ""
}
