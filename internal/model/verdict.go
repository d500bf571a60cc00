package model

import "github.com/sells-group/schoolsite/internal/geo"

// Policy names the rule that produced a verdict.
type Policy string

const (
	PolicyFeasibility Policy = "feasibility"
	PolicyProgression Policy = "progression"
	PolicyUpgrade     Policy = "upgrade"
	PolicyRegion      Policy = "region"
	PolicySite        Policy = "site"
	PolicyCompare     Policy = "compare"
)

// Tag is the classification outcome of a verdict.
type Tag string

const (
	TagFeasible              Tag = "FEASIBLE"
	TagNotFeasible           Tag = "NOT_FEASIBLE"
	TagRecommended           Tag = "RECOMMENDED"
	TagHighlyRecommended     Tag = "HIGHLY_RECOMMENDED"
	TagProgressionFound      Tag = "PROGRESSION_FOUND"
	TagNoProgressionInRadius Tag = "NO_PROGRESSION_IN_RADIUS"
	TagNoProgressionDataset  Tag = "NO_PROGRESSION_IN_DATASET"
	TagTerminalLevel         Tag = "TERMINAL_LEVEL"
	TagUpgradeRecommended    Tag = "UPGRADE_RECOMMENDED"
	TagUpgradeNotNeeded      Tag = "UPGRADE_NOT_NEEDED"
	TagInRegion              Tag = "IN_REGION"
	TagOutOfRegion           Tag = "OUT_OF_REGION"
	TagGovtNearby            Tag = "GOVT_NEARBY"
	TagNoGovtNearby          Tag = "NO_GOVT_NEARBY"
)

// Tags lists every tag in display order.
var Tags = []Tag{
	TagHighlyRecommended, TagRecommended, TagFeasible, TagNotFeasible,
	TagProgressionFound, TagNoProgressionInRadius, TagNoProgressionDataset, TagTerminalLevel,
	TagUpgradeRecommended, TagUpgradeNotNeeded,
	TagInRegion, TagOutOfRegion,
	TagGovtNearby, TagNoGovtNearby,
}

// Feasible reports whether t is one of the feasible grades.
func (t Tag) Feasible() bool {
	return t == TagFeasible || t == TagRecommended || t == TagHighlyRecommended
}

// Recommended reports whether t carries a recommendation.
func (t Tag) Recommended() bool {
	return t == TagRecommended || t == TagHighlyRecommended || t == TagUpgradeRecommended
}

// Risk is the risk tier attached to feasibility verdicts.
type Risk string

const (
	RiskVeryLow  Risk = "Very Low"
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskVeryHigh Risk = "Very High"
)

// Neighbor is a reference entity seen from a candidate.
type Neighbor struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Level      Level   `json:"level"`
	District   string  `json:"district,omitempty"`
	Enrollment int     `json:"enrollment,omitempty"`
	DistanceKM float64 `json:"distance_km"`
}

// Details carries the secondary figures reported alongside a verdict.
type Details struct {
	SearchRadiusKM     float64        `json:"search_radius_km,omitempty"`
	MinDistanceKM      float64        `json:"min_distance_km,omitempty"`
	NearbyCount        int            `json:"nearby_count"`
	SameLevelConflicts int            `json:"same_level_conflicts"`
	LevelCounts        map[Level]int  `json:"level_counts,omitempty"`
	TotalEnrollment    int            `json:"total_enrollment"`
	AvgEnrollment      float64        `json:"avg_enrollment"`
	FunctionalPct      float64        `json:"functional_pct"`
	Genders            map[string]int `json:"genders,omitempty"`
	NearestKM          float64        `json:"nearest_km,omitempty"`
	AvgDistanceKM      float64        `json:"avg_distance_km,omitempty"`
	EnrollmentCutoff   float64        `json:"enrollment_cutoff,omitempty"`
	Districts          []string       `json:"districts,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// Verdict is the classification outcome for one candidate.
type Verdict struct {
	CandidateID    string             `json:"candidate_id"`
	CandidateName  string             `json:"candidate_name"`
	Level          Level              `json:"level,omitempty"`
	Region         Region             `json:"region"`
	Location       geo.Point          `json:"location"`
	Policy         Policy             `json:"policy"`
	Tag            Tag                `json:"tag"`
	Reason         string             `json:"reason"`
	Risk           Risk               `json:"risk,omitempty"`
	Score          int                `json:"score,omitempty"`
	TotalFound     int                `json:"total_found"`
	Matches        []Neighbor         `json:"matches,omitempty"`
	NearestByLevel map[Level]Neighbor `json:"nearest_by_level,omitempty"`
	Details        *Details           `json:"details,omitempty"`
}

// NewVerdict starts a verdict for candidate under policy.
func NewVerdict(candidate Entity, policy Policy) Verdict {
	return Verdict{
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
		Level:         candidate.Level,
		Region:        candidate.Region,
		Location:      candidate.Location,
		Policy:        policy,
	}
}
