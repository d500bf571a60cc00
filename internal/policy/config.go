// Package policy classifies candidate schools and sites against an indexed
// reference set. Every policy is a pure function of the candidate, the index,
// and a Config.
package policy

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schoolsite/internal/model"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = eris.New("policy: invalid config")

// Config holds the thresholds shared by the policies. Build it with
// DefaultConfig and override fields; zero values fall back to the defaults.
type Config struct {
	// SearchRadiusKM bounds neighbour, progression, and upgrade lookups.
	SearchRadiusKM float64 `json:"search_radius_km" yaml:"search_radius_km"`
	// MinDistanceKM is the minimum same-level spacing per level.
	MinDistanceKM map[model.Level]float64 `json:"min_distance_km" yaml:"min_distance_km"`
	// DefaultMinDistanceKM applies to levels missing from MinDistanceKM.
	DefaultMinDistanceKM float64 `json:"default_min_distance_km" yaml:"default_min_distance_km"`
	// Hierarchy is the progression order, lowest level first.
	Hierarchy []model.Level `json:"hierarchy" yaml:"hierarchy"`
	TopK      int           `json:"top_k" yaml:"top_k"`
	// Districts restricts reference neighbours; empty or "all" keeps every district.
	Districts []string `json:"districts,omitempty" yaml:"districts"`

	HighDensityEnrollment int           `json:"high_density_enrollment" yaml:"high_density_enrollment"`
	DensityEnrollment     int           `json:"density_enrollment" yaml:"density_enrollment"`
	HighDensityLevels     []model.Level `json:"high_density_levels" yaml:"high_density_levels"`

	UpgradeQuantile  float64 `json:"upgrade_quantile" yaml:"upgrade_quantile"`
	SameDistrictOnly bool    `json:"same_district_only" yaml:"same_district_only"`
	FunctionalOnly   bool    `json:"functional_only" yaml:"functional_only"`
	MinEnrollment    int     `json:"min_enrollment" yaml:"min_enrollment"`

	SiteRadiusKM      float64                 `json:"site_radius_km" yaml:"site_radius_km"`
	SiteMinDistanceKM map[model.Level]float64 `json:"site_min_distance_km" yaml:"site_min_distance_km"`
}

// DefaultConfig returns the thresholds used by the school planning tools.
func DefaultConfig() Config {
	return Config{
		SearchRadiusKM: 20,
		MinDistanceKM: map[model.Level]float64{
			model.LevelPrimary:         2,
			model.LevelMiddle:          5,
			model.LevelHigh:            10,
			model.LevelHigherSecondary: 15,
		},
		DefaultMinDistanceKM:  5,
		Hierarchy:             append([]model.Level(nil), model.DefaultHierarchy...),
		TopK:                  5,
		HighDensityEnrollment: 1000,
		DensityEnrollment:     500,
		HighDensityLevels:     []model.Level{model.LevelPrimary, model.LevelMiddle},
		UpgradeQuantile:       0.8,
		SameDistrictOnly:      true,
		SiteRadiusKM:          10,
		SiteMinDistanceKM: map[model.Level]float64{
			model.LevelPrimary:         1,
			model.LevelMiddle:          2,
			model.LevelHigh:            3,
			model.LevelHigherSecondary: 5,
		},
	}
}

// Validate rejects thresholds no policy can work with. Zero means "use the
// default"; negative or non-finite values are errors.
func (c Config) Validate() error {
	var errs []string
	distance := func(name string, v float64) {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("%s must be a positive distance, got %v", name, v))
		}
	}
	distance("search_radius_km", c.SearchRadiusKM)
	distance("default_min_distance_km", c.DefaultMinDistanceKM)
	distance("site_radius_km", c.SiteRadiusKM)
	for lvl, d := range c.MinDistanceKM {
		distance("min_distance_km["+string(lvl)+"]", d)
	}
	for lvl, d := range c.SiteMinDistanceKM {
		distance("site_min_distance_km["+string(lvl)+"]", d)
	}

	seen := make(map[model.Level]bool, len(c.Hierarchy))
	for _, l := range c.Hierarchy {
		if seen[l] {
			errs = append(errs, fmt.Sprintf("hierarchy lists %q twice", l))
		}
		seen[l] = true
	}
	if c.TopK < 0 {
		errs = append(errs, fmt.Sprintf("top_k must be positive, got %d", c.TopK))
	}
	if c.UpgradeQuantile < 0 || c.UpgradeQuantile > 1 || math.IsNaN(c.UpgradeQuantile) {
		errs = append(errs, fmt.Sprintf("upgrade_quantile must be within [0, 1], got %v", c.UpgradeQuantile))
	}
	if c.HighDensityEnrollment < 0 || c.DensityEnrollment < 0 || c.MinEnrollment < 0 {
		errs = append(errs, "enrollment thresholds must not be negative")
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SearchRadiusKM <= 0 {
		c.SearchRadiusKM = d.SearchRadiusKM
	}
	if len(c.MinDistanceKM) == 0 {
		c.MinDistanceKM = d.MinDistanceKM
	}
	if c.DefaultMinDistanceKM <= 0 {
		c.DefaultMinDistanceKM = d.DefaultMinDistanceKM
	}
	if len(c.Hierarchy) == 0 {
		c.Hierarchy = d.Hierarchy
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.HighDensityEnrollment <= 0 {
		c.HighDensityEnrollment = d.HighDensityEnrollment
	}
	if c.DensityEnrollment <= 0 {
		c.DensityEnrollment = d.DensityEnrollment
	}
	if c.HighDensityLevels == nil {
		c.HighDensityLevels = d.HighDensityLevels
	}
	if c.UpgradeQuantile <= 0 {
		c.UpgradeQuantile = d.UpgradeQuantile
	}
	if c.SiteRadiusKM <= 0 {
		c.SiteRadiusKM = d.SiteRadiusKM
	}
	if len(c.SiteMinDistanceKM) == 0 {
		c.SiteMinDistanceKM = d.SiteMinDistanceKM
	}
	return c
}

// MinDistance returns the minimum same-level spacing for level.
func (c Config) MinDistance(level model.Level) float64 {
	c = c.withDefaults()
	if d, ok := c.MinDistanceKM[level]; ok {
		return d
	}
	return c.DefaultMinDistanceKM
}

// Next returns the level after level in the hierarchy. ok is false for the
// top level and for levels outside the hierarchy.
func (c Config) Next(level model.Level) (next model.Level, ok bool) {
	h := c.withDefaults().Hierarchy
	for i, l := range h {
		if l == level && i+1 < len(h) {
			return h[i+1], true
		}
	}
	return "", false
}

func (c Config) highDensityLevel(level model.Level) bool {
	for _, l := range c.HighDensityLevels {
		if l == level {
			return true
		}
	}
	return false
}
