package config

import (
	"maps"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/schoolsite/internal/model"
	"github.com/sells-group/schoolsite/internal/policy"
)

// ErrConfiguration marks an invalid configuration. Validate wraps it with
// every problem found.
var ErrConfiguration = eris.New("invalid configuration")

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
}

// StoreConfig configures the run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnalysisConfig holds policy thresholds as they appear in config.yaml.
// Level names are free text and resolved through model.ParseLevel.
type AnalysisConfig struct {
	SearchRadiusKM        float64            `yaml:"search_radius_km" mapstructure:"search_radius_km"`
	MinDistanceKM         map[string]float64 `yaml:"min_distance_km" mapstructure:"min_distance_km"`
	DefaultMinDistanceKM  float64            `yaml:"default_min_distance_km" mapstructure:"default_min_distance_km"`
	Hierarchy             []string           `yaml:"hierarchy" mapstructure:"hierarchy"`
	TopK                  int                `yaml:"top_k" mapstructure:"top_k"`
	Districts             []string           `yaml:"districts" mapstructure:"districts"`
	Concurrency           int                `yaml:"concurrency" mapstructure:"concurrency"`
	HighDensityEnrollment int                `yaml:"high_density_enrollment" mapstructure:"high_density_enrollment"`
	DensityEnrollment     int                `yaml:"density_enrollment" mapstructure:"density_enrollment"`
	HighDensityLevels     []string           `yaml:"high_density_levels" mapstructure:"high_density_levels"`
	UpgradePercentile     float64            `yaml:"upgrade_percentile" mapstructure:"upgrade_percentile"`
	SameDistrictOnly      bool               `yaml:"same_district_only" mapstructure:"same_district_only"`
	FunctionalOnly        bool               `yaml:"functional_only" mapstructure:"functional_only"`
	MinEnrollment         int                `yaml:"min_enrollment" mapstructure:"min_enrollment"`
	SiteRadiusKM          float64            `yaml:"site_radius_km" mapstructure:"site_radius_km"`
	SiteMinDistanceKM     map[string]float64 `yaml:"site_min_distance_km" mapstructure:"site_min_distance_km"`
	HotspotResolution     int                `yaml:"hotspot_resolution" mapstructure:"hotspot_resolution"`
	// PolicyFile, when set, replaces the thresholds above with a standalone YAML file.
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`
}

// IngestConfig configures dataset loading.
type IngestConfig struct {
	Sheet          string `yaml:"sheet" mapstructure:"sheet"`
	FunctionalOnly bool   `yaml:"functional_only" mapstructure:"functional_only"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCHOOLSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "schoolsite.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("analysis.search_radius_km", 20.0)
	v.SetDefault("analysis.min_distance_km", map[string]float64{
		"primary":          2,
		"middle":           5,
		"high":             10,
		"higher secondary": 15,
	})
	v.SetDefault("analysis.default_min_distance_km", 5.0)
	v.SetDefault("analysis.hierarchy", []string{"Primary", "Middle", "High", "Higher Secondary"})
	v.SetDefault("analysis.top_k", 5)
	v.SetDefault("analysis.districts", []string{"all"})
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.high_density_enrollment", 1000)
	v.SetDefault("analysis.density_enrollment", 500)
	v.SetDefault("analysis.high_density_levels", []string{"Primary", "Middle"})
	v.SetDefault("analysis.upgrade_percentile", 0.8)
	v.SetDefault("analysis.same_district_only", true)
	v.SetDefault("analysis.functional_only", false)
	v.SetDefault("analysis.min_enrollment", 0)
	v.SetDefault("analysis.site_radius_km", 10.0)
	v.SetDefault("analysis.site_min_distance_km", map[string]float64{
		"primary":          1,
		"middle":           2,
		"high":             3,
		"higher secondary": 5,
	})
	v.SetDefault("analysis.hotspot_resolution", 7)
	v.SetDefault("analysis.policy_file", "")
	v.SetDefault("ingest.sheet", "")
	v.SetDefault("ingest.functional_only", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Analysis.PolicyFile != "" {
		a, err := LoadPolicyFile(cfg.Analysis.PolicyFile, cfg.Analysis)
		if err != nil {
			return nil, err
		}
		cfg.Analysis = a
	}

	return &cfg, nil
}

// LoadPolicyFile overlays the thresholds in a standalone YAML file on base.
// Keys absent from the file keep their base values.
func LoadPolicyFile(path string, base AnalysisConfig) (AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "config: read policy file %s", path)
	}
	out := base
	out.MinDistanceKM = maps.Clone(base.MinDistanceKM)
	out.SiteMinDistanceKM = maps.Clone(base.SiteMinDistanceKM)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, eris.Wrapf(err, "config: parse policy file %s", path)
	}
	return out, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres, or none")
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	a := c.Analysis
	if a.SearchRadiusKM <= 0 {
		errs = append(errs, "analysis.search_radius_km must be > 0")
	}
	if a.DefaultMinDistanceKM < 0 {
		errs = append(errs, "analysis.default_min_distance_km must be >= 0")
	}
	errs = append(errs, checkDistances("analysis.min_distance_km", a.MinDistanceKM)...)
	errs = append(errs, checkDistances("analysis.site_min_distance_km", a.SiteMinDistanceKM)...)

	seen := make(map[model.Level]bool, len(a.Hierarchy))
	for _, raw := range a.Hierarchy {
		lvl, ok := model.ParseLevel(raw)
		if !ok {
			errs = append(errs, "analysis.hierarchy: unknown level "+raw)
			continue
		}
		if seen[lvl] {
			errs = append(errs, "analysis.hierarchy: duplicate level "+string(lvl))
		}
		seen[lvl] = true
	}
	for _, raw := range a.HighDensityLevels {
		if _, ok := model.ParseLevel(raw); !ok {
			errs = append(errs, "analysis.high_density_levels: unknown level "+raw)
		}
	}

	if a.TopK < 1 {
		errs = append(errs, "analysis.top_k must be >= 1")
	}
	if a.Concurrency < 1 || a.Concurrency > 64 {
		errs = append(errs, "analysis.concurrency must be between 1 and 64")
	}
	if a.UpgradePercentile <= 0 || a.UpgradePercentile > 1 {
		errs = append(errs, "analysis.upgrade_percentile must be in (0, 1]")
	}
	if a.SiteRadiusKM < 0 {
		errs = append(errs, "analysis.site_radius_km must be >= 0")
	}
	if a.HotspotResolution < 0 || a.HotspotResolution > 15 {
		errs = append(errs, "analysis.hotspot_resolution must be between 0 and 15")
	}
	if a.MinEnrollment < 0 {
		errs = append(errs, "analysis.min_enrollment must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrConfiguration, strings.Join(errs, "; "))
	}
	return nil
}

func checkDistances(key string, table map[string]float64) []string {
	var errs []string
	for raw, km := range table {
		if _, ok := model.ParseLevel(raw); !ok {
			errs = append(errs, key+": unknown level "+raw)
		}
		if km < 0 {
			errs = append(errs, key+": negative distance for "+raw)
		}
	}
	return errs
}

// PolicyConfig validates the configuration and converts the analysis section
// into policy thresholds.
func (c *Config) PolicyConfig() (policy.Config, error) {
	if err := c.Validate(); err != nil {
		return policy.Config{}, err
	}
	a := c.Analysis
	return policy.Config{
		SearchRadiusKM:        a.SearchRadiusKM,
		MinDistanceKM:         levelTable(a.MinDistanceKM),
		DefaultMinDistanceKM:  a.DefaultMinDistanceKM,
		Hierarchy:             levels(a.Hierarchy),
		TopK:                  a.TopK,
		Districts:             a.Districts,
		HighDensityEnrollment: a.HighDensityEnrollment,
		DensityEnrollment:     a.DensityEnrollment,
		HighDensityLevels:     levels(a.HighDensityLevels),
		UpgradeQuantile:       a.UpgradePercentile,
		SameDistrictOnly:      a.SameDistrictOnly,
		FunctionalOnly:        a.FunctionalOnly,
		MinEnrollment:         a.MinEnrollment,
		SiteRadiusKM:          a.SiteRadiusKM,
		SiteMinDistanceKM:     levelTable(a.SiteMinDistanceKM),
	}, nil
}

func levelTable(in map[string]float64) map[model.Level]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[model.Level]float64, len(in))
	for raw, km := range in {
		lvl, _ := model.ParseLevel(raw)
		out[lvl] = km
	}
	return out
}

func levels(in []string) []model.Level {
	if in == nil {
		return nil
	}
	out := make([]model.Level, 0, len(in))
	for _, raw := range in {
		lvl, _ := model.ParseLevel(raw)
		out = append(out, lvl)
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
