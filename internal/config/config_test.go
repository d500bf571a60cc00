package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/schoolsite/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "schoolsite.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 20.0, cfg.Analysis.SearchRadiusKM, 0.001)
	assert.InDelta(t, 15.0, cfg.Analysis.MinDistanceKM["higher secondary"], 0.001)
	assert.Equal(t, []string{"Primary", "Middle", "High", "Higher Secondary"}, cfg.Analysis.Hierarchy)
	assert.Equal(t, 5, cfg.Analysis.TopK)
	assert.Equal(t, []string{"all"}, cfg.Analysis.Districts)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, 1000, cfg.Analysis.HighDensityEnrollment)
	assert.Equal(t, 500, cfg.Analysis.DensityEnrollment)
	assert.InDelta(t, 0.8, cfg.Analysis.UpgradePercentile, 0.001)
	assert.True(t, cfg.Analysis.SameDistrictOnly)
	assert.Equal(t, 7, cfg.Analysis.HotspotResolution)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/schools
log:
  level: debug
  format: console
analysis:
  search_radius_km: 25
  top_k: 3
  districts: [Quetta, Pishin]
  min_distance_km:
    Primary: 1.5
    Higher Secondary: 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 25.0, cfg.Analysis.SearchRadiusKM, 0.001)
	assert.Equal(t, 3, cfg.Analysis.TopK)
	assert.Equal(t, []string{"Quetta", "Pishin"}, cfg.Analysis.Districts)

	pc, err := cfg.PolicyConfig()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, pc.MinDistance(model.LevelPrimary), 0.001)
	assert.InDelta(t, 12.0, pc.MinDistance(model.LevelHigherSecondary), 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
analysis:
  top_k: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("SCHOOLSITE_LOG_LEVEL", "warn")
	t.Setenv("SCHOOLSITE_ANALYSIS_TOP_K", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Analysis.TopK)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SCHOOLSITE_STORE_DRIVER", "postgres")
	t.Setenv("SCHOOLSITE_ANALYSIS_SEARCH_RADIUS_KM", "12.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 12.5, cfg.Analysis.SearchRadiusKM, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadWithPolicyFile(t *testing.T) {
	dir := chdirTemp(t)

	policyYAML := `
search_radius_km: 30
min_distance_km:
  middle: 4
hierarchy: [Primary, Middle, Secondary, Higher Secondary]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yaml"), []byte(policyYAML), 0644))
	t.Setenv("SCHOOLSITE_ANALYSIS_POLICY_FILE", filepath.Join(dir, "policy.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 30.0, cfg.Analysis.SearchRadiusKM, 0.001)
	assert.InDelta(t, 4.0, cfg.Analysis.MinDistanceKM["middle"], 0.001)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 2.0, cfg.Analysis.MinDistanceKM["primary"], 0.001)
	assert.Equal(t, 5, cfg.Analysis.TopK)

	pc, err := cfg.PolicyConfig()
	require.NoError(t, err)
	next, ok := pc.Next(model.LevelMiddle)
	assert.True(t, ok)
	assert.Equal(t, model.LevelSecondary, next)
}

func TestLoadPolicyFile_DoesNotMutateBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_distance_km:\n  primary: 9\n"), 0644))

	base := AnalysisConfig{MinDistanceKM: map[string]float64{"primary": 2}}
	out, err := LoadPolicyFile(path, base)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, out.MinDistanceKM["primary"], 0.001)
	assert.InDelta(t, 2.0, base.MinDistanceKM["primary"], 0.001)
}

func TestLoadPolicyFile_Errors(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"), AnalysisConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read policy file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: [1, 2"), 0644))
	_, err = LoadPolicyFile(path, AnalysisConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse policy file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "schoolsite.db"
	cfg.Analysis = AnalysisConfig{
		SearchRadiusKM:       20,
		MinDistanceKM:        map[string]float64{"primary": 2, "middle": 5},
		DefaultMinDistanceKM: 5,
		Hierarchy:            []string{"Primary", "Middle", "High"},
		TopK:                 5,
		Concurrency:          4,
		UpgradePercentile:    0.8,
		HotspotResolution:    7,
	}
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains string
	}{
		{"zero radius", func(c *Config) { c.Analysis.SearchRadiusKM = 0 }, "search_radius_km must be > 0"},
		{"negative radius", func(c *Config) { c.Analysis.SearchRadiusKM = -1 }, "search_radius_km must be > 0"},
		{"unknown level in table", func(c *Config) { c.Analysis.MinDistanceKM["college"] = 3 }, "unknown level college"},
		{"negative min distance", func(c *Config) { c.Analysis.MinDistanceKM["primary"] = -2 }, "negative distance"},
		{"unknown hierarchy level", func(c *Config) { c.Analysis.Hierarchy = []string{"Primary", "Nursery"} }, "unknown level Nursery"},
		{"duplicate hierarchy level", func(c *Config) { c.Analysis.Hierarchy = []string{"Primary", "prim"} }, "duplicate level Primary"},
		{"top_k zero", func(c *Config) { c.Analysis.TopK = 0 }, "top_k must be >= 1"},
		{"concurrency zero", func(c *Config) { c.Analysis.Concurrency = 0 }, "concurrency must be between 1 and 64"},
		{"concurrency too high", func(c *Config) { c.Analysis.Concurrency = 65 }, "concurrency must be between 1 and 64"},
		{"percentile zero", func(c *Config) { c.Analysis.UpgradePercentile = 0 }, "upgrade_percentile"},
		{"percentile above one", func(c *Config) { c.Analysis.UpgradePercentile = 1.2 }, "upgrade_percentile"},
		{"hotspot resolution", func(c *Config) { c.Analysis.HotspotResolution = 16 }, "hotspot_resolution"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"missing url", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Analysis.SearchRadiusKM = 0
	cfg.Analysis.TopK = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_radius_km")
	assert.Contains(t, err.Error(), "top_k")
}

func TestValidate_NoStoreSkipsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "none"
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate())
}

func TestPolicyConfig(t *testing.T) {
	cfg := validDefaults()
	cfg.Analysis.HighDensityLevels = []string{"primary"}
	cfg.Analysis.Districts = []string{"Quetta"}

	pc, err := cfg.PolicyConfig()
	require.NoError(t, err)
	assert.Equal(t, []model.Level{model.LevelPrimary, model.LevelMiddle, model.LevelHigh}, pc.Hierarchy)
	assert.Equal(t, []model.Level{model.LevelPrimary}, pc.HighDensityLevels)
	assert.InDelta(t, 5.0, pc.MinDistance(model.LevelMiddle), 0.001)
	assert.InDelta(t, 5.0, pc.MinDistance(model.LevelHigh), 0.001)
	assert.Equal(t, []string{"Quetta"}, pc.Districts)

	_, ok := pc.Next(model.LevelHigh)
	assert.False(t, ok)
}

func TestPolicyConfig_Invalid(t *testing.T) {
	cfg := validDefaults()
	cfg.Analysis.TopK = 0
	_, err := cfg.PolicyConfig()
	assert.True(t, eris.Is(err, ErrConfiguration))
}
