package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/ors", cfg.ORS.BaseURL)
	assert.Equal(t, "driving-car", cfg.ORS.Profile)
	assert.Equal(t, 3, cfg.ORS.RetryAttempts)
	assert.Equal(t, 1000, cfg.ORS.RetryDelayMs)
	assert.Equal(t, 30, cfg.ORS.TimeoutSecs)

	assert.Equal(t, "WorldPop/GP/100m/pop", cfg.Raster.Dataset)
	assert.Equal(t, "population", cfg.Raster.Band)
	assert.Equal(t, 2020, cfg.Raster.ReferenceYear)
	assert.Equal(t, 100, cfg.Raster.ScaleMeters)
	assert.Equal(t, int64(1_000_000_000), cfg.Raster.MaxPixels)

	assert.Equal(t, []int{900, 1800, 2700}, cfg.Analysis.RangeSeconds)
	assert.Equal(t, []string{"4", "5", "6"}, cfg.Analysis.TargetLevels)
	assert.True(t, cfg.Analysis.SwapEnabled)
	assert.InDelta(t, 10.0, cfg.Analysis.SwapMaxLat, 0.001)
	assert.InDelta(t, -5.0, cfg.Analysis.SwapMinLon, 0.001)

	assert.Equal(t, "population_analysis_results.csv", cfg.Files.OutputCSV)
	assert.Equal(t, "isochrone_map.html", cfg.Files.OutputMap)

	assert.InDelta(t, 0.0236, cfg.Map.CenterLat, 0.0001)
	assert.InDelta(t, 37.9062, cfg.Map.CenterLon, 0.0001)
	assert.Equal(t, 6, cfg.Map.ZoomStart)
	assert.Equal(t, "#ff0000", cfg.Map.ColorFor(15))
	assert.Equal(t, "#ffaa00", cfg.Map.ColorFor(45))
	assert.Equal(t, "#3388ff", cfg.Map.ColorFor(99))

	assert.Equal(t, "catchment.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
ors:
  base_url: http://10.0.0.5:8080/ors
  retry_attempts: 5
analysis:
  range_seconds: [600, 1200]
  target_levels: ["5", "6"]
  swap_enabled: false
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8080/ors", cfg.ORS.BaseURL)
	assert.Equal(t, 5, cfg.ORS.RetryAttempts)
	assert.Equal(t, []int{600, 1200}, cfg.Analysis.RangeSeconds)
	assert.Equal(t, []string{"5", "6"}, cfg.Analysis.TargetLevels)
	assert.False(t, cfg.Analysis.SwapEnabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Defaults still apply to untouched sections.
	assert.Equal(t, "WorldPop/GP/100m/pop", cfg.Raster.Dataset)
}

func TestLoadEnvOverride(t *testing.T) {
	chTempDir(t)

	t.Setenv("CATCHMENT_ORS_BASE_URL", "http://34.42.1.9:8080/ors")
	t.Setenv("CATCHMENT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://34.42.1.9:8080/ors", cfg.ORS.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "console"})
	require.Error(t, err)
}
