package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "batch", cfg.Geocode.Strategy)
	assert.Equal(t, 100, cfg.Geocode.CheckpointEvery)
	assert.Equal(t, 0, cfg.Geocode.RetryFailedAfterDays)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, "facility_geocoded_cache.json", cfg.Cache.FacilityPath)
	assert.Equal(t, "resort_geocoded_cache.json", cfg.Cache.ResortPath)
	assert.InDelta(t, 200.0, cfg.Join.ThresholdMiles, 0.001)
	assert.Equal(t, "public", cfg.Output.Dir)
	assert.Equal(t, "clinics.json", cfg.Output.ClinicsFile)
	assert.False(t, cfg.Output.GeoJSON)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Nominatim.BaseURL)
	assert.InDelta(t, 1.1, cfg.Nominatim.MinIntervalSecs, 0.001)
	assert.Equal(t, "Public_AR_Current", cfg.Census.Benchmark)
	assert.Equal(t, "Current_Current", cfg.Census.Vintage)
	assert.Equal(t, 5000, cfg.Census.ChunkSize)
	assert.Equal(t, 300, cfg.Census.TimeoutSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	yaml := `
geocode:
  strategy: interactive
  retry_failed_after_days: 30
cache:
  backend: sqlite
  facility_path: /tmp/cache.db
join:
  threshold_miles: 150
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "interactive", cfg.Geocode.Strategy)
	assert.Equal(t, 30, cfg.Geocode.RetryFailedAfterDays)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, "/tmp/cache.db", cfg.Cache.FacilityPath)
	assert.InDelta(t, 150.0, cfg.Join.ThresholdMiles, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// Defaults still apply for untouched sections.
	assert.Equal(t, 5000, cfg.Census.ChunkSize)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
