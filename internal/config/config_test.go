package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MOSQ_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("MOSQ_CACHE_DIR", filepath.Join(dir, "cache"))
	for _, key := range []string{"LOG_LEVEL", "MOSQ_FUSION_WIDTH", "MOSQ_SIMPLEX_SIZE", "MOSQ_PORT", "DEV_MODE", "MOSQ_RUN_RETENTION_DAYS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.CacheDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.FusionWidth)
	assert.Equal(t, 0.5, cfg.SimplexSize)
	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 30, cfg.RunRetentionDays)
	assert.Equal(t, filepath.Join(dir, "data", "runs.db"), cfg.RunsDBPath())
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MOSQ_DATA_DIR", dir)
	t.Setenv("MOSQ_CACHE_DIR", dir)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MOSQ_FUSION_WIDTH", "3")
	t.Setenv("MOSQ_SIMPLEX_SIZE", "0.25")
	t.Setenv("MOSQ_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("MOSQ_RUN_RETENTION_DAYS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.FusionWidth)
	assert.Equal(t, 0.25, cfg.SimplexSize)
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Zero(t, cfg.RunRetentionDays)
}

func TestLoad_InvalidFusionWidth(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MOSQ_DATA_DIR", dir)
	t.Setenv("MOSQ_FUSION_WIDTH", "6")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := Config{FusionWidth: 2, SimplexSize: 1, Port: 80}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero width", Config{FusionWidth: 0, SimplexSize: 1, Port: 80}},
		{"negative simplex", Config{FusionWidth: 2, SimplexSize: -1, Port: 80}},
		{"port", Config{FusionWidth: 2, SimplexSize: 1, Port: 70000}},
		{"retention", Config{FusionWidth: 2, SimplexSize: 1, Port: 80, RunRetentionDays: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}
}
