// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/fusion"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	DataDir     string // run history database lives here, always absolute
	CacheDir    string // problem files and hamiltonian caches, always absolute
	LogLevel    string
	FusionWidth int
	SimplexSize float64
	Port        int
	DevMode     bool
	// RunRetentionDays bounds how long finished runs are kept by the
	// serve-mode pruning job. Zero keeps runs forever.
	RunRetentionDays int
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("MOSQ_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cacheDir, err := filepath.Abs(getEnv("MOSQ_CACHE_DIR", "./cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	cfg := &Config{
		DataDir:     dataDir,
		CacheDir:    cacheDir,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FusionWidth: getEnvAsInt("MOSQ_FUSION_WIDTH", fusion.DefaultWidth),
		SimplexSize: getEnvAsFloat("MOSQ_SIMPLEX_SIZE", 0.5),
		Port:        getEnvAsInt("MOSQ_PORT", 8001),
		DevMode:     getEnvAsBool("DEV_MODE", false),

		RunRetentionDays: getEnvAsInt("MOSQ_RUN_RETENTION_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.FusionWidth < 1 || c.FusionWidth > fusion.MaxWidth {
		return fmt.Errorf("%w: MOSQ_FUSION_WIDTH must be in 1..%d, got %d", ErrInvalidConfig, fusion.MaxWidth, c.FusionWidth)
	}
	if c.SimplexSize <= 0 {
		return fmt.Errorf("%w: MOSQ_SIMPLEX_SIZE must be positive, got %g", ErrInvalidConfig, c.SimplexSize)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: MOSQ_PORT out of range: %d", ErrInvalidConfig, c.Port)
	}
	if c.RunRetentionDays < 0 {
		return fmt.Errorf("%w: MOSQ_RUN_RETENTION_DAYS must not be negative, got %d", ErrInvalidConfig, c.RunRetentionDays)
	}
	return nil
}

// RunsDBPath is the run history database file.
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
