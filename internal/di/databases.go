// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/config"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
)

// InitializeDatabases opens the run history database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	runsDB, err := runs.Open(cfg.RunsDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runs database: %w", err)
	}
	container.RunsDB = runsDB

	log.Info().Str("path", runsDB.Path()).Msg("Runs database initialized")
	return container, nil
}
