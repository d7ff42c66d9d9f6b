package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/config"
	quantumhandlers "github.com/best-seungwoo/MOSQ-ICCD/internal/modules/quantum/handlers"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/vqe"
)

// InitializeServices creates repositories, services and handlers on top of
// an initialized container. A container without RunsDB runs without history.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.RunsDB != nil {
		container.RunRepo = runs.NewRepository(container.RunsDB.Conn())
	}
	container.ProblemStore = problems.NewStore(cfg.CacheDir, log)

	engine, err := statevector.NewEngine(statevector.Config{FusionWidth: cfg.FusionWidth}, log)
	if err != nil {
		return fmt.Errorf("failed to create statevector engine: %w", err)
	}
	container.Engine = engine

	container.Driver = vqe.NewDriver(container.ProblemStore, container.RunRepo, vqe.Config{
		FusionWidth: cfg.FusionWidth,
		SimplexSize: cfg.SimplexSize,
	}, log)

	container.QuantumHandler = quantumhandlers.NewHandler(
		container.Driver,
		container.ProblemStore,
		container.RunRepo,
		container.Engine,
		log,
	)

	log.Info().
		Str("cache_dir", cfg.CacheDir).
		Int("fusion_width", cfg.FusionWidth).
		Msg("Services initialized")
	return nil
}
