/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The CLI and the HTTP server both build their components from one Container.
 */
package di

import (
	"github.com/best-seungwoo/MOSQ-ICCD/internal/database"
	quantumhandlers "github.com/best-seungwoo/MOSQ-ICCD/internal/modules/quantum/handlers"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/vqe"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	RunsDB *database.DB

	// Repositories
	RunRepo      *runs.Repository
	ProblemStore *problems.Store

	// Services
	Engine *statevector.Engine
	Driver *vqe.Driver

	// Handlers
	QuantumHandler *quantumhandlers.Handler
}

// Close releases the databases held by the container.
func (c *Container) Close() error {
	if c.RunsDB != nil {
		return c.RunsDB.Close()
	}
	return nil
}
