// Package vqe runs the variational eigensolver for a cached molecule: load
// the problem, map it to qubits, build the UCCSD ansatz and minimize the
// energy with the fusing statevector engine.
package vqe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/ansatz"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

// Config holds driver configuration
type Config struct {
	FusionWidth int
	SimplexSize float64
	// MaxIterations overrides problems.IterationBudget when positive.
	MaxIterations int
}

// Report summarizes one run.
type Report struct {
	RunID                  string                      `json:"run_id,omitempty"`
	Molecule               string                      `json:"molecule"`
	NumQubits              int                         `json:"num_qubits"`
	NumParameters          int                         `json:"num_parameters"`
	NumTerms               int                         `json:"num_terms"`
	FusionWidth            int                         `json:"fusion_width"`
	MaxIterations          int                         `json:"max_iterations"`
	Iterations             int                         `json:"iterations"`
	BestValue              float64                     `json:"best_value"`
	BestParams             []float64                   `json:"best_params"`
	NuclearRepulsionEnergy float64                     `json:"nuclear_repulsion_energy"`
	ReferenceEnergy        float64                     `json:"reference_energy"`
	HamiltonianCached      bool                        `json:"hamiltonian_cached"`
	Status                 string                      `json:"status"`
	PhaseTotals            timing.PhaseTimes           `json:"-"`
	WallTime               time.Duration               `json:"-"`
	History                []optimization.HistoryEntry `json:"history"`
}

// TotalEnergy adds the nuclear repulsion to the best electronic energy.
func (r *Report) TotalEnergy() float64 {
	return r.BestValue + r.NuclearRepulsionEnergy
}

// Driver runs VQE for molecules from one problem store.
type Driver struct {
	store  *problems.Store
	repo   *runs.Repository
	cfg    Config
	memory MemoryProbe
	log    zerolog.Logger
}

// NewDriver creates a new VQE driver. repo may be nil to skip recording runs.
func NewDriver(store *problems.Store, repo *runs.Repository, cfg Config, log zerolog.Logger) *Driver {
	return &Driver{
		store:  store,
		repo:   repo,
		cfg:    cfg,
		memory: SystemMemory,
		log:    log.With().Str("component", "vqe").Logger(),
	}
}

// WithMemoryProbe replaces the system memory probe.
func (d *Driver) WithMemoryProbe(probe MemoryProbe) *Driver {
	d.memory = probe
	return d
}

// WithMaxIterations returns a copy of the driver with the iteration budget
// overridden. Non-positive values fall back to problems.IterationBudget.
func (d *Driver) WithMaxIterations(n int) *Driver {
	dup := *d
	dup.cfg.MaxIterations = n
	return &dup
}

// Run optimizes molecule from the all-zero initial point. observer, when not
// nil, sees every iteration as it completes.
func (d *Driver) Run(ctx context.Context, molecule string, observer optimization.Observer) (*Report, error) {
	start := time.Now()

	problem, err := d.store.Load(molecule)
	if err != nil {
		return nil, err
	}

	hamiltonian, cached, err := d.store.Hamiltonian(problem)
	if err != nil {
		return nil, fmt.Errorf("failed to map hamiltonian of %s: %w", molecule, err)
	}

	circ, err := ansatz.UCCSD(problem.NumSpatialOrbitals, problem.NumParticles)
	if err != nil {
		return nil, fmt.Errorf("failed to build ansatz for %s: %w", molecule, err)
	}

	if err := CheckMemory(circ.NumQubits(), d.memory); err != nil {
		return nil, err
	}

	engine, err := statevector.NewEngine(statevector.Config{FusionWidth: d.cfg.FusionWidth}, d.log)
	if err != nil {
		return nil, err
	}

	budget := d.cfg.MaxIterations
	if budget <= 0 {
		budget = problems.IterationBudget(molecule)
	}

	d.log.Info().
		Str("molecule", molecule).
		Int("num_qubits", circ.NumQubits()).
		Int("num_parameters", circ.NumParameters()).
		Int("terms", hamiltonian.Len()).
		Int("max_iterations", budget).
		Bool("hamiltonian_cached", cached).
		Msg("Starting VQE run")

	var run *runs.Run
	if d.repo != nil {
		run = &runs.Run{
			Molecule:      molecule,
			NumQubits:     circ.NumQubits(),
			NumParameters: circ.NumParameters(),
			FusionWidth:   engine.FusionWidth(),
			MaxIterations: budget,
		}
		if err := d.repo.Create(ctx, run); err != nil {
			return nil, err
		}
	}

	record := func(entry optimization.HistoryEntry) {
		if run != nil {
			if err := d.repo.AppendIteration(ctx, run.ID, entry); err != nil {
				d.log.Warn().Err(err).Int("iteration", entry.Iteration).Msg("Failed to record iteration")
			}
		}
		if observer != nil {
			observer(entry)
		}
	}

	opt := optimization.NewVariationalOptimizer(engine, circ, hamiltonian, optimization.Settings{
		SimplexSize: d.cfg.SimplexSize,
		Observer:    record,
	}, d.log)

	result, runErr := opt.RunContext(ctx, make([]float64, circ.NumParameters()), budget)

	if run != nil {
		// The request context may already be cancelled; the outcome is still recorded.
		if err := d.repo.Finish(context.Background(), run.ID, result, runErr); err != nil {
			d.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run outcome")
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("vqe run for %s failed: %w", molecule, runErr)
	}

	report := &Report{
		Molecule:               molecule,
		NumQubits:              circ.NumQubits(),
		NumParameters:          circ.NumParameters(),
		NumTerms:               hamiltonian.Len(),
		FusionWidth:            engine.FusionWidth(),
		MaxIterations:          budget,
		Iterations:             result.IterationCount,
		BestValue:              result.BestValue,
		BestParams:             result.BestParams,
		NuclearRepulsionEnergy: problem.NuclearRepulsionEnergy,
		ReferenceEnergy:        problem.ReferenceEnergy,
		HamiltonianCached:      cached,
		Status:                 result.Status,
		PhaseTotals:            result.PhaseTotals,
		WallTime:               time.Since(start),
		History:                result.History,
	}
	if run != nil {
		report.RunID = run.ID
	}

	d.log.Info().
		Str("molecule", molecule).
		Int("iterations", report.Iterations).
		Float64("best_value", report.BestValue).
		Dur("wall_time", report.WallTime).
		Msg("VQE run finished")

	return report, nil
}
