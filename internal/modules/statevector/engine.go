// Package statevector evaluates the energy of a bound circuit against a Pauli
// observable on a dense 2^n statevector.
package statevector

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/fusion"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

// ErrQubitCountMismatch is returned when circuit and observable act on
// registers of different size.
var ErrQubitCountMismatch = errors.New("circuit and observable qubit counts differ")

// Config holds engine configuration
type Config struct {
	FusionWidth int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{FusionWidth: fusion.DefaultWidth}
}

// EvaluationResult is the outcome of one energy evaluation.
type EvaluationResult struct {
	ExpectationValue float64           `json:"expectation_value"`
	PhaseTimes       timing.PhaseTimes `json:"-"`
	Blocks           int               `json:"blocks"`
	PlanCacheHit     bool              `json:"plan_cache_hit"`
}

// Engine fuses, simulates and measures bound circuits. The only state shared
// between evaluations is the last fusion plan, which is immutable and swapped
// wholesale when the circuit topology changes.
type Engine struct {
	compiler *fusion.Compiler
	plan     atomic.Pointer[fusion.Plan]
	log      zerolog.Logger
}

// NewEngine creates a new statevector engine.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	compiler, err := fusion.NewCompiler(fusion.Config{MaxWidth: cfg.FusionWidth}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create fusion compiler: %w", err)
	}
	return &Engine{
		compiler: compiler,
		log:      log.With().Str("component", "statevector").Logger(),
	}, nil
}

// FusionWidth is the configured maximum block width.
func (e *Engine) FusionWidth() int {
	return e.compiler.MaxWidth()
}

// Evaluate returns Σ coeff·Re<ψ|P|ψ> for ψ = c|0...0>.
func (e *Engine) Evaluate(c *circuit.Concrete, o *pauli.Observable) (*EvaluationResult, error) {
	if c.NumQubits() != o.NumQubits() {
		return nil, fmt.Errorf("%w: circuit has %d, observable has %d",
			ErrQubitCountMismatch, c.NumQubits(), o.NumQubits())
	}

	state, res, err := e.simulate(c)
	if err != nil {
		return nil, err
	}

	sw := timing.Start(res.PhaseTimes, timing.PhaseComputeExpectation)
	res.ExpectationValue = Expectation(state, o)
	sw.Stop()

	timing.LogPhases(e.log, "Evaluation phases", res.PhaseTimes)
	return res, nil
}

// Run returns the final statevector c|0...0>.
func (e *Engine) Run(c *circuit.Concrete) ([]complex128, *EvaluationResult, error) {
	return e.simulate(c)
}

func (e *Engine) simulate(c *circuit.Concrete) ([]complex128, *EvaluationResult, error) {
	plan, phases, hit, err := e.planFor(c)
	if err != nil {
		return nil, nil, err
	}

	sw := timing.Start(phases, timing.PhaseMaterialize)
	blocks, err := e.compiler.Materialize(plan, c)
	sw.Stop()
	if err != nil {
		return nil, nil, err
	}

	sw = timing.Start(phases, timing.PhaseSimulate)
	state := ZeroState(c.NumQubits())
	ApplyBlocks(state, blocks)
	sw.Stop()

	return state, &EvaluationResult{
		PhaseTimes:   phases,
		Blocks:       len(blocks),
		PlanCacheHit: hit,
	}, nil
}

// planFor returns the cached plan when the topology matches, otherwise
// builds and publishes a new one.
func (e *Engine) planFor(c *circuit.Concrete) (*fusion.Plan, timing.PhaseTimes, bool, error) {
	if cached := e.plan.Load(); cached != nil && cached.Fingerprint() == c.Fingerprint() {
		phases := timing.PhaseTimes{}
		for k := 1; k <= e.compiler.MaxWidth(); k++ {
			phases.Add(timing.FuseWidthPhase(k), 0)
		}
		return cached, phases, true, nil
	}

	plan, phases, err := e.compiler.Plan(c)
	if err != nil {
		return nil, phases, false, err
	}
	e.plan.Store(plan)

	e.log.Debug().
		Str("fingerprint", fmt.Sprintf("%016x", plan.Fingerprint())).
		Int("blocks", plan.Len()).
		Msg("Fusion plan cached")

	return plan, phases, false, nil
}

// ZeroState allocates |0...0> on n qubits.
func ZeroState(n int) []complex128 {
	state := make([]complex128, 1<<uint(n))
	state[0] = 1
	return state
}

// MemoryRequirement is the size in bytes of one n-qubit statevector.
func MemoryRequirement(n int) uint64 {
	return 16 << uint(n)
}
