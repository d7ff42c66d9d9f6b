package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

var (
	// ErrDimensionMismatch is returned when the initial point does not match
	// the circuit's parameter count.
	ErrDimensionMismatch = errors.New("initial point dimension does not match circuit parameters")
	// ErrInvalidIterationBudget is returned for a non-positive iteration budget.
	ErrInvalidIterationBudget = errors.New("iteration budget must be positive")
)

// DefaultSimplexSize is the initial Nelder-Mead simplex edge length.
const DefaultSimplexSize = 0.5

// Evaluator computes the energy of a bound circuit.
type Evaluator interface {
	Evaluate(c *circuit.Concrete, o *pauli.Observable) (*statevector.EvaluationResult, error)
}

// Observer is called after every objective evaluation.
type Observer func(entry HistoryEntry)

// Settings configures the simplex search.
type Settings struct {
	SimplexSize float64
	Observer    Observer
}

// HistoryEntry records one objective evaluation.
type HistoryEntry struct {
	Iteration            int                `json:"iteration"`
	Params               []float64          `json:"params"`
	Value                float64            `json:"value"`
	PhaseTimes           map[string]float64 `json:"phase_times"`
	CumulativePhaseTimes map[string]float64 `json:"cumulative_phase_times"`
}

// Result is the outcome of an optimization run.
type Result struct {
	BestParams     []float64         `json:"best_params"`
	BestValue      float64           `json:"best_value"`
	IterationCount int               `json:"iteration_count"`
	History        []HistoryEntry    `json:"history"`
	Status         string            `json:"status"`
	PhaseTotals    timing.PhaseTimes `json:"-"`
}

// VariationalOptimizer minimizes the energy of a parameterized circuit
// with a derivative-free simplex search. Every objective evaluation counts
// as one iteration.
type VariationalOptimizer struct {
	evaluator  Evaluator
	circuit    *circuit.Circuit
	observable *pauli.Observable
	settings   Settings
	log        zerolog.Logger
}

// NewVariationalOptimizer creates a new variational optimizer.
func NewVariationalOptimizer(
	evaluator Evaluator,
	c *circuit.Circuit,
	o *pauli.Observable,
	settings Settings,
	log zerolog.Logger,
) *VariationalOptimizer {
	if settings.SimplexSize <= 0 {
		settings.SimplexSize = DefaultSimplexSize
	}
	return &VariationalOptimizer{
		evaluator:  evaluator,
		circuit:    c,
		observable: o,
		settings:   settings,
		log:        log.With().Str("component", "variational_optimizer").Logger(),
	}
}

// Run optimizes from initialPoint using at most maxIterations evaluations.
func (v *VariationalOptimizer) Run(initialPoint []float64, maxIterations int) (*Result, error) {
	return v.RunContext(context.Background(), initialPoint, maxIterations)
}

// RunContext is Run with cancellation. A cancelled context stops further
// evaluations and is reported as the run error.
func (v *VariationalOptimizer) RunContext(ctx context.Context, initialPoint []float64, maxIterations int) (*Result, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterationBudget, maxIterations)
	}
	if len(initialPoint) != v.circuit.NumParameters() {
		return nil, fmt.Errorf("%w: got %d values, circuit has %d parameters",
			ErrDimensionMismatch, len(initialPoint), v.circuit.NumParameters())
	}

	r := &run{
		v:      v,
		ctx:    ctx,
		budget: maxIterations,
		totals: timing.NewAccumulator(),
		best:   math.Inf(1),
	}

	v.log.Info().
		Int("parameters", len(initialPoint)).
		Int("max_iterations", maxIterations).
		Msg("Starting variational optimization")

	status := "evaluated"
	if len(initialPoint) == 0 {
		r.objective(nil)
	} else {
		problem := optimize.Problem{Func: r.objective}
		settings := &optimize.Settings{
			FuncEvaluations: maxIterations,
			Concurrent:      1,
		}
		method := &optimize.NelderMead{SimplexSize: v.settings.SimplexSize}

		result, err := optimize.Minimize(problem, append([]float64(nil), initialPoint...), settings, method)
		if r.err != nil {
			return nil, r.err
		}
		if err != nil && len(r.history) == 0 {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if err != nil {
			v.log.Warn().Err(err).Msg("Simplex search stopped with error, keeping best evaluation")
		}
		if result != nil {
			status = result.Status.String()
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	res := &Result{
		BestParams:     r.bestParams,
		BestValue:      r.best,
		IterationCount: len(r.history),
		History:        r.history,
		Status:         status,
		PhaseTotals:    r.totals.Snapshot(),
	}

	v.log.Info().
		Int("iterations", res.IterationCount).
		Float64("best_value", res.BestValue).
		Str("status", res.Status).
		Msg("Variational optimization finished")

	return res, nil
}

// run holds the state of one optimization. The objective stops calling the
// evaluator once the budget is spent or an evaluation failed, so the engine
// never sees more than budget calls whatever the simplex method requests.
type run struct {
	v      *VariationalOptimizer
	ctx    context.Context
	budget int
	totals *timing.Accumulator

	history    []HistoryEntry
	best       float64
	bestParams []float64
	err        error
}

func (r *run) objective(x []float64) float64 {
	if r.err != nil || len(r.history) >= r.budget {
		return math.Inf(1)
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return math.Inf(1)
	}

	params := make([]float64, len(x))
	copy(params, x)
	phases := timing.PhaseTimes{}

	sw := timing.Start(phases, timing.PhaseBind)
	bound, err := r.v.circuit.BindVector(params)
	sw.Stop()
	if err != nil {
		r.err = fmt.Errorf("iteration %d: %w", len(r.history)+1, err)
		return math.Inf(1)
	}

	res, err := r.v.evaluator.Evaluate(bound, r.v.observable)
	if err != nil {
		r.err = fmt.Errorf("iteration %d: %w", len(r.history)+1, err)
		return math.Inf(1)
	}
	phases.Merge(res.PhaseTimes)
	r.totals.Add(phases)

	entry := HistoryEntry{
		Iteration:            len(r.history) + 1,
		Params:               params,
		Value:                res.ExpectationValue,
		PhaseTimes:           phases.Seconds(),
		CumulativePhaseTimes: r.totals.Snapshot().Seconds(),
	}
	r.history = append(r.history, entry)

	if entry.Iteration == 1 || res.ExpectationValue < r.best {
		r.best = res.ExpectationValue
		r.bestParams = params
	}

	r.v.log.Debug().
		Int("iteration", entry.Iteration).
		Float64("value", entry.Value).
		Msg("Objective evaluated")

	if r.v.settings.Observer != nil {
		r.v.settings.Observer(entry)
	}

	return res.ExpectationValue
}
