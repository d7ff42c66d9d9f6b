// Package timing holds per-run phase timers. Every evaluation returns its own
// PhaseTimes and callers sum them into an Accumulator they own, so no timing
// state is shared between runs.
package timing

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Phase names reported by the fusion compiler and the statevector engine.
const (
	PhaseBind               = "bind"
	PhaseMaterialize        = "materialize"
	PhaseSimulate           = "simulate"
	PhaseComputeExpectation = "computeExpectation"
)

// MaxFuseLevel is the widest fusion pass level that gets its own phase.
const MaxFuseLevel = 5

// FuseWidthPhase returns the phase name of fusion pass level k.
func FuseWidthPhase(k int) string {
	return fmt.Sprintf("fuseWidth%d", k)
}

// PhaseTimes maps a phase name to the wall-clock time spent in it.
type PhaseTimes map[string]time.Duration

// Add records d under phase.
func (p PhaseTimes) Add(phase string, d time.Duration) {
	p[phase] += d
}

// Get returns the duration recorded for phase, zero when absent.
func (p PhaseTimes) Get(phase string) time.Duration {
	return p[phase]
}

// Merge adds every phase of other into p.
func (p PhaseTimes) Merge(other PhaseTimes) {
	for phase, d := range other {
		p[phase] += d
	}
}

// Clone returns an independent copy.
func (p PhaseTimes) Clone() PhaseTimes {
	out := make(PhaseTimes, len(p))
	for phase, d := range p {
		out[phase] = d
	}
	return out
}

// Phases returns the recorded phase names sorted alphabetically.
func (p PhaseTimes) Phases() []string {
	names := make([]string, 0, len(p))
	for phase := range p {
		names = append(names, phase)
	}
	sort.Strings(names)
	return names
}

// Total is the sum over all phases.
func (p PhaseTimes) Total() time.Duration {
	var total time.Duration
	for _, d := range p {
		total += d
	}
	return total
}

// Seconds converts the map for JSON and database output.
func (p PhaseTimes) Seconds() map[string]float64 {
	out := make(map[string]float64, len(p))
	for phase, d := range p {
		out[phase] = d.Seconds()
	}
	return out
}

// Accumulator sums PhaseTimes across the evaluations of one run.
type Accumulator struct {
	totals PhaseTimes
	count  int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{totals: PhaseTimes{}}
}

// Add folds one evaluation's phase times into the running totals.
func (a *Accumulator) Add(p PhaseTimes) {
	a.totals.Merge(p)
	a.count++
}

// Count is the number of PhaseTimes added so far.
func (a *Accumulator) Count() int {
	return a.count
}

// Snapshot returns a copy of the running totals.
func (a *Accumulator) Snapshot() PhaseTimes {
	return a.totals.Clone()
}

// Stopwatch measures one phase and records it on Stop.
type Stopwatch struct {
	start time.Time
	phase string
	into  PhaseTimes
}

// Start begins timing phase; the result lands in into.
func Start(into PhaseTimes, phase string) *Stopwatch {
	return &Stopwatch{start: time.Now(), phase: phase, into: into}
}

// Stop records the elapsed time and returns it.
func (s *Stopwatch) Stop() time.Duration {
	d := time.Since(s.start)
	s.into.Add(s.phase, d)
	return d
}

// LogPhases writes one debug event carrying every phase as seconds.
func LogPhases(log zerolog.Logger, msg string, p PhaseTimes) {
	event := log.Debug()
	if !event.Enabled() {
		return
	}
	for _, phase := range p.Phases() {
		event = event.Float64(phase, p[phase].Seconds())
	}
	event.Msg(msg)
}
