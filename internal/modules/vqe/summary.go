package vqe

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/fusion"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

// Breakdown splits the phase totals of a run into the summary buckets.
// Every phase lands in exactly one bucket.
type Breakdown struct {
	Sim   time.Duration
	Exp   time.Duration
	Etc   time.Duration
	Opt   time.Duration
	Total time.Duration
}

// NewBreakdown assigns simulate to Sim, computeExpectation to Exp and every
// other engine phase to Etc. Opt is wall time spent outside the engine.
func NewBreakdown(phases timing.PhaseTimes, wall time.Duration) Breakdown {
	b := Breakdown{
		Sim:   phases.Get(timing.PhaseSimulate),
		Exp:   phases.Get(timing.PhaseComputeExpectation),
		Total: wall,
	}
	b.Etc = phases.Total() - b.Sim - b.Exp
	if rest := wall - phases.Total(); rest > 0 {
		b.Opt = rest
	}
	return b
}

// WriteIteration prints one iteration as "<n>: <value>".
func WriteIteration(w io.Writer, entry optimization.HistoryEntry) error {
	_, err := fmt.Fprintf(w, "%d: %s\n", entry.Iteration, strconv.FormatFloat(entry.Value, 'g', -1, 64))
	return err
}

type summaryLine struct {
	key   string
	value string
}

// WriteSummary prints the timing summary of a finished run.
func WriteSummary(w io.Writer, r *Report) error {
	b := NewBreakdown(r.PhaseTotals, r.WallTime)

	lines := []summaryLine{
		{"num_qubits", strconv.Itoa(r.NumQubits)},
		{"num_parameters", strconv.Itoa(r.NumParameters)},
		{"T_sim", seconds(b.Sim)},
		{"T_exp", seconds(b.Exp)},
		{"T_etc", seconds(b.Etc)},
		{"T_opt", seconds(b.Opt)},
		{"T_tot", seconds(b.Total)},
	}
	for k := 1; k <= fusion.MaxWidth; k++ {
		phase := timing.FuseWidthPhase(k)
		lines = append(lines, summaryLine{phase, seconds(r.PhaseTotals.Get(phase))})
	}
	lines = append(lines,
		summaryLine{"best_energy", energy(r.BestValue)},
		summaryLine{"total_energy", energy(r.TotalEnergy())},
	)
	if len(r.History) > 0 {
		values := make([]float64, len(r.History))
		for i, e := range r.History {
			values[i] = e.Value
		}
		lines = append(lines, summaryLine{"mean_energy", energy(floats.Sum(values) / float64(len(values)))})
	}
	lines = append(lines, summaryLine{"total iteration", strconv.Itoa(r.Iterations)})

	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s: %s\n", l.key, l.value); err != nil {
			return err
		}
	}
	return nil
}

func energy(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
