package vqe

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

func fixedReport() *Report {
	return &Report{
		Molecule:               "H2",
		NumQubits:              4,
		NumParameters:          3,
		Iterations:             2,
		BestValue:              -1.85,
		NuclearRepulsionEnergy: 0.72,
		PhaseTotals: timing.PhaseTimes{
			timing.PhaseSimulate:           1500 * time.Millisecond,
			timing.PhaseComputeExpectation: 250 * time.Millisecond,
			timing.PhaseBind:               10 * time.Millisecond,
			timing.PhaseMaterialize:        40 * time.Millisecond,
			timing.FuseWidthPhase(1):       1 * time.Millisecond,
			timing.FuseWidthPhase(2):       2 * time.Millisecond,
			timing.FuseWidthPhase(3):       3 * time.Millisecond,
			timing.FuseWidthPhase(4):       4 * time.Millisecond,
			timing.FuseWidthPhase(5):       5 * time.Millisecond,
		},
		WallTime: 2500 * time.Millisecond,
		History: []optimization.HistoryEntry{
			{Iteration: 1, Value: -1.83},
			{Iteration: 2, Value: -1.85},
		},
	}
}

func TestWriteSummary_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, fixedReport()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "summary", buf.Bytes())
}

func TestNewBreakdown_PartitionsPhases(t *testing.T) {
	r := fixedReport()
	b := NewBreakdown(r.PhaseTotals, r.WallTime)

	assert.Equal(t, r.WallTime, b.Sim+b.Exp+b.Etc+b.Opt)
	assert.Equal(t, 65*time.Millisecond, b.Etc)

	// Wall time shorter than the engine phases never yields negative Opt.
	b = NewBreakdown(r.PhaseTotals, time.Second)
	assert.Zero(t, b.Opt)
}

func TestWriteIteration(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIteration(&buf, optimization.HistoryEntry{Iteration: 3, Value: -1.8369}))
	assert.Equal(t, "3: -1.8369\n", buf.String())
}
