package vqe

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	testingpkg "github.com/best-seungwoo/MOSQ-ICCD/internal/testing"
)

const hartreeFockH2 = testingpkg.HartreeFockH2

func newDriver(t *testing.T, cfg Config) (*Driver, *runs.Repository) {
	t.Helper()
	dir := testingpkg.NewProblemCache(t, "H2")

	db, _ := testingpkg.NewTestDB(t, "runs")
	repo := runs.NewRepository(db.Conn())

	store := problems.NewStore(dir, zerolog.Nop())
	return NewDriver(store, repo, cfg, zerolog.Nop()).WithMemoryProbe(testingpkg.PlentyOfMemory), repo
}

func TestDriver_RunH2(t *testing.T) {
	driver, repo := newDriver(t, Config{FusionWidth: 5, SimplexSize: 0.5})

	var seen []optimization.HistoryEntry
	report, err := driver.Run(context.Background(), "H2", func(e optimization.HistoryEntry) {
		seen = append(seen, e)
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.NumQubits)
	assert.Equal(t, 3, report.NumParameters)
	assert.Equal(t, 15, report.NumTerms)
	assert.Equal(t, 10, report.MaxIterations)
	assert.GreaterOrEqual(t, report.Iterations, 1)
	assert.LessOrEqual(t, report.Iterations, 10)
	assert.Len(t, seen, report.Iterations)

	// The zero point is the Hartree-Fock state.
	assert.InDelta(t, hartreeFockH2, report.History[0].Value, 1e-6)
	assert.LessOrEqual(t, report.BestValue, report.History[0].Value)
	// Variational bound: never below the exact ground state.
	assert.GreaterOrEqual(t, report.BestValue, -1.857275030202378-1e-6)

	require.NotEmpty(t, report.RunID)
	stored, err := repo.Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFinished, stored.Status)
	assert.Len(t, stored.Iterations, report.Iterations)
	require.NotNil(t, stored.BestValue)
	assert.InDelta(t, report.BestValue, *stored.BestValue, 1e-12)
}

func TestDriver_RunSixQubitChain(t *testing.T) {
	dir := testingpkg.NewProblemCache(t, "chain3")
	store := problems.NewStore(dir, zerolog.Nop())

	for width := 2; width <= 5; width++ {
		driver := NewDriver(store, nil, Config{FusionWidth: width, SimplexSize: 0.5, MaxIterations: 4}, zerolog.Nop()).
			WithMemoryProbe(testingpkg.PlentyOfMemory)

		report, err := driver.Run(context.Background(), "chain3", nil)
		require.NoError(t, err, "width %d", width)

		assert.Equal(t, 6, report.NumQubits)
		assert.Equal(t, 8, report.NumParameters)
		assert.Equal(t, 4, report.MaxIterations)
		require.NotEmpty(t, report.History)
		assert.InDelta(t, testingpkg.HartreeFockChain3, report.History[0].Value, 1e-9, "width %d", width)
		assert.LessOrEqual(t, report.BestValue, report.History[0].Value)
		assert.Empty(t, report.RunID)
	}
}

func TestDriver_IterationOverride(t *testing.T) {
	driver, _ := newDriver(t, Config{FusionWidth: 2, SimplexSize: 0.5, MaxIterations: 1})

	report, err := driver.Run(context.Background(), "H2", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, 2, report.FusionWidth)
	assert.InDelta(t, hartreeFockH2, report.BestValue, 1e-6)
}

func TestDriver_WithMaxIterations(t *testing.T) {
	driver, _ := newDriver(t, Config{FusionWidth: 5, SimplexSize: 0.5})

	report, err := driver.WithMaxIterations(2).Run(context.Background(), "H2", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.MaxIterations)
	assert.LessOrEqual(t, report.Iterations, 2)
	// The receiver is untouched.
	assert.Equal(t, 0, driver.cfg.MaxIterations)
}

func TestDriver_MissingProblem(t *testing.T) {
	driver, _ := newDriver(t, Config{FusionWidth: 5, SimplexSize: 0.5})

	_, err := driver.Run(context.Background(), "LiH", nil)
	assert.ErrorIs(t, err, problems.ErrProblemNotFound)
}

func TestDriver_InsufficientMemory(t *testing.T) {
	driver, _ := newDriver(t, Config{FusionWidth: 5, SimplexSize: 0.5})
	driver.WithMemoryProbe(testingpkg.FixedMemory(64))

	_, err := driver.Run(context.Background(), "H2", nil)
	assert.ErrorIs(t, err, ErrInsufficientMemory)
}

func TestMaxQubits(t *testing.T) {
	assert.Equal(t, 0, MaxQubits(63))
	assert.Equal(t, 1, MaxQubits(64))
	assert.Equal(t, 4, MaxQubits(1023))
	assert.Equal(t, 5, MaxQubits(1024))
	assert.Equal(t, 30, MaxQubits(1<<62))
}

func TestCheckMemory(t *testing.T) {
	assert.Equal(t, uint64(32<<4), RequiredMemory(4))
	assert.NoError(t, CheckMemory(4, testingpkg.FixedMemory(512)))
	assert.ErrorIs(t, CheckMemory(4, testingpkg.FixedMemory(511)), ErrInsufficientMemory)
	assert.ErrorIs(t, CheckMemory(4, testingpkg.FailingMemory), testingpkg.ErrProbeFailed)
}
