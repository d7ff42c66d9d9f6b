package runs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
	testingpkg "github.com/best-seungwoo/MOSQ-ICCD/internal/testing"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	db, _ := testingpkg.NewTestDB(t, "runs")
	return NewRepository(db.Conn())
}

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	run := &Run{Molecule: "H2", NumQubits: 4, NumParameters: 3, FusionWidth: 5, MaxIterations: 10}
	require.NoError(t, repo.Create(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusRunning, run.Status)

	entries := []optimization.HistoryEntry{
		{Iteration: 1, Params: []float64{0, 0, 0}, Value: -1.83, PhaseTimes: map[string]float64{"simulate": 0.5}},
		{Iteration: 2, Params: []float64{0.1, 0, 0}, Value: -1.85, PhaseTimes: map[string]float64{"simulate": 0.25, "bind": 0.125}},
	}
	for _, e := range entries {
		require.NoError(t, repo.AppendIteration(ctx, run.ID, e))
	}

	result := &optimization.Result{
		BestParams:     []float64{0.1, 0, 0},
		BestValue:      -1.85,
		IterationCount: 2,
		PhaseTotals:    timing.PhaseTimes{timing.PhaseSimulate: 750 * time.Millisecond},
	}
	require.NoError(t, repo.Finish(ctx, run.ID, result, nil))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Equal(t, "H2", got.Molecule)
	require.NotNil(t, got.BestValue)
	assert.InDelta(t, -1.85, *got.BestValue, 1e-12)
	assert.Equal(t, 2, got.IterationCount)
	assert.InDelta(t, 0.75, got.PhaseTotals["simulate"], 1e-12)
	require.NotNil(t, got.FinishedAt)
	assert.Empty(t, got.Error)

	require.Len(t, got.Iterations, 2)
	assert.Equal(t, []float64{0.1, 0, 0}, got.Iterations[1].Params)
	assert.InDelta(t, 0.75, got.Iterations[1].CumulativePhaseTimes["simulate"], 1e-12)
	assert.InDelta(t, 0.125, got.Iterations[1].CumulativePhaseTimes["bind"], 1e-12)
}

func TestRepository_FailedRun(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	run := &Run{Molecule: "LiH", NumQubits: 12, MaxIterations: 10}
	require.NoError(t, repo.Create(ctx, run))
	require.NoError(t, repo.Finish(ctx, run.ID, nil, errors.New("engine exploded")))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "engine exploded", got.Error)
	assert.Nil(t, got.BestValue)
	assert.Empty(t, got.Iterations)
}

func TestRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = repo.Finish(ctx, "missing", nil, nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	for _, molecule := range []string{"H2", "LiH", "H2"} {
		require.NoError(t, repo.Create(ctx, &Run{Molecule: molecule, NumQubits: 4, MaxIterations: 1}))
	}

	all, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	h2, err := repo.List(ctx, "H2", 10)
	require.NoError(t, err)
	assert.Len(t, h2, 2)
	for _, run := range h2 {
		assert.Equal(t, "H2", run.Molecule)
	}

	limited, err := repo.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpen_CreatesSchema(t *testing.T) {
	path := testingpkg.CreateTempDBFile(t, "runs")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, filepath.Base(path), filepath.Base(db.Path()))
	_, err = NewRepository(db.Conn()).List(context.Background(), "", 10)
	assert.NoError(t, err)
}

func TestRepository_FailInterrupted(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	running := &Run{Molecule: "H2", NumQubits: 4, MaxIterations: 10}
	done := &Run{Molecule: "H2", NumQubits: 4, MaxIterations: 10}
	require.NoError(t, repo.Create(ctx, running))
	require.NoError(t, repo.Create(ctx, done))
	require.NoError(t, repo.Finish(ctx, done.ID, &optimization.Result{BestValue: -1.1, IterationCount: 1}, nil))

	n, err := repo.FailInterrupted(ctx, "server restarted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "server restarted", got.Error)
	assert.NotNil(t, got.FinishedAt)

	got, err = repo.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
}

func TestRepository_DeleteFinishedBefore(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	old := &Run{Molecule: "H2", NumQubits: 4, MaxIterations: 10}
	recent := &Run{Molecule: "H2", NumQubits: 4, MaxIterations: 10}
	active := &Run{Molecule: "H2", NumQubits: 4, MaxIterations: 10}
	for _, run := range []*Run{old, recent, active} {
		require.NoError(t, repo.Create(ctx, run))
	}
	require.NoError(t, repo.AppendIteration(ctx, old.ID, optimization.HistoryEntry{Iteration: 1, Params: []float64{0}, Value: -1}))
	require.NoError(t, repo.Finish(ctx, old.ID, nil, nil))
	require.NoError(t, repo.Finish(ctx, recent.ID, nil, nil))

	aged := time.Now().Add(-48 * time.Hour).UTC().UnixNano()
	_, err := repo.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, aged, old.ID)
	require.NoError(t, err)

	n, err := repo.DeleteFinishedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var orphans int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM iterations WHERE run_id = ?`, old.ID).Scan(&orphans))
	assert.Zero(t, orphans)

	remaining, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
