package di

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	testingpkg "github.com/best-seungwoo/MOSQ-ICCD/internal/testing"
)

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunRetentionDays = 7
	testingpkg.WriteProblems(t, cfg.CacheDir, "H2")

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	ctx := context.Background()
	stale := &runs.Run{Molecule: "H2", NumQubits: 4, MaxIterations: 1}
	require.NoError(t, container.RunRepo.Create(ctx, stale))

	sched, jobs, err := RegisterJobs(container, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, sched.Len())
	require.NotNil(t, jobs.WarmHamiltonians)
	require.NotNil(t, jobs.PruneRuns)
	require.NotNil(t, jobs.WALCheckpoint)

	got, err := container.RunRepo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFailed, got.Status)

	assert.NoError(t, sched.RunNow(jobs.WarmHamiltonians))
	assert.NoError(t, sched.RunNow(jobs.WALCheckpoint))
}

func TestRegisterJobs_RetentionDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunRetentionDays = 0

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	sched, jobs, err := RegisterJobs(container, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Len())
	assert.Nil(t, jobs.PruneRuns)
}

func TestRegisterJobs_WithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunRetentionDays = 7
	container := &Container{}
	require.NoError(t, InitializeServices(container, cfg, zerolog.Nop()))

	sched, jobs, err := RegisterJobs(container, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Len())
	assert.NotNil(t, jobs.WarmHamiltonians)
	assert.Nil(t, jobs.WALCheckpoint)
}

func TestRegisterJobs_NilContainer(t *testing.T) {
	_, _, err := RegisterJobs(nil, testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}
