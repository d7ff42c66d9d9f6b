package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
)

const pruneTimeout = time.Minute

// PruneRunsJob deletes finished runs older than the retention window.
type PruneRunsJob struct {
	log       zerolog.Logger
	repo      *runs.Repository
	retention time.Duration
	now       func() time.Time
}

// NewPruneRunsJob creates a new PruneRunsJob
func NewPruneRunsJob(repo *runs.Repository, retention time.Duration) *PruneRunsJob {
	return &PruneRunsJob{
		log:       zerolog.Nop(),
		repo:      repo,
		retention: retention,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the job
func (j *PruneRunsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *PruneRunsJob) Name() string {
	return "prune_runs"
}

// Run executes the prune runs job
func (j *PruneRunsJob) Run() error {
	if j.repo == nil || j.retention <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.repo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}

	j.log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Old runs pruned")

	return nil
}
