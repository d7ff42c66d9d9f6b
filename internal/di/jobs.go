package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/config"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/scheduler"
)

// Job schedules, with a leading seconds field.
const (
	warmHamiltoniansSchedule = "0 0 * * * *"    // hourly
	pruneRunsSchedule        = "0 30 3 * * *"   // daily, 03:30
	walCheckpointSchedule    = "0 */15 * * * *" // every 15 minutes
)

// JobInstances exposes the registered jobs for manual triggering.
type JobInstances struct {
	WarmHamiltonians *scheduler.WarmHamiltoniansJob
	PruneRuns        *scheduler.PruneRunsJob
	WALCheckpoint    *scheduler.CheckWALCheckpointJob
}

// RegisterJobs builds the serve-mode maintenance jobs and registers them
// with a new scheduler. Jobs that need the run history database are skipped
// when the container has none. Runs left in the running state by a previous
// process are marked failed before anything is scheduled.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*scheduler.Scheduler, *JobInstances, error) {
	if container == nil {
		return nil, nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}
	jobLog := log.With().Str("component", "jobs").Logger()

	instances.WarmHamiltonians = scheduler.NewWarmHamiltoniansJob(container.ProblemStore)
	instances.WarmHamiltonians.SetLogger(jobLog)
	if err := sched.AddJob(warmHamiltoniansSchedule, instances.WarmHamiltonians); err != nil {
		return nil, nil, fmt.Errorf("failed to register %s: %w", instances.WarmHamiltonians.Name(), err)
	}

	if container.RunRepo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		failed, err := container.RunRepo.FailInterrupted(ctx, "interrupted by restart")
		cancel()
		if err != nil {
			return nil, nil, err
		}
		if failed > 0 {
			log.Warn().Int64("runs", failed).Msg("Marked interrupted runs as failed")
		}

		if cfg.RunRetentionDays > 0 {
			retention := time.Duration(cfg.RunRetentionDays) * 24 * time.Hour
			instances.PruneRuns = scheduler.NewPruneRunsJob(container.RunRepo, retention)
			instances.PruneRuns.SetLogger(jobLog)
			if err := sched.AddJob(pruneRunsSchedule, instances.PruneRuns); err != nil {
				return nil, nil, fmt.Errorf("failed to register %s: %w", instances.PruneRuns.Name(), err)
			}
		}
	}

	if container.RunsDB != nil {
		instances.WALCheckpoint = scheduler.NewCheckWALCheckpointJob(container.RunsDB)
		instances.WALCheckpoint.SetLogger(jobLog)
		if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoint); err != nil {
			return nil, nil, fmt.Errorf("failed to register %s: %w", instances.WALCheckpoint.Name(), err)
		}
	}

	return sched, instances, nil
}
