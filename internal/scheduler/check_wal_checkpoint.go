package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/database"
)

// walTruncateFrames is the WAL size past which a passive checkpoint is
// followed by a truncating one.
const walTruncateFrames = 1000

// CheckWALCheckpointJob checkpoints the run history WAL and truncates it
// when it has grown large.
type CheckWALCheckpointJob struct {
	log zerolog.Logger
	db  *database.DB
}

// NewCheckWALCheckpointJob creates a new CheckWALCheckpointJob
func NewCheckWALCheckpointJob(db *database.DB) *CheckWALCheckpointJob {
	return &CheckWALCheckpointJob{
		log: zerolog.Nop(),
		db:  db,
	}
}

// SetLogger sets the logger for the job
func (j *CheckWALCheckpointJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckWALCheckpointJob) Name() string {
	return "check_wal_checkpoint"
}

// Run executes the check WAL checkpoint job
func (j *CheckWALCheckpointJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().
			Err(err).
			Str("database", j.db.Name()).
			Msg("Failed to check WAL checkpoint")
		return nil
	}

	if frames <= walTruncateFrames {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Msg("WAL checkpoint status OK")
		return nil
	}

	j.log.Warn().
		Str("database", j.db.Name()).
		Int("wal_frames", frames).
		Int("checkpointed", checkpointed).
		Msg("WAL file is large, truncating")

	if err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &frames, &checkpointed); err != nil {
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("Failed to truncate WAL")
	}
	return nil
}
