package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
)

// WarmHamiltoniansJob builds the msgpack Hamiltonian cache of every problem
// in the store, so the first optimization of a molecule skips the
// Jordan-Wigner transform.
type WarmHamiltoniansJob struct {
	log   zerolog.Logger
	store *problems.Store
}

// NewWarmHamiltoniansJob creates a new WarmHamiltoniansJob
func NewWarmHamiltoniansJob(store *problems.Store) *WarmHamiltoniansJob {
	return &WarmHamiltoniansJob{
		log:   zerolog.Nop(),
		store: store,
	}
}

// SetLogger sets the logger for the job
func (j *WarmHamiltoniansJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *WarmHamiltoniansJob) Name() string {
	return "warm_hamiltonians"
}

// Run loads each problem and refreshes its cache. A broken problem file is
// logged and skipped; only a failure to list the store fails the job.
func (j *WarmHamiltoniansJob) Run() error {
	molecules, err := j.store.List()
	if err != nil {
		return fmt.Errorf("failed to list problems: %w", err)
	}

	built, hits := 0, 0
	for _, molecule := range molecules {
		p, err := j.store.Load(molecule)
		if err != nil {
			j.log.Warn().Err(err).Str("molecule", molecule).Msg("Skipping unreadable problem")
			continue
		}
		_, hit, err := j.store.Hamiltonian(p)
		if err != nil {
			j.log.Warn().Err(err).Str("molecule", molecule).Msg("Failed to build hamiltonian")
			continue
		}
		if hit {
			hits++
		} else {
			built++
		}
	}

	j.log.Info().
		Int("problems", len(molecules)).
		Int("built", built).
		Int("cached", hits).
		Msg("Hamiltonian cache warmed")

	return nil
}
