// Package runs persists optimization runs and their iteration history.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/database"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Run is one stored optimization run.
type Run struct {
	ID             string                      `json:"id"`
	Molecule       string                      `json:"molecule"`
	NumQubits      int                         `json:"num_qubits"`
	NumParameters  int                         `json:"num_parameters"`
	FusionWidth    int                         `json:"fusion_width"`
	MaxIterations  int                         `json:"max_iterations"`
	Status         string                      `json:"status"`
	BestValue      *float64                    `json:"best_value,omitempty"`
	IterationCount int                         `json:"iteration_count"`
	PhaseTotals    map[string]float64          `json:"phase_totals"`
	Error          string                      `json:"error,omitempty"`
	StartedAt      time.Time                   `json:"started_at"`
	FinishedAt     *time.Time                  `json:"finished_at,omitempty"`
	Iterations     []optimization.HistoryEntry `json:"iterations,omitempty"`
}

// Repository stores runs in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new run repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new running run and assigns its ID.
func (r *Repository) Create(ctx context.Context, run *Run) error {
	run.ID = uuid.New().String()
	run.Status = StatusRunning
	run.StartedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, molecule, num_qubits, num_parameters, fusion_width, max_iterations, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Molecule, run.NumQubits, run.NumParameters, run.FusionWidth,
		run.MaxIterations, run.Status, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// AppendIteration stores one history entry of a run.
func (r *Repository) AppendIteration(ctx context.Context, runID string, entry optimization.HistoryEntry) error {
	params, err := msgpack.Marshal(entry.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	phases, err := json.Marshal(entry.PhaseTimes)
	if err != nil {
		return fmt.Errorf("failed to encode phase times: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO iterations (run_id, iteration, value, params, phase_times)
		VALUES (?, ?, ?, ?, ?)`,
		runID, entry.Iteration, entry.Value, params, string(phases),
	)
	if err != nil {
		return fmt.Errorf("failed to store iteration %d of run %s: %w", entry.Iteration, runID, err)
	}
	return nil
}

// Finish marks a run finished, or failed when runErr is not nil.
func (r *Repository) Finish(ctx context.Context, runID string, result *optimization.Result, runErr error) error {
	status := StatusFinished
	var errText sql.NullString
	if runErr != nil {
		status = StatusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	var best sql.NullFloat64
	count := 0
	totals := []byte("{}")
	if result != nil {
		best = sql.NullFloat64{Float64: result.BestValue, Valid: true}
		count = result.IterationCount
		encoded, err := json.Marshal(result.PhaseTotals.Seconds())
		if err != nil {
			return fmt.Errorf("failed to encode phase totals: %w", err)
		}
		totals = encoded
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, best_value = ?, iteration_count = ?, phase_totals = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		status, best, count, string(totals), errText, time.Now().UTC().UnixNano(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// FailInterrupted marks every run still in the running state as failed.
// Called at startup, when no run can legitimately be in progress.
func (r *Repository) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?`,
		StatusFailed, reason, time.Now().UTC().UnixNano(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFinishedBefore removes completed runs that finished before cutoff.
// Their iterations go with them through the foreign key cascade.
func (r *Repository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE status != ? AND finished_at IS NOT NULL AND finished_at < ?`,
		StatusRunning, cutoff.UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Get loads a run and its iterations.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, molecule, num_qubits, num_parameters, fusion_width, max_iterations, status,
		       best_value, iteration_count, phase_totals, error, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	run.Iterations, err = r.iterations(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, optionally filtered by molecule.
// Iterations are not loaded.
func (r *Repository) List(ctx context.Context, molecule string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, molecule, num_qubits, num_parameters, fusion_width, max_iterations, status,
		       best_value, iteration_count, phase_totals, error, started_at, finished_at
		FROM runs
		WHERE (? = '' OR molecule = ?)
		ORDER BY started_at DESC
		LIMIT ?`, molecule, molecule, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// iterations loads the history of a run. Only per-iteration phase times are
// stored; cumulative times are rebuilt here.
func (r *Repository) iterations(ctx context.Context, runID string) ([]optimization.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT iteration, value, params, phase_times
		FROM iterations WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load iterations of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []optimization.HistoryEntry
	cumulative := make(map[string]float64)
	for rows.Next() {
		var (
			entry  optimization.HistoryEntry
			params []byte
			phases string
		)
		if err := rows.Scan(&entry.Iteration, &entry.Value, &params, &phases); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if err := msgpack.Unmarshal(params, &entry.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params of iteration %d: %w", entry.Iteration, err)
		}
		if err := json.Unmarshal([]byte(phases), &entry.PhaseTimes); err != nil {
			return nil, fmt.Errorf("failed to decode phase times of iteration %d: %w", entry.Iteration, err)
		}
		entry.CumulativePhaseTimes = make(map[string]float64, len(entry.PhaseTimes))
		for phase, s := range entry.PhaseTimes {
			cumulative[phase] += s
		}
		for phase, s := range cumulative {
			entry.CumulativePhaseTimes[phase] = s
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		best       sql.NullFloat64
		totals     string
		errText    sql.NullString
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.Scan(&run.ID, &run.Molecule, &run.NumQubits, &run.NumParameters, &run.FusionWidth,
		&run.MaxIterations, &run.Status, &best, &run.IterationCount, &totals, &errText,
		&startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if best.Valid {
		v := best.Float64
		run.BestValue = &v
	}
	if err := json.Unmarshal([]byte(totals), &run.PhaseTotals); err != nil {
		return nil, fmt.Errorf("failed to decode phase totals of run %s: %w", run.ID, err)
	}
	run.Error = errText.String
	run.StartedAt = time.Unix(0, startedAt).UTC()
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}

// Open opens and migrates the run history database at path.
func Open(path string) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
