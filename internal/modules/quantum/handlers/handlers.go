// Package handlers provides HTTP handlers for circuit evaluation and VQE runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/evaluation/workers"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/fusion"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/vqe"
)

const (
	// maxStateQubits bounds the registers whose amplitudes are echoed back.
	maxStateQubits = 10
	// maxBatchPoints bounds one batch request.
	maxBatchPoints = 4096
)

// Handler handles quantum HTTP requests
type Handler struct {
	driver *vqe.Driver
	store  *problems.Store
	repo   *runs.Repository
	engine *statevector.Engine
	pool   *workers.WorkerPool
	memory vqe.MemoryProbe
	log    zerolog.Logger
}

// NewHandler creates a new quantum handler. repo may be nil, in which case
// the run endpoints answer 404.
func NewHandler(
	driver *vqe.Driver,
	store *problems.Store,
	repo *runs.Repository,
	engine *statevector.Engine,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		driver: driver,
		store:  store,
		repo:   repo,
		engine: engine,
		pool:   workers.NewWorkerPool(runtime.NumCPU()),
		memory: vqe.SystemMemory,
		log:    log.With().Str("handler", "quantum").Logger(),
	}
}

// EvaluateRequest represents a request to evaluate one bound circuit
type EvaluateRequest struct {
	NumQubits   int                `json:"num_qubits"`
	Gates       []circuit.Gate     `json:"gates"`
	Params      map[string]float64 `json:"params"`
	Observable  []pauli.Term       `json:"observable"`
	FusionWidth int                `json:"fusion_width,omitempty"`
	ReturnState bool               `json:"return_state,omitempty"`
}

// BatchRequest represents a request to evaluate one circuit at many
// parameter points. Each point lists values in first-appearance order of
// the parameters, as returned in the response.
type BatchRequest struct {
	NumQubits   int            `json:"num_qubits"`
	Gates       []circuit.Gate `json:"gates"`
	Points      [][]float64    `json:"points"`
	Observable  []pauli.Term   `json:"observable"`
	FusionWidth int            `json:"fusion_width,omitempty"`
}

// OptimizeRequest represents a request to run VQE for a cached molecule
type OptimizeRequest struct {
	Molecule      string `json:"molecule"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// HandleEvaluate handles POST /api/quantum/evaluate
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	circ, err := circuit.New(req.NumQubits, req.Gates)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	observable, err := pauli.New(req.Observable)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bound, err := circ.Bind(req.Params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := vqe.CheckMemory(req.NumQubits, h.memory); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	engine, err := h.engineFor(req.FusionWidth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := engine.Evaluate(bound, observable)
	if err != nil {
		h.log.Warn().Err(err).Int("num_qubits", req.NumQubits).Msg("Evaluation failed")
		http.Error(w, err.Error(), evaluationStatus(err))
		return
	}

	data := map[string]interface{}{
		"expectation_value": result.ExpectationValue,
		"blocks":            result.Blocks,
		"plan_cache_hit":    result.PlanCacheHit,
		"fusion_width":      engine.FusionWidth(),
		"phase_times":       result.PhaseTimes.Seconds(),
	}

	if req.ReturnState && req.NumQubits <= maxStateQubits {
		state, _, err := engine.Run(bound)
		if err != nil {
			http.Error(w, err.Error(), evaluationStatus(err))
			return
		}
		amplitudes := make([][2]float64, len(state))
		for i, a := range state {
			amplitudes[i] = [2]float64{real(a), imag(a)}
		}
		data["state"] = amplitudes
	}

	h.writeJSON(w, http.StatusOK, envelope(data))
}

// HandleEvaluateBatch handles POST /api/quantum/evaluate/batch
func (h *Handler) HandleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 || len(req.Points) > maxBatchPoints {
		http.Error(w, "points must hold 1 to 4096 entries", http.StatusBadRequest)
		return
	}

	circ, err := circuit.New(req.NumQubits, req.Gates)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	observable, err := pauli.New(req.Observable)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if observable.NumQubits() != circ.NumQubits() {
		http.Error(w, statevector.ErrQubitCountMismatch.Error(), http.StatusBadRequest)
		return
	}
	// Every worker holds its own statevector and scratch buffer.
	workersNeeded := h.pool.NumWorkers()
	if len(req.Points) < workersNeeded {
		workersNeeded = len(req.Points)
	}
	if err := vqe.CheckMemory(req.NumQubits, func() (uint64, error) {
		available, err := h.memory()
		return available / uint64(workersNeeded), err
	}); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	engine, err := h.engineFor(req.FusionWidth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	results := h.pool.EvaluateBatch(engine, circ, observable, req.Points, nil)

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	h.log.Debug().
		Int("points", len(results)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch evaluated")

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"parameters":   circ.Parameters(),
		"results":      results,
		"failed":       failed,
		"fusion_width": engine.FusionWidth(),
	}))
}

// HandleOptimize handles POST /api/quantum/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Molecule == "" {
		http.Error(w, "molecule is required", http.StatusBadRequest)
		return
	}
	if req.MaxIterations < 0 {
		http.Error(w, "max_iterations must not be negative", http.StatusBadRequest)
		return
	}

	report, err := h.driver.WithMaxIterations(req.MaxIterations).Run(r.Context(), req.Molecule, nil)
	if err != nil {
		h.log.Error().Err(err).Str("molecule", req.Molecule).Msg("VQE run failed")
		http.Error(w, err.Error(), runStatus(err))
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(reportData(report)))
}

// HandleGetRun handles GET /api/quantum/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "Run history is disabled", http.StatusNotFound)
		return
	}

	run, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to load run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(run))
}

// HandleListRuns handles GET /api/quantum/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeJSON(w, http.StatusOK, envelope([]*runs.Run{}))
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.repo.List(r.Context(), r.URL.Query().Get("molecule"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}

	h.writeJSON(w, http.StatusOK, envelope(list))
}

// HandleListProblems handles GET /api/quantum/problems
func (h *Handler) HandleListProblems(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list problems")
		http.Error(w, "Failed to list problems", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"molecules": names,
		"cache_dir": h.store.Dir(),
	}))
}

// engineFor returns the shared engine unless a different fusion width is
// requested. The shared engine keeps its plan cache across requests.
func (h *Handler) engineFor(width int) (*statevector.Engine, error) {
	if width == 0 || width == h.engine.FusionWidth() {
		return h.engine, nil
	}
	return statevector.NewEngine(statevector.Config{FusionWidth: width}, h.log)
}

func evaluationStatus(err error) int {
	switch {
	case errors.Is(err, statevector.ErrQubitCountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, fusion.ErrFusionWidthExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func runStatus(err error) int {
	switch {
	case errors.Is(err, problems.ErrProblemNotFound):
		return http.StatusNotFound
	case errors.Is(err, problems.ErrInvalidProblem),
		errors.Is(err, problems.ErrUnsupportedVersion):
		return http.StatusBadRequest
	case errors.Is(err, vqe.ErrInsufficientMemory),
		errors.Is(err, fusion.ErrFusionWidthExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func reportData(report *vqe.Report) map[string]interface{} {
	return map[string]interface{}{
		"report":       report,
		"total_energy": report.TotalEnergy(),
		"phase_totals": report.PhaseTotals.Seconds(),
		"wall_time_ms": report.WallTime.Milliseconds(),
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
