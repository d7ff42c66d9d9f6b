package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quantumhandlers "github.com/best-seungwoo/MOSQ-ICCD/internal/modules/quantum/handlers"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/runs"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/vqe"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/scheduler"
	testingpkg "github.com/best-seungwoo/MOSQ-ICCD/internal/testing"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	dir := testingpkg.NewProblemCache(t, "H2")
	db, _ := testingpkg.NewTestDB(t, "runs")
	repo := runs.NewRepository(db.Conn())

	store := problems.NewStore(dir, log)
	driver := vqe.NewDriver(store, repo, vqe.Config{FusionWidth: 5}, log)
	engine, err := statevector.NewEngine(statevector.DefaultConfig(), log)
	require.NoError(t, err)

	sched := scheduler.New(log)
	require.NoError(t, sched.AddJob("@hourly", scheduler.NewCheckWALCheckpointJob(db)))

	return New(Config{
		Log:       log,
		Port:      0,
		DevMode:   true,
		Quantum:   quantumhandlers.NewHandler(driver, store, repo, engine, log),
		RunsDB:    db,
		Scheduler: sched,
	})
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestSystemStatus(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/system/status", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["runs_db"])
	assert.Contains(t, body, "cpu_percent")
	assert.Contains(t, body, "goroutines")

	jobs := body["jobs"].([]interface{})
	require.Len(t, jobs, 1)
	assert.Equal(t, "check_wal_checkpoint", jobs[0].(map[string]interface{})["name"])
}

func TestQuantumRoutesMountedUnderAPI(t *testing.T) {
	s := setupTestServer(t)

	body := []byte(`{"num_qubits":1,"gates":[{"kind":"x","qubits":[0]}],"observable":[{"label":"Z","coeff":2}]}`)
	req := httptest.NewRequest("POST", "/api/quantum/evaluate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Data struct {
			ExpectationValue float64 `json:"expectation_value"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.InDelta(t, -2.0, response.Data.ExpectationValue, 1e-12)

	req = httptest.NewRequest("GET", "/quantum/problems", nil)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/quantum/evaluate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestNew_WithoutQuantumHandler(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), Port: 8001})

	req := httptest.NewRequest("GET", "/api/quantum/problems", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ":8001", s.server.Addr)
}
