package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/best-seungwoo/MOSQ-ICCD/internal/testing"
)

// setupEnv points the configuration at fresh directories holding H2.
func setupEnv(t *testing.T) (cacheDir, dataDir string) {
	t.Helper()
	tmp := t.TempDir()
	cacheDir = filepath.Join(tmp, "cache")
	dataDir = filepath.Join(tmp, "data")
	testingpkg.WriteProblems(t, cacheDir, "H2")

	t.Setenv("MOSQ_CACHE_DIR", cacheDir)
	t.Setenv("MOSQ_DATA_DIR", dataDir)
	t.Setenv("MOSQ_FUSION_WIDTH", "5")
	t.Setenv("LOG_LEVEL", "error")
	return cacheDir, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--pretty=false"))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunCommand_Text(t *testing.T) {
	_, dataDir := setupEnv(t)

	out, err := execute(t, "run", "H2", "--iterations", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "1: -1.83696799"), lines[0])
	assert.Contains(t, out, "num_qubits: 4\n")
	assert.Contains(t, out, "num_parameters: 3\n")
	assert.Contains(t, out, "fuseWidth5: ")
	assert.Contains(t, out, "T_sim: ")
	assert.Regexp(t, `total iteration: [12]\n$`, out)

	assert.FileExists(t, filepath.Join(dataDir, "runs.db"))
}

func TestRunCommand_SixQubitProblemAtNarrowWidth(t *testing.T) {
	cacheDir, _ := setupEnv(t)
	testingpkg.WriteProblems(t, cacheDir, "chain3")

	out, err := execute(t, "run", "chain3", "--fusion-width", "3", "--iterations", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "num_qubits: 6\n")
	assert.Contains(t, out, "num_parameters: 8\n")
	first := strings.SplitN(out, "\n", 2)[0]
	require.True(t, strings.HasPrefix(first, "1: "), first)
	value, err := strconv.ParseFloat(strings.TrimPrefix(first, "1: "), 64)
	require.NoError(t, err)
	assert.InDelta(t, testingpkg.HartreeFockChain3, value, 1e-9)
}

func TestRunCommand_JSON(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "run", "H2", "--iterations", "1", "--format", "json", "--no-history", "--fusion-width", "2")
	require.NoError(t, err)

	var report struct {
		Molecule    string  `json:"molecule"`
		Iterations  int     `json:"iterations"`
		FusionWidth int     `json:"fusion_width"`
		BestValue   float64 `json:"best_value"`
		RunID       string  `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "H2", report.Molecule)
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, 2, report.FusionWidth)
	assert.InDelta(t, testingpkg.HartreeFockH2, report.BestValue, 1e-6)
	assert.Empty(t, report.RunID)
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing molecule argument", []string{"run"}},
		{"unknown molecule", []string{"run", "N2"}},
		{"invalid format", []string{"run", "H2", "--format", "xml"}},
		{"invalid fusion width", []string{"run", "H2", "--fusion-width", "7"}},
		{"negative budget", []string{"run", "H2", "--iterations", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestRunCommand_CacheDirFlag(t *testing.T) {
	cacheDir, _ := setupEnv(t)
	t.Setenv("MOSQ_CACHE_DIR", t.TempDir())

	_, err := execute(t, "run", "H2", "--iterations", "1", "--no-history")
	assert.Error(t, err)

	_, err = execute(t, "run", "H2", "--iterations", "1", "--no-history", "--cache-dir", cacheDir)
	assert.NoError(t, err)
}

func TestListCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "H2\tqubits=4\tbudget=10\n", out)
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["serve"])
	assert.True(t, names["list"])

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("port"))
}
