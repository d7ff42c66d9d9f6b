package testing

import (
	"embed"
	"os"
	"path/filepath"
	"testing"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

// HartreeFockChain3 is the energy of the chain3 fixture at the all-zero
// parameter point: two orbital energies of -1 plus one on-site repulsion.
const HartreeFockChain3 = -1.6

// HartreeFockH2 is the energy of the H2 fixture at the all-zero parameter
// point, i.e. of the Hartree-Fock reference state.
const HartreeFockH2 = -1.836967991202985

// ProblemFixture returns the raw YAML of a bundled problem: H2 (four qubits,
// precomputed Pauli Hamiltonian), toy (fermionic number operators) or chain3
// (six qubits, a three-orbital Hubbard-like chain with hopping).
func ProblemFixture(name string) ([]byte, error) {
	return fixtures.ReadFile("fixtures/" + name + ".yaml")
}

// NewProblemCache writes the named fixtures into a fresh cache directory and
// returns its path.
func NewProblemCache(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	WriteProblems(t, dir, names...)
	return dir
}

// WriteProblems copies the named fixtures into dir.
func WriteProblems(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create cache directory: %v", err)
	}
	for _, name := range names {
		data, err := ProblemFixture(name)
		if err != nil {
			t.Fatalf("Unknown problem fixture %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644); err != nil {
			t.Fatalf("Failed to write problem fixture %s: %v", name, err)
		}
	}
}
