// Package problems loads molecular problem files from the cache directory
// and keeps a msgpack cache of their qubit Hamiltonians.
package problems

import (
	"errors"
	"fmt"
	"math"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/ansatz"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/encoding"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
)

var (
	// ErrProblemNotFound is returned when no problem file exists for a molecule.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrUnsupportedVersion is returned for problem files of another format version.
	ErrUnsupportedVersion = errors.New("unsupported problem file version")
	// ErrInvalidProblem is returned for structurally invalid problem files.
	ErrInvalidProblem = errors.New("invalid problem")
)

// FormatVersion is the problem file version this package reads and writes.
const FormatVersion = 1

// Problem is the content of <cache>/<molecule>.yaml. Exactly one of
// FermionicOp and PauliOp is set; PauliOp labels are little-endian.
type Problem struct {
	Version                int              `yaml:"version" json:"version"`
	Name                   string           `yaml:"name" json:"name"`
	NumSpatialOrbitals     int              `yaml:"num_spatial_orbitals" json:"num_spatial_orbitals"`
	NumParticles           ansatz.Particles `yaml:"num_particles,flow" json:"num_particles"`
	NuclearRepulsionEnergy float64          `yaml:"nuclear_repulsion_energy" json:"nuclear_repulsion_energy"`
	ReferenceEnergy        float64          `yaml:"reference_energy" json:"reference_energy"`
	FermionicOp            []encoding.Term  `yaml:"fermionic_op,omitempty" json:"fermionic_op,omitempty"`
	PauliOp                []pauli.Term     `yaml:"pauli_op,omitempty" json:"pauli_op,omitempty"`
}

// NumQubits is the Jordan-Wigner register size.
func (p *Problem) NumQubits() int {
	return 2 * p.NumSpatialOrbitals
}

// Validate checks the fields a run depends on.
func (p *Problem) Validate() error {
	if p.Version != FormatVersion {
		return fmt.Errorf("%w: %d (want %d)", ErrUnsupportedVersion, p.Version, FormatVersion)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProblem)
	}
	if p.NumSpatialOrbitals < 1 {
		return fmt.Errorf("%w: num_spatial_orbitals must be positive", ErrInvalidProblem)
	}
	for _, n := range p.NumParticles {
		if n < 0 || n > p.NumSpatialOrbitals {
			return fmt.Errorf("%w: num_particles %v exceeds %d orbitals", ErrInvalidProblem, p.NumParticles, p.NumSpatialOrbitals)
		}
	}
	if (len(p.FermionicOp) == 0) == (len(p.PauliOp) == 0) {
		return fmt.Errorf("%w: exactly one of fermionic_op and pauli_op is required", ErrInvalidProblem)
	}
	for _, e := range []float64{p.NuclearRepulsionEnergy, p.ReferenceEnergy} {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return fmt.Errorf("%w: non-finite energy", ErrInvalidProblem)
		}
	}
	return nil
}

// Hamiltonian maps the problem operator onto qubits.
func (p *Problem) Hamiltonian() (*pauli.Observable, error) {
	if len(p.PauliOp) > 0 {
		o, err := pauli.New(p.PauliOp)
		if err != nil {
			return nil, err
		}
		if o.NumQubits() != p.NumQubits() {
			return nil, fmt.Errorf("%w: pauli_op acts on %d qubits, expected %d",
				pauli.ErrInconsistentQubitCount, o.NumQubits(), p.NumQubits())
		}
		return o, nil
	}

	modes, err := encoding.NumModes(p.FermionicOp)
	if err != nil {
		return nil, err
	}
	if modes > p.NumQubits() {
		return nil, fmt.Errorf("%w: fermionic_op uses %d modes, expected at most %d",
			ErrInvalidProblem, modes, p.NumQubits())
	}
	return encoding.JordanWigner(p.FermionicOp, p.NumQubits())
}

// IterationBudget is the optimizer budget for a molecule: ten iterations
// for the small benchmark molecules, one otherwise.
func IterationBudget(molecule string) int {
	switch molecule {
	case "H2", "LiH", "BeH2":
		return 10
	default:
		return 1
	}
}
