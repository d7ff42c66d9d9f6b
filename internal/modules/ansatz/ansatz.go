// Package ansatz builds parameterized circuits for the variational solver:
// the Hartree-Fock reference state and the unitary coupled-cluster singles
// and doubles ansatz on top of it, both in Jordan-Wigner qubit order.
package ansatz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/encoding"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
)

// ErrInvalidParticles is returned when the particle counts do not fit the
// spatial orbitals.
var ErrInvalidParticles = errors.New("invalid particle numbers")

// Particles is the number of alpha and beta electrons.
type Particles [2]int

// Alpha is the number of spin-up electrons.
func (p Particles) Alpha() int { return p[0] }

// Beta is the number of spin-down electrons.
func (p Particles) Beta() int { return p[1] }

// Excitation moves electrons from Occupied to Virtual spin orbitals.
type Excitation struct {
	Occupied []int
	Virtual  []int
}

// Label is the fermionic label of the excitation operator.
func (e Excitation) Label() string {
	parts := make([]string, 0, len(e.Occupied)+len(e.Virtual))
	for _, v := range e.Virtual {
		parts = append(parts, fmt.Sprintf("+_%d", v))
	}
	for _, o := range e.Occupied {
		parts = append(parts, fmt.Sprintf("-_%d", o))
	}
	return strings.Join(parts, " ")
}

func validate(numSpatial int, particles Particles) error {
	if numSpatial < 1 || 2*numSpatial > circuit.MaxQubits {
		return fmt.Errorf("%w: %d spatial orbitals", ErrInvalidParticles, numSpatial)
	}
	for _, n := range particles {
		if n < 0 || n > numSpatial {
			return fmt.Errorf("%w: %v in %d spatial orbitals", ErrInvalidParticles, particles, numSpatial)
		}
	}
	return nil
}

// HartreeFockGates occupies the lowest alpha orbitals (qubits 0..nα-1) and
// the lowest beta orbitals (qubits nSpatial..nSpatial+nβ-1).
func HartreeFockGates(numSpatial int, particles Particles) ([]circuit.Gate, error) {
	if err := validate(numSpatial, particles); err != nil {
		return nil, err
	}
	gates := make([]circuit.Gate, 0, particles.Alpha()+particles.Beta())
	for i := 0; i < particles.Alpha(); i++ {
		gates = append(gates, circuit.X(i))
	}
	for i := 0; i < particles.Beta(); i++ {
		gates = append(gates, circuit.X(numSpatial+i))
	}
	return gates, nil
}

// HartreeFock is the reference-state circuit on 2·numSpatial qubits.
func HartreeFock(numSpatial int, particles Particles) (*circuit.Circuit, error) {
	gates, err := HartreeFockGates(numSpatial, particles)
	if err != nil {
		return nil, err
	}
	return circuit.New(2*numSpatial, gates)
}

// Excitations lists spin-preserving singles followed by doubles. Doubles are
// drawn from pairs of singles that share no orbital, so alpha-alpha,
// alpha-beta and beta-beta excitations appear in that order.
func Excitations(numSpatial int, particles Particles) ([]Excitation, error) {
	if err := validate(numSpatial, particles); err != nil {
		return nil, err
	}

	var singles []Excitation
	for spin, n := range particles {
		offset := spin * numSpatial
		for occ := 0; occ < n; occ++ {
			for virt := n; virt < numSpatial; virt++ {
				singles = append(singles, Excitation{
					Occupied: []int{offset + occ},
					Virtual:  []int{offset + virt},
				})
			}
		}
	}

	out := append([]Excitation(nil), singles...)
	seen := make(map[string]bool)
	for i := 0; i < len(singles); i++ {
		for j := i + 1; j < len(singles); j++ {
			a, b := singles[i], singles[j]
			if a.Occupied[0] == b.Occupied[0] || a.Virtual[0] == b.Virtual[0] {
				continue
			}
			occ := []int{a.Occupied[0], b.Occupied[0]}
			virt := []int{a.Virtual[0], b.Virtual[0]}
			sort.Ints(occ)
			sort.Ints(virt)
			key := fmt.Sprint(occ, virt)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Excitation{Occupied: occ, Virtual: virt})
		}
	}
	return out, nil
}

// ParameterName is the name of the k-th excitation amplitude.
func ParameterName(k int) string {
	return fmt.Sprintf("t[%d]", k)
}

// UCCSD builds the Hartree-Fock state followed by one exp(θ_k (T_k - T_k†))
// factor per excitation. Each factor is expanded into Pauli evolutions of its
// Jordan-Wigner image, in the order the mapper produces them, and every
// evolution is lowered to one- and two-qubit gates so the circuit fuses at
// any width from 2 up.
func UCCSD(numSpatial int, particles Particles) (*circuit.Circuit, error) {
	gates, err := HartreeFockGates(numSpatial, particles)
	if err != nil {
		return nil, err
	}
	excitations, err := Excitations(numSpatial, particles)
	if err != nil {
		return nil, err
	}

	numQubits := 2 * numSpatial
	for k, exc := range excitations {
		terms, err := Generator(exc, numQubits)
		if err != nil {
			return nil, fmt.Errorf("excitation %d: %w", k, err)
		}
		for _, term := range terms {
			evolution, ok := PauliEvolution(term.Label, circuit.Scaled(ParameterName(k), 2*term.Coeff))
			if ok {
				gates = append(gates, evolution...)
			}
		}
	}
	return circuit.New(numQubits, gates)
}

// Generator is the hermitian Pauli sum G = i(T - T†) of an excitation, so
// that exp(θ(T - T†)) = exp(-iθG).
func Generator(exc Excitation, numQubits int) ([]pauli.Term, error) {
	m, err := encoding.NewMapper(numQubits)
	if err != nil {
		return nil, err
	}
	label := exc.Label()
	adj, err := encoding.Adjoint(label)
	if err != nil {
		return nil, err
	}
	if err := m.Add(label, 1i); err != nil {
		return nil, err
	}
	if err := m.Add(adj, -1i); err != nil {
		return nil, err
	}
	return m.Terms()
}

// PauliEvolution returns exp(-i angle/2 P) for a little-endian label as a
// gate sequence: a basis change of every non-identity qubit into Z, a CX
// parity ladder, RZ(angle) on the last qubit of the ladder, then the ladder
// and basis change undone. An all-identity label is a global phase and
// yields ok == false.
func PauliEvolution(label string, angle circuit.Angle) ([]circuit.Gate, bool) {
	n := len(label)
	var qubits []int
	var paulis []byte
	for q := 0; q < n; q++ {
		c := label[n-1-q]
		if c == 'I' {
			continue
		}
		qubits = append(qubits, q)
		paulis = append(paulis, c)
	}
	if len(qubits) == 0 {
		return nil, false
	}

	gates := make([]circuit.Gate, 0, 4*len(qubits)+1)
	for j, q := range qubits {
		switch paulis[j] {
		case 'X':
			gates = append(gates, circuit.H(q))
		case 'Y':
			gates = append(gates, circuit.SdgH(q))
		}
	}
	for j := 0; j+1 < len(qubits); j++ {
		gates = append(gates, circuit.CX(qubits[j], qubits[j+1]))
	}
	gates = append(gates, circuit.RZ(qubits[len(qubits)-1], angle))
	for j := len(qubits) - 2; j >= 0; j-- {
		gates = append(gates, circuit.CX(qubits[j], qubits[j+1]))
	}
	for j, q := range qubits {
		switch paulis[j] {
		case 'X':
			gates = append(gates, circuit.H(q))
		case 'Y':
			gates = append(gates, circuit.HS(q))
		}
	}
	return gates, true
}
