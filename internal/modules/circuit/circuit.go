// Package circuit models a parametrized ansatz as an immutable gate list and
// binds parameter values into fully numeric circuits for simulation.
package circuit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
)

var (
	// ErrUnboundParameter is returned by Bind when a referenced parameter has no value.
	ErrUnboundParameter = errors.New("unbound parameter")
	// ErrParameterCount is returned by BindVector for a vector of the wrong length.
	ErrParameterCount = errors.New("parameter count mismatch")
	// ErrQubitOutOfRange is returned for qubit indices outside [0, numQubits).
	ErrQubitOutOfRange = errors.New("qubit index out of range")
	// ErrDuplicateQubit is returned when a gate lists the same qubit twice.
	ErrDuplicateQubit = errors.New("duplicate qubit in gate")
	// ErrInvalidGate is returned for unknown kinds or malformed gate records.
	ErrInvalidGate = errors.New("invalid gate")
)

// MaxQubits bounds the register so amplitude indices fit comfortably in an int.
const MaxQubits = 30

// Angle is a rotation angle: Const when Param is empty, otherwise
// Const + Coeff*value(Param).
type Angle struct {
	Param string  `json:"param,omitempty" yaml:"param,omitempty"`
	Coeff float64 `json:"coeff,omitempty" yaml:"coeff,omitempty"`
	Const float64 `json:"const,omitempty" yaml:"const,omitempty"`
}

// Const is a fixed angle.
func Const(v float64) Angle {
	return Angle{Const: v}
}

// Ref references a parameter with unit coefficient.
func Ref(name string) Angle {
	return Angle{Param: name, Coeff: 1}
}

// Scaled references a parameter scaled by coeff.
func Scaled(name string, coeff float64) Angle {
	return Angle{Param: name, Coeff: coeff}
}

// IsParametrized reports whether the angle needs a bound value.
func (a Angle) IsParametrized() bool {
	return a.Param != ""
}

// Gate is one record of a parametrized circuit.
type Gate struct {
	Kind   Kind    `json:"kind" yaml:"kind"`
	Qubits []int   `json:"qubits" yaml:"qubits"`
	Angles []Angle `json:"angles,omitempty" yaml:"angles,omitempty"`
	// Paulis holds one of X, Y, Z per entry of Qubits for pauli_rot gates.
	Paulis string `json:"paulis,omitempty" yaml:"paulis,omitempty"`
	// Unitary is the row-major matrix of an unitary gate.
	Unitary Matrix `json:"unitary,omitempty" yaml:"-"`
}

// Circuit is an immutable parametrized gate sequence over a fixed register.
type Circuit struct {
	numQubits   int
	gates       []Gate
	params      []string
	fingerprint uint64
}

// New validates gates against numQubits and returns the circuit. The input
// slices are copied.
func New(numQubits int, gates []Gate) (*Circuit, error) {
	if numQubits < 1 || numQubits > MaxQubits {
		return nil, fmt.Errorf("%w: register of %d qubits (allowed 1..%d)", ErrQubitOutOfRange, numQubits, MaxQubits)
	}

	c := &Circuit{
		numQubits: numQubits,
		gates:     make([]Gate, len(gates)),
	}
	seen := make(map[string]bool)

	for i, g := range gates {
		if err := validateGate(numQubits, g); err != nil {
			return nil, fmt.Errorf("gate %d (%s): %w", i, g.Kind, err)
		}
		c.gates[i] = copyGate(g)
		for _, a := range g.Angles {
			if a.IsParametrized() && !seen[a.Param] {
				seen[a.Param] = true
				c.params = append(c.params, a.Param)
			}
		}
	}
	c.fingerprint = fingerprint(numQubits, c.gates)

	return c, nil
}

func validateGate(numQubits int, g Gate) error {
	spec, ok := kindSpecs[g.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidGate, g.Kind)
	}
	if len(g.Qubits) == 0 {
		return fmt.Errorf("%w: no qubits", ErrInvalidGate)
	}
	if spec.qubits != variableArity && len(g.Qubits) != spec.qubits {
		return fmt.Errorf("%w: expects %d qubits, got %d", ErrInvalidGate, spec.qubits, len(g.Qubits))
	}
	if len(g.Angles) != spec.angles {
		return fmt.Errorf("%w: expects %d angles, got %d", ErrInvalidGate, spec.angles, len(g.Angles))
	}

	used := make(map[int]bool, len(g.Qubits))
	for _, q := range g.Qubits {
		if q < 0 || q >= numQubits {
			return fmt.Errorf("%w: qubit %d in register of %d", ErrQubitOutOfRange, q, numQubits)
		}
		if used[q] {
			return fmt.Errorf("%w: qubit %d", ErrDuplicateQubit, q)
		}
		used[q] = true
	}

	for _, a := range g.Angles {
		if math.IsNaN(a.Const) || math.IsInf(a.Const, 0) || math.IsNaN(a.Coeff) || math.IsInf(a.Coeff, 0) {
			return fmt.Errorf("%w: non-finite angle", ErrInvalidGate)
		}
	}

	switch g.Kind {
	case KindPauliRot:
		if len(g.Paulis) != len(g.Qubits) {
			return fmt.Errorf("%w: %d paulis for %d qubits", ErrInvalidGate, len(g.Paulis), len(g.Qubits))
		}
		for i := 0; i < len(g.Paulis); i++ {
			switch g.Paulis[i] {
			case 'X', 'Y', 'Z':
			default:
				return fmt.Errorf("%w: pauli %q", ErrInvalidGate, g.Paulis[i])
			}
		}
	case KindUnitary:
		dim := 1 << uint(len(g.Qubits))
		if len(g.Unitary) != dim*dim {
			return fmt.Errorf("%w: unitary needs %d entries, got %d", ErrInvalidGate, dim*dim, len(g.Unitary))
		}
	}
	return nil
}

func copyGate(g Gate) Gate {
	out := Gate{Kind: g.Kind, Paulis: g.Paulis}
	out.Qubits = append([]int(nil), g.Qubits...)
	if len(g.Angles) > 0 {
		out.Angles = append([]Angle(nil), g.Angles...)
	}
	if len(g.Unitary) > 0 {
		out.Unitary = append([]complex128(nil), g.Unitary...)
	}
	return out
}

// fingerprint hashes the topology: register size, gate kinds, qubits and
// parameter references. Numeric angle values do not contribute.
func fingerprint(numQubits int, gates []Gate) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}

	writeInt(numQubits)
	for _, g := range gates {
		_, _ = h.Write([]byte(g.Kind))
		writeInt(len(g.Qubits))
		for _, q := range g.Qubits {
			writeInt(q)
		}
		_, _ = h.Write([]byte(g.Paulis))
		for _, a := range g.Angles {
			_, _ = h.Write([]byte(a.Param))
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum64()
}

// NumQubits is the register size.
func (c *Circuit) NumQubits() int {
	return c.numQubits
}

// Len is the number of gates.
func (c *Circuit) Len() int {
	return len(c.gates)
}

// Gates returns a copy of the gate records.
func (c *Circuit) Gates() []Gate {
	out := make([]Gate, len(c.gates))
	for i, g := range c.gates {
		out[i] = copyGate(g)
	}
	return out
}

// Parameters lists the referenced parameter names in first-appearance order.
func (c *Circuit) Parameters() []string {
	return append([]string(nil), c.params...)
}

// NumParameters is len(Parameters()).
func (c *Circuit) NumParameters() int {
	return len(c.params)
}

// Fingerprint identifies the circuit topology for plan caching.
func (c *Circuit) Fingerprint() uint64 {
	return c.fingerprint
}

// Bind resolves every angle against values and returns the numeric circuit.
func (c *Circuit) Bind(values map[string]float64) (*Concrete, error) {
	out := &Concrete{
		numQubits:   c.numQubits,
		gates:       make([]ConcreteGate, len(c.gates)),
		fingerprint: c.fingerprint,
	}

	for i, g := range c.gates {
		cg := ConcreteGate{
			Kind:    g.Kind,
			Qubits:  g.Qubits,
			Paulis:  g.Paulis,
			Unitary: g.Unitary,
		}
		if len(g.Angles) > 0 {
			cg.Params = make([]float64, len(g.Angles))
			for j, a := range g.Angles {
				if !a.IsParametrized() {
					cg.Params[j] = a.Const
					continue
				}
				v, ok := values[a.Param]
				if !ok {
					return nil, fmt.Errorf("%w: %q", ErrUnboundParameter, a.Param)
				}
				cg.Params[j] = a.Const + a.Coeff*v
			}
		}
		out.gates[i] = cg
	}

	return out, nil
}

// BindVector binds values given in Parameters() order.
func (c *Circuit) BindVector(values []float64) (*Concrete, error) {
	if len(values) != len(c.params) {
		return nil, fmt.Errorf("%w: got %d values for %d parameters", ErrParameterCount, len(values), len(c.params))
	}
	m := make(map[string]float64, len(values))
	for i, name := range c.params {
		m[name] = values[i]
	}
	return c.Bind(m)
}

// ConcreteGate is a gate with every angle resolved. Slices are shared with
// the source circuit and must be treated as read-only.
type ConcreteGate struct {
	Kind    Kind
	Qubits  []int
	Params  []float64
	Paulis  string
	Unitary []complex128
}

// Concrete is an immutable, fully numeric gate sequence.
type Concrete struct {
	numQubits   int
	gates       []ConcreteGate
	fingerprint uint64
}

// NumQubits is the register size.
func (c *Concrete) NumQubits() int {
	return c.numQubits
}

// Len is the number of gates.
func (c *Concrete) Len() int {
	return len(c.gates)
}

// Gate returns gate i.
func (c *Concrete) Gate(i int) ConcreteGate {
	return c.gates[i]
}

// Fingerprint is the topology fingerprint inherited from the source circuit.
func (c *Concrete) Fingerprint() uint64 {
	return c.fingerprint
}
