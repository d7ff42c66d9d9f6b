// Package encoding maps fermionic operators onto qubit Pauli sums with the
// Jordan-Wigner transformation.
package encoding

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
)

var (
	// ErrInvalidFermionLabel is returned for labels that are not a
	// space-separated list of "+_i" / "-_i" operators.
	ErrInvalidFermionLabel = errors.New("invalid fermionic label")
	// ErrNonHermitian is returned when the mapped operator keeps an
	// imaginary coefficient.
	ErrNonHermitian = errors.New("mapped operator is not hermitian")
	// ErrModeOutOfRange is returned for mode indices outside the register.
	ErrModeOutOfRange = errors.New("fermionic mode out of range")
)

const (
	// HermitianTolerance bounds the imaginary residue of a mapped coefficient.
	HermitianTolerance = 1e-10
	// ZeroTolerance drops mapped terms whose magnitude cancels out.
	ZeroTolerance = 1e-12
)

// Term is one weighted product of creation/annihilation operators, such as
// {"+_0 -_1", 0.5}. An empty label is the identity.
type Term struct {
	Label string  `json:"label" yaml:"label" msgpack:"label"`
	Coeff float64 `json:"coeff" yaml:"coeff" msgpack:"coeff"`
}

// Op is a single ladder operator.
type Op struct {
	Create bool
	Mode   int
}

// String renders the operator in label form.
func (o Op) String() string {
	if o.Create {
		return "+_" + strconv.Itoa(o.Mode)
	}
	return "-_" + strconv.Itoa(o.Mode)
}

// ParseLabel splits a label into operators in application order (rightmost
// acts first).
func ParseLabel(label string) ([]Op, error) {
	fields := strings.Fields(label)
	ops := make([]Op, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || f[1] != '_' || (f[0] != '+' && f[0] != '-') {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFermionLabel, f)
		}
		mode, err := strconv.Atoi(f[2:])
		if err != nil || mode < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFermionLabel, f)
		}
		ops = append(ops, Op{Create: f[0] == '+', Mode: mode})
	}
	return ops, nil
}

// FormatLabel is the inverse of ParseLabel.
func FormatLabel(ops []Op) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}

// Adjoint returns the label of the hermitian conjugate.
func Adjoint(label string) (string, error) {
	ops, err := ParseLabel(label)
	if err != nil {
		return "", err
	}
	adj := make([]Op, len(ops))
	for i, o := range ops {
		adj[len(ops)-1-i] = Op{Create: !o.Create, Mode: o.Mode}
	}
	return FormatLabel(adj), nil
}

// NumModes is one past the highest mode index used by terms.
func NumModes(terms []Term) (int, error) {
	n := 0
	for _, t := range terms {
		ops, err := ParseLabel(t.Label)
		if err != nil {
			return 0, err
		}
		for _, o := range ops {
			if o.Mode+1 > n {
				n = o.Mode + 1
			}
		}
	}
	return n, nil
}

// xz is X^x Z^z over the register, X factors to the left.
type xz struct {
	x, z uint64
}

// Mapper accumulates Jordan-Wigner images of fermionic products.
type Mapper struct {
	numModes int
	order    []xz
	coeffs   map[xz]complex128
}

// NewMapper creates a mapper over numModes fermionic modes.
func NewMapper(numModes int) (*Mapper, error) {
	if numModes < 1 || numModes > pauli.MaxQubits {
		return nil, fmt.Errorf("%w: %d modes", ErrModeOutOfRange, numModes)
	}
	return &Mapper{
		numModes: numModes,
		coeffs:   make(map[xz]complex128),
	}, nil
}

// Add maps coeff times the operator product in label and adds it to the sum.
//
// a†_j = (X_j - iY_j)/2 · Z_{<j} and a_j = (X_j + iY_j)/2 · Z_{<j}; with
// Y = iXZ both become (X_j ± X_jZ_j)/2 · Z_{<j}.
func (m *Mapper) Add(label string, coeff complex128) error {
	ops, err := ParseLabel(label)
	if err != nil {
		return err
	}

	acc := map[xz]complex128{{}: coeff}
	// Multiply right to left so the rightmost operator acts first.
	for i := len(ops) - 1; i >= 0; i-- {
		o := ops[i]
		if o.Mode >= m.numModes {
			return fmt.Errorf("%w: mode %d, register has %d", ErrModeOutOfRange, o.Mode, m.numModes)
		}
		bit := uint64(1) << uint(o.Mode)
		lower := bit - 1
		sign := complex(-0.5, 0)
		if o.Create {
			sign = 0.5
		}
		factors := [2]struct {
			p xz
			c complex128
		}{
			{xz{x: bit, z: lower}, 0.5},
			{xz{x: bit, z: lower | bit}, sign},
		}

		next := make(map[xz]complex128, 2*len(acc))
		for p, c := range acc {
			for _, f := range factors {
				prod, s := multiply(f.p, p)
				next[prod] += s * f.c * c
			}
		}
		acc = next
	}

	// Keep first-seen order for deterministic output.
	for _, p := range sortedKeys(acc) {
		if _, ok := m.coeffs[p]; !ok {
			m.order = append(m.order, p)
		}
		m.coeffs[p] += acc[p]
	}
	return nil
}

// Terms converts the accumulated sum into real-weighted Pauli terms.
func (m *Mapper) Terms() ([]pauli.Term, error) {
	out := make([]pauli.Term, 0, len(m.order))
	for _, p := range m.order {
		c := m.coeffs[p] * minusIPow(bits.OnesCount64(p.x&p.z))
		if math.Abs(real(c)) < ZeroTolerance && math.Abs(imag(c)) < ZeroTolerance {
			continue
		}
		if math.Abs(imag(c)) > HermitianTolerance {
			return nil, fmt.Errorf("%w: imaginary part %g on %s", ErrNonHermitian, imag(c), m.label(p))
		}
		out = append(out, pauli.Term{Label: m.label(p), Coeff: real(c)})
	}
	return out, nil
}

// Observable is Terms as a pauli.Observable. An operator that cancels
// entirely maps to zero times the identity.
func (m *Mapper) Observable() (*pauli.Observable, error) {
	terms, err := m.Terms()
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		terms = []pauli.Term{{Label: strings.Repeat("I", m.numModes), Coeff: 0}}
	}
	return pauli.New(terms)
}

func (m *Mapper) label(p xz) string {
	x, z := p.x, p.z
	return pauli.Label(pauli.String{XMask: x, ZMask: z, NumY: bits.OnesCount64(x & z)}, m.numModes)
}

// JordanWigner maps a real-weighted fermionic operator on numModes modes.
func JordanWigner(terms []Term, numModes int) (*pauli.Observable, error) {
	m, err := NewMapper(numModes)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		if err := m.Add(t.Label, complex(t.Coeff, 0)); err != nil {
			return nil, err
		}
	}
	return m.Observable()
}

// multiply returns a·b as a sign and a canonical X^x Z^z product.
func multiply(a, b xz) (xz, complex128) {
	sign := complex128(1)
	if bits.OnesCount64(a.z&b.x)&1 == 1 {
		sign = -1
	}
	return xz{x: a.x ^ b.x, z: a.z ^ b.z}, sign
}

// minusIPow returns (-i)^k, the factor turning X^x Z^z into a Pauli label.
func minusIPow(k int) complex128 {
	switch k & 3 {
	case 0:
		return 1
	case 1:
		return -1i
	case 2:
		return -1
	default:
		return 1i
	}
}

func sortedKeys(m map[xz]complex128) []xz {
	keys := make([]xz, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].x != keys[j].x {
			return keys[i].x < keys[j].x
		}
		return keys[i].z < keys[j].z
	})
	return keys
}
