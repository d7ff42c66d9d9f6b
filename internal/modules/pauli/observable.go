// Package pauli provides the immutable weighted Pauli-string sum consumed by
// the statevector engine.
//
// Labels are little-endian: the last character of a label acts on qubit 0,
// matching the ordering of statevector amplitude indices.
package pauli

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
)

// MaxQubits bounds label length so that X/Z masks fit in a uint64.
const MaxQubits = 63

var (
	// ErrInconsistentQubitCount is returned when labels differ in length.
	ErrInconsistentQubitCount = errors.New("inconsistent qubit count")
	// ErrInvalidLabel is returned for characters outside IXYZ or bad lengths.
	ErrInvalidLabel = errors.New("invalid pauli label")
	// ErrNonFiniteCoefficient is returned for NaN or infinite coefficients.
	ErrNonFiniteCoefficient = errors.New("non-finite coefficient")
	// ErrEmptyObservable is returned when no terms are supplied.
	ErrEmptyObservable = errors.New("observable has no terms")
)

// Term is one weighted Pauli string.
type Term struct {
	Label string  `json:"label" yaml:"label" msgpack:"label"`
	Coeff float64 `json:"coeff" yaml:"coeff" msgpack:"coeff"`
}

// String is the operator applied to one basis state by a Term: it flips the
// bits in XMask and contributes a sign for every set bit shared with ZMask.
type String struct {
	XMask uint64
	ZMask uint64
	NumY  int
}

// Observable is an immutable weighted sum of Pauli strings.
type Observable struct {
	numQubits int
	terms     []Term
	strings   []String
}

// New builds an observable from terms in insertion order. Repeated labels
// are merged into the first occurrence.
func New(terms []Term) (*Observable, error) {
	if len(terms) == 0 {
		return nil, ErrEmptyObservable
	}

	numQubits := len(terms[0].Label)
	index := make(map[string]int, len(terms))
	o := &Observable{numQubits: numQubits}

	for _, t := range terms {
		if len(t.Label) != numQubits {
			return nil, fmt.Errorf("%w: label %q has %d qubits, expected %d",
				ErrInconsistentQubitCount, t.Label, len(t.Label), numQubits)
		}
		if math.IsNaN(t.Coeff) || math.IsInf(t.Coeff, 0) {
			return nil, fmt.Errorf("%w: label %q", ErrNonFiniteCoefficient, t.Label)
		}
		if i, ok := index[t.Label]; ok {
			o.terms[i].Coeff += t.Coeff
			continue
		}
		s, err := ParseString(t.Label)
		if err != nil {
			return nil, err
		}
		index[t.Label] = len(o.terms)
		o.terms = append(o.terms, t)
		o.strings = append(o.strings, s)
	}

	return o, nil
}

// FromMap builds an observable from a label→coefficient map. Go maps carry no
// insertion order, so terms are ordered by label.
func FromMap(m map[string]float64) (*Observable, error) {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	terms := make([]Term, len(labels))
	for i, label := range labels {
		terms[i] = Term{Label: label, Coeff: m[label]}
	}
	return New(terms)
}

// ParseString converts a label into its bit-mask form.
func ParseString(label string) (String, error) {
	n := len(label)
	if n == 0 || n > MaxQubits {
		return String{}, fmt.Errorf("%w: %q must have 1..%d characters", ErrInvalidLabel, label, MaxQubits)
	}

	var s String
	for i := 0; i < n; i++ {
		bit := uint64(1) << uint(n-1-i)
		switch label[i] {
		case 'I':
		case 'X':
			s.XMask |= bit
		case 'Z':
			s.ZMask |= bit
		case 'Y':
			s.XMask |= bit
			s.ZMask |= bit
			s.NumY++
		default:
			return String{}, fmt.Errorf("%w: %q has character %q", ErrInvalidLabel, label, label[i])
		}
	}
	return s, nil
}

// Label renders masks back into a little-endian label of n qubits.
func Label(s String, n int) string {
	out := make([]byte, n)
	for q := 0; q < n; q++ {
		bit := uint64(1) << uint(q)
		c := byte('I')
		switch {
		case s.XMask&bit != 0 && s.ZMask&bit != 0:
			c = 'Y'
		case s.XMask&bit != 0:
			c = 'X'
		case s.ZMask&bit != 0:
			c = 'Z'
		}
		out[n-1-q] = c
	}
	return string(out)
}

// Phase returns the factor picked up by basis state i under s, so that
// P|i> = Phase(i) |i ^ XMask>.
func (s String) Phase(i uint64) complex128 {
	var phase complex128
	switch s.NumY & 3 {
	case 0:
		phase = 1
	case 1:
		phase = 1i
	case 2:
		phase = -1
	case 3:
		phase = -1i
	}
	if bits.OnesCount64(i&s.ZMask)&1 == 1 {
		phase = -phase
	}
	return phase
}

// IsDiagonal reports whether the string contains only I and Z.
func (s String) IsDiagonal() bool {
	return s.XMask == 0
}

// Weight is the number of non-identity positions.
func (s String) Weight() int {
	return bits.OnesCount64(s.XMask | s.ZMask)
}

// NumQubits is the shared label length.
func (o *Observable) NumQubits() int {
	return o.numQubits
}

// Len is the number of distinct terms.
func (o *Observable) Len() int {
	return len(o.terms)
}

// Terms returns a copy of the terms in insertion order.
func (o *Observable) Terms() []Term {
	out := make([]Term, len(o.terms))
	copy(out, o.terms)
	return out
}

// Each calls fn for every term in insertion order with its parsed masks.
func (o *Observable) Each(fn func(t Term, s String)) {
	for i, t := range o.terms {
		fn(t, o.strings[i])
	}
}

// String implements fmt.Stringer.
func (o *Observable) String() string {
	return fmt.Sprintf("Observable(%d qubits, %d terms)", o.numQubits, len(o.terms))
}
