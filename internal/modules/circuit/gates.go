package circuit

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
)

// Kind names a gate in the supported gate set.
type Kind string

const (
	KindID       Kind = "id"
	KindX        Kind = "x"
	KindY        Kind = "y"
	KindZ        Kind = "z"
	KindH        Kind = "h"
	KindS        Kind = "s"
	KindSdg      Kind = "sdg"
	KindT        Kind = "t"
	KindTdg      Kind = "tdg"
	KindSX       Kind = "sx"
	KindHS       Kind = "hs"   // H followed by S
	KindSdgH     Kind = "sdgh" // Sdg followed by H
	KindRX       Kind = "rx"
	KindRY       Kind = "ry"
	KindRZ       Kind = "rz"
	KindP        Kind = "p"
	KindU        Kind = "u"
	KindCX       Kind = "cx"
	KindCY       Kind = "cy"
	KindCZ       Kind = "cz"
	KindSwap     Kind = "swap"
	KindRXX      Kind = "rxx"
	KindRYY      Kind = "ryy"
	KindRZZ      Kind = "rzz"
	KindCCX      Kind = "ccx"
	KindPauliRot Kind = "pauli_rot" // exp(-i θ/2 P) over all listed qubits
	KindUnitary  Kind = "unitary"   // explicit constant matrix
)

// variableArity marks kinds that accept any number of qubits.
const variableArity = -1

type kindSpec struct {
	qubits int
	angles int
}

var kindSpecs = map[Kind]kindSpec{
	KindID: {1, 0}, KindX: {1, 0}, KindY: {1, 0}, KindZ: {1, 0},
	KindH: {1, 0}, KindS: {1, 0}, KindSdg: {1, 0}, KindT: {1, 0}, KindTdg: {1, 0},
	KindSX: {1, 0}, KindHS: {1, 0}, KindSdgH: {1, 0},
	KindRX: {1, 1}, KindRY: {1, 1}, KindRZ: {1, 1}, KindP: {1, 1}, KindU: {1, 3},
	KindCX: {2, 0}, KindCY: {2, 0}, KindCZ: {2, 0}, KindSwap: {2, 0},
	KindRXX: {2, 1}, KindRYY: {2, 1}, KindRZZ: {2, 1},
	KindCCX:      {3, 0},
	KindPauliRot: {variableArity, 1},
	KindUnitary:  {variableArity, 0},
}

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)

	matX   = []complex128{0, 1, 1, 0}
	matY   = []complex128{0, -1i, 1i, 0}
	matZ   = []complex128{1, 0, 0, -1}
	matH   = []complex128{invSqrt2, invSqrt2, invSqrt2, -invSqrt2}
	matS   = []complex128{1, 0, 0, 1i}
	matSdg = []complex128{1, 0, 0, -1i}
	matSX  = []complex128{0.5 + 0.5i, 0.5 - 0.5i, 0.5 - 0.5i, 0.5 + 0.5i}
	matHS  = []complex128{invSqrt2, invSqrt2, 1i * invSqrt2, -1i * invSqrt2}
	matSdH = []complex128{invSqrt2, -1i * invSqrt2, invSqrt2, 1i * invSqrt2}
)

// Matrix returns the dense row-major operator of a bound gate. Index bit j
// of the matrix corresponds to g.Qubits[j].
func (g ConcreteGate) Matrix() []complex128 {
	switch g.Kind {
	case KindID:
		return identity(1)
	case KindX:
		return clone(matX)
	case KindY:
		return clone(matY)
	case KindZ:
		return clone(matZ)
	case KindH:
		return clone(matH)
	case KindS:
		return clone(matS)
	case KindSdg:
		return clone(matSdg)
	case KindT:
		return []complex128{1, 0, 0, cmplx.Exp(complex(0, math.Pi/4))}
	case KindTdg:
		return []complex128{1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4))}
	case KindSX:
		return clone(matSX)
	case KindHS:
		return clone(matHS)
	case KindSdgH:
		return clone(matSdH)
	case KindRX:
		c, s := halfAngle(g.Params[0])
		return []complex128{complex(c, 0), complex(0, -s), complex(0, -s), complex(c, 0)}
	case KindRY:
		c, s := halfAngle(g.Params[0])
		return []complex128{complex(c, 0), complex(-s, 0), complex(s, 0), complex(c, 0)}
	case KindRZ:
		return []complex128{
			cmplx.Exp(complex(0, -g.Params[0]/2)), 0,
			0, cmplx.Exp(complex(0, g.Params[0]/2)),
		}
	case KindP:
		return []complex128{1, 0, 0, cmplx.Exp(complex(0, g.Params[0]))}
	case KindU:
		theta, phi, lambda := g.Params[0], g.Params[1], g.Params[2]
		c, s := halfAngle(theta)
		return []complex128{
			complex(c, 0), -cmplx.Exp(complex(0, lambda)) * complex(s, 0),
			cmplx.Exp(complex(0, phi)) * complex(s, 0), cmplx.Exp(complex(0, phi+lambda)) * complex(c, 0),
		}
	case KindCX:
		return controlled(matX)
	case KindCY:
		return controlled(matY)
	case KindCZ:
		return controlled(matZ)
	case KindSwap:
		return []complex128{
			1, 0, 0, 0,
			0, 0, 1, 0,
			0, 1, 0, 0,
			0, 0, 0, 1,
		}
	case KindRXX:
		return pauliRotation("XX", g.Params[0])
	case KindRYY:
		return pauliRotation("YY", g.Params[0])
	case KindRZZ:
		return pauliRotation("ZZ", g.Params[0])
	case KindCCX:
		m := identity(3)
		// |c1 c2 t> with both controls set: swap t=0 and t=1
		m[3*8+3], m[3*8+7], m[7*8+7], m[7*8+3] = 0, 1, 0, 1
		return m
	case KindPauliRot:
		return pauliRotation(reverse(g.Paulis), g.Params[0])
	case KindUnitary:
		return clone(g.Unitary)
	}
	panic(fmt.Sprintf("circuit: no matrix for gate kind %q", g.Kind))
}

// IsDiagonal reports whether the gate's matrix is diagonal in the
// computational basis without building it.
func (g ConcreteGate) IsDiagonal() bool {
	switch g.Kind {
	case KindID, KindZ, KindS, KindSdg, KindT, KindTdg, KindRZ, KindP, KindCZ, KindRZZ:
		return true
	case KindPauliRot:
		for i := 0; i < len(g.Paulis); i++ {
			if g.Paulis[i] != 'Z' {
				return false
			}
		}
		return true
	}
	return false
}

func halfAngle(theta float64) (float64, float64) {
	return math.Cos(theta / 2), math.Sin(theta / 2)
}

// controlled builds a 2-qubit operator with qubit index 0 as control.
func controlled(u []complex128) []complex128 {
	m := make([]complex128, 16)
	m[0*4+0] = 1
	m[2*4+2] = 1
	// control bit set: rows/cols 1 (target 0) and 3 (target 1)
	m[1*4+1] = u[0]
	m[1*4+3] = u[1]
	m[3*4+1] = u[2]
	m[3*4+3] = u[3]
	return m
}

// pauliRotation returns exp(-i θ/2 P) = cos(θ/2) I - i sin(θ/2) P for a
// little-endian label.
func pauliRotation(label string, theta float64) []complex128 {
	s, err := pauli.ParseString(label)
	if err != nil {
		panic(fmt.Sprintf("circuit: invalid rotation label %q: %v", label, err))
	}
	k := len(label)
	dim := 1 << uint(k)
	m := make([]complex128, dim*dim)
	c, sn := math.Cos(theta/2), math.Sin(theta/2)
	for j := 0; j < dim; j++ {
		m[j*dim+j] += complex(c, 0)
		row := uint64(j) ^ s.XMask
		m[int(row)*dim+j] += complex(0, -sn) * s.Phase(uint64(j))
	}
	return m
}

func identity(k int) []complex128 {
	dim := 1 << uint(k)
	m := make([]complex128, dim*dim)
	for i := 0; i < dim; i++ {
		m[i*dim+i] = 1
	}
	return m
}

func clone(m []complex128) []complex128 {
	out := make([]complex128, len(m))
	copy(out, m)
	return out
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
