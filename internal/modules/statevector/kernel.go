package statevector

import (
	"sort"

	"gonum.org/v1/gonum/cmplxs"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/fusion"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
)

// ApplyBlocks applies fused blocks to state in order.
func ApplyBlocks(state []complex128, blocks []fusion.Block) {
	for _, b := range blocks {
		apply(state, b.Data(), b.Qubits, b.Diagonal)
	}
}

// ApplyGates applies the gates of c one at a time, without fusion.
func ApplyGates(state []complex128, c *circuit.Concrete) {
	for i := 0; i < c.Len(); i++ {
		g := c.Gate(i)
		apply(state, g.Matrix(), g.Qubits, g.IsDiagonal())
	}
}

// apply multiplies a 2^k matrix into state. Bit j of a matrix index selects
// qubits[j]; qubits need not be sorted.
func apply(state []complex128, m []complex128, qubits []int, diagonal bool) {
	k := len(qubits)
	dim := 1 << uint(k)

	offsets := make([]int, dim)
	for j := 0; j < dim; j++ {
		for b, q := range qubits {
			if j>>uint(b)&1 == 1 {
				offsets[j] |= 1 << uint(q)
			}
		}
	}

	sorted := append([]int(nil), qubits...)
	sort.Ints(sorted)
	groups := len(state) >> uint(k)

	if diagonal {
		diag := make([]complex128, dim)
		for j := range diag {
			diag[j] = m[j*dim+j]
		}
		for t := 0; t < groups; t++ {
			base := insertZeros(t, sorted)
			for j, off := range offsets {
				state[base|off] *= diag[j]
			}
		}
		return
	}

	in := make([]complex128, dim)
	for t := 0; t < groups; t++ {
		base := insertZeros(t, sorted)
		for j, off := range offsets {
			in[j] = state[base|off]
		}
		for r, off := range offsets {
			row := m[r*dim : (r+1)*dim]
			var acc complex128
			for c, v := range row {
				acc += v * in[c]
			}
			state[base|off] = acc
		}
	}
}

// insertZeros spreads x over the bit positions not in sorted.
func insertZeros(x int, sorted []int) int {
	for _, q := range sorted {
		low := x & (1<<uint(q) - 1)
		x = (x>>uint(q))<<uint(q+1) | low
	}
	return x
}

// Expectation returns Σ coeff·Re<ψ|P|ψ>. Each Pauli string is applied to a
// scratch copy of the state; ψ is not renormalised.
func Expectation(state []complex128, o *pauli.Observable) float64 {
	scratch := make([]complex128, len(state))
	var energy float64
	o.Each(func(t pauli.Term, s pauli.String) {
		applyPauli(scratch, state, s)
		energy += t.Coeff * real(cmplxs.Dot(state, scratch))
	})
	return energy
}

func applyPauli(dst, src []complex128, s pauli.String) {
	for i, amp := range src {
		if amp == 0 {
			dst[uint64(i)^s.XMask] = 0
			continue
		}
		dst[uint64(i)^s.XMask] = s.Phase(uint64(i)) * amp
	}
}
