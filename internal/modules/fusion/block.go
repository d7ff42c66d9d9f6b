package fusion

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

// Block is a dense operator on a small sorted qubit support. Bit j of a
// matrix index corresponds to Qubits[j].
type Block struct {
	Qubits   []int
	Matrix   *mat.CDense
	Diagonal bool
	Gates    []int
}

// Width is the number of qubits the block acts on.
func (b Block) Width() int {
	return len(b.Qubits)
}

// Data returns the row-major backing slice of the block matrix.
func (b Block) Data() []complex128 {
	return b.Matrix.RawCMatrix().Data
}

// Materialize multiplies the bound gate matrices of each planned group.
// Later gates multiply on the left.
func (c *Compiler) Materialize(p *Plan, cc *circuit.Concrete) ([]Block, error) {
	if p.fingerprint != cc.Fingerprint() || p.numGates != cc.Len() || p.numQubits != cc.NumQubits() {
		return nil, fmt.Errorf("%w: plan %016x, circuit %016x", ErrPlanMismatch, p.fingerprint, cc.Fingerprint())
	}

	blocks := make([]Block, len(p.groups))
	for i, g := range p.groups {
		blocks[i] = materializeGroup(g, cc)
	}
	return blocks, nil
}

// Compile plans and materializes in one call.
func (c *Compiler) Compile(cc *circuit.Concrete) ([]Block, timing.PhaseTimes, error) {
	plan, phases, err := c.Plan(cc)
	if err != nil {
		return nil, phases, err
	}
	sw := timing.Start(phases, timing.PhaseMaterialize)
	blocks, err := c.Materialize(plan, cc)
	sw.Stop()
	return blocks, phases, err
}

func materializeGroup(g Group, cc *circuit.Concrete) Block {
	k := len(g.Qubits)
	dim := 1 << uint(k)

	pos := make(map[int]int, k)
	for j, q := range g.Qubits {
		pos[q] = j
	}

	acc := identityDense(dim)
	tmp := mat.NewCDense(dim, dim, nil)
	diagonal := true

	for _, gi := range g.Gates {
		gate := cc.Gate(gi)
		if !gate.IsDiagonal() {
			diagonal = false
		}
		local := make([]int, len(gate.Qubits))
		for j, q := range gate.Qubits {
			local[j] = pos[q]
		}
		embedded := embed(gate.Matrix(), local, k)
		cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1,
			embedded.RawCMatrix(), acc.RawCMatrix(), 0, tmp.RawCMatrix())
		acc, tmp = tmp, acc
	}

	return Block{
		Qubits:   append([]int(nil), g.Qubits...),
		Matrix:   acc,
		Diagonal: diagonal,
		Gates:    append([]int(nil), g.Gates...),
	}
}

// embed lifts a gate matrix whose bit j acts on local position pos[j] into
// the full 2^k space of the group.
func embed(m []complex128, pos []int, k int) *mat.CDense {
	dim := 1 << uint(k)
	gdim := 1 << uint(len(pos))

	var gateMask int
	for _, p := range pos {
		gateMask |= 1 << uint(p)
	}

	out := mat.NewCDense(dim, dim, nil)
	for col := 0; col < dim; col++ {
		rest := col &^ gateMask
		gc := extract(col, pos)
		for gr := 0; gr < gdim; gr++ {
			v := m[gr*gdim+gc]
			if v == 0 {
				continue
			}
			out.Set(rest|deposit(gr, pos), col, v)
		}
	}
	return out
}

func extract(x int, pos []int) int {
	var r int
	for j, p := range pos {
		r |= ((x >> uint(p)) & 1) << uint(j)
	}
	return r
}

func deposit(x int, pos []int) int {
	var r int
	for j, p := range pos {
		r |= ((x >> uint(j)) & 1) << uint(p)
	}
	return r
}

func identityDense(dim int) *mat.CDense {
	m := mat.NewCDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Unfuse multiplies a block sequence out into the full 2^n operator.
func Unfuse(blocks []Block, numQubits int) *mat.CDense {
	dim := 1 << uint(numQubits)
	acc := identityDense(dim)
	tmp := mat.NewCDense(dim, dim, nil)
	for _, b := range blocks {
		embedded := embed(b.Data(), b.Qubits, numQubits)
		cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1,
			embedded.RawCMatrix(), acc.RawCMatrix(), 0, tmp.RawCMatrix())
		acc, tmp = tmp, acc
	}
	return acc
}
