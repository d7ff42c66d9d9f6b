package statevector

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/fusion"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/pauli"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

func newEngine(t *testing.T, width int) *Engine {
	t.Helper()
	e, err := NewEngine(Config{FusionWidth: width}, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func bind(t *testing.T, n int, gates []circuit.Gate, values ...float64) *circuit.Concrete {
	t.Helper()
	c, err := circuit.New(n, gates)
	require.NoError(t, err)
	cc, err := c.BindVector(values)
	require.NoError(t, err)
	return cc
}

func observable(t *testing.T, m map[string]float64) *pauli.Observable {
	t.Helper()
	o, err := pauli.FromMap(m)
	require.NoError(t, err)
	return o
}

func TestEvaluate_KnownValues(t *testing.T) {
	theta := 0.83

	tests := []struct {
		name     string
		qubits   int
		gates    []circuit.Gate
		obs      map[string]float64
		expected float64
	}{
		{
			name:     "x flips z",
			qubits:   1,
			gates:    []circuit.Gate{circuit.X(0)},
			obs:      map[string]float64{"Z": 1},
			expected: -1,
		},
		{
			name:     "no gates zz",
			qubits:   2,
			gates:    nil,
			obs:      map[string]float64{"ZZ": 1},
			expected: 1,
		},
		{
			name:     "empty circuit measures basis state",
			qubits:   2,
			gates:    nil,
			obs:      map[string]float64{"IZ": 0.5, "ZI": -0.25, "XX": 2, "YI": 3},
			expected: 0.25,
		},
		{
			name:     "little-endian label",
			qubits:   2,
			gates:    []circuit.Gate{circuit.X(0)},
			obs:      map[string]float64{"IZ": 1, "ZI": 10},
			expected: 9,
		},
		{
			name:     "bell state",
			qubits:   2,
			gates:    []circuit.Gate{circuit.H(0), circuit.CX(0, 1)},
			obs:      map[string]float64{"XX": 1, "YY": 1, "ZZ": 1},
			expected: 1,
		},
		{
			name:     "rx against y",
			qubits:   1,
			gates:    []circuit.Gate{circuit.RX(0, circuit.Const(theta))},
			obs:      map[string]float64{"Y": 1},
			expected: -math.Sin(theta),
		},
		{
			name:     "rx against z",
			qubits:   1,
			gates:    []circuit.Gate{circuit.RX(0, circuit.Const(theta))},
			obs:      map[string]float64{"Z": 2},
			expected: 2 * math.Cos(theta),
		},
		{
			name:   "ghz parity",
			qubits: 3,
			gates: []circuit.Gate{
				circuit.H(0), circuit.CX(0, 1), circuit.CX(1, 2),
			},
			obs:      map[string]float64{"XXX": 1, "ZZI": 1, "IIZ": 1},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newEngine(t, 2).Evaluate(bind(t, tt.qubits, tt.gates), observable(t, tt.obs))
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, res.ExpectationValue, 1e-12)
		})
	}
}

func TestEvaluate_QubitCountMismatch(t *testing.T) {
	_, err := newEngine(t, 2).Evaluate(
		bind(t, 2, []circuit.Gate{circuit.H(0)}),
		observable(t, map[string]float64{"Z": 1}),
	)
	assert.ErrorIs(t, err, ErrQubitCountMismatch)
}

func TestEvaluate_FusionWidthExceeded(t *testing.T) {
	_, err := newEngine(t, 2).Evaluate(
		bind(t, 3, []circuit.Gate{circuit.CCX(0, 1, 2)}),
		observable(t, map[string]float64{"ZZZ": 1}),
	)
	assert.ErrorIs(t, err, fusion.ErrFusionWidthExceeded)
}

func TestNewEngine_InvalidWidth(t *testing.T) {
	_, err := NewEngine(Config{FusionWidth: 0}, zerolog.Nop())
	assert.ErrorIs(t, err, fusion.ErrInvalidFusionWidth)
}

func TestEvaluate_TermOrderIndependent(t *testing.T) {
	gates := []circuit.Gate{
		circuit.RY(0, circuit.Ref("a")),
		circuit.RX(1, circuit.Ref("b")),
		circuit.CX(0, 2),
		circuit.RZZ(1, 2, circuit.Ref("a")),
		circuit.H(1),
	}
	cc := bind(t, 3, gates, 0.41, -1.7)

	terms := []pauli.Term{
		{Label: "ZZI", Coeff: -1.0523732},
		{Label: "IXY", Coeff: 0.39793742},
		{Label: "YYZ", Coeff: -0.3979374},
		{Label: "XIX", Coeff: 0.0112801},
		{Label: "IIZ", Coeff: 0.18093119},
	}
	forward, err := pauli.New(terms)
	require.NoError(t, err)

	reversed := make([]pauli.Term, len(terms))
	for i, term := range terms {
		reversed[len(terms)-1-i] = term
	}
	backward, err := pauli.New(reversed)
	require.NoError(t, err)

	e := newEngine(t, 3)
	a, err := e.Evaluate(cc, forward)
	require.NoError(t, err)
	b, err := e.Evaluate(cc, backward)
	require.NoError(t, err)

	assert.InDelta(t, a.ExpectationValue, b.ExpectationValue, 1e-9)
}

func TestRun_FusedMatchesUnfused(t *testing.T) {
	gates := []circuit.Gate{
		circuit.H(0),
		circuit.RY(1, circuit.Ref("a")),
		circuit.CX(0, 1),
		circuit.RZ(2, circuit.Ref("b")),
		circuit.CX(2, 3),
		circuit.CZ(3, 1),
		circuit.RZZ(0, 3, circuit.Ref("a")),
		circuit.Swap(1, 2),
		circuit.U(1, circuit.Ref("a"), circuit.Const(0.2), circuit.Ref("b")),
		circuit.CCX(3, 0, 2),
		circuit.PauliRot([]int{2, 0, 1}, "YXZ", circuit.Ref("b")),
		circuit.SX(3),
		circuit.T(0),
	}
	cc := bind(t, 4, gates, 1.3, -0.6)

	want := ZeroState(4)
	ApplyGates(want, cc)

	for width := 3; width <= fusion.MaxWidth; width++ {
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			got, res, err := newEngine(t, width).Run(cc)
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Blocks, cc.Len())
			for i := range want {
				assert.InDelta(t, 0, cmplx.Abs(want[i]-got[i]), 1e-9, "amplitude %d", i)
			}
		})
	}
}

func TestEvaluate_PlanCache(t *testing.T) {
	c, err := circuit.New(2, []circuit.Gate{
		circuit.RY(0, circuit.Ref("a")),
		circuit.CX(0, 1),
	})
	require.NoError(t, err)
	o := observable(t, map[string]float64{"ZZ": 1, "IZ": 1})
	e := newEngine(t, 2)

	first, err := c.BindVector([]float64{0.1})
	require.NoError(t, err)
	res, err := e.Evaluate(first, o)
	require.NoError(t, err)
	assert.False(t, res.PlanCacheHit)

	second, err := c.BindVector([]float64{math.Pi})
	require.NoError(t, err)
	res, err = e.Evaluate(second, o)
	require.NoError(t, err)
	assert.True(t, res.PlanCacheHit)
	assert.InDelta(t, 0, res.ExpectationValue, 1e-12)
	for k := 1; k <= 2; k++ {
		d, ok := res.PhaseTimes[timing.FuseWidthPhase(k)]
		assert.True(t, ok)
		assert.Zero(t, d)
	}
	assert.Contains(t, res.PhaseTimes, timing.PhaseMaterialize)
	assert.Contains(t, res.PhaseTimes, timing.PhaseSimulate)
	assert.Contains(t, res.PhaseTimes, timing.PhaseComputeExpectation)

	other := bind(t, 2, []circuit.Gate{circuit.RY(1, circuit.Const(0.1)), circuit.CX(1, 0)})
	res, err = e.Evaluate(other, o)
	require.NoError(t, err)
	assert.False(t, res.PlanCacheHit)
}

func TestEvaluate_ConcurrentTopologies(t *testing.T) {
	e := newEngine(t, 2)
	o := observable(t, map[string]float64{"Z": 1})
	flip := bind(t, 1, []circuit.Gate{circuit.X(0)})
	keep := bind(t, 1, []circuit.Gate{circuit.H(0), circuit.H(0)})

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cc, want := flip, -1.0
			if i%2 == 0 {
				cc, want = keep, 1.0
			}
			res, err := e.Evaluate(cc, o)
			if err != nil {
				errs <- err
				return
			}
			if math.Abs(res.ExpectationValue-want) > 1e-12 {
				errs <- fmt.Errorf("goroutine %d: got %v, want %v", i, res.ExpectationValue, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	cc := bind(t, 3, []circuit.Gate{
		circuit.H(0), circuit.RY(1, circuit.Ref("a")), circuit.CX(0, 2), circuit.CCX(0, 1, 2),
	}, 0.77)
	o := observable(t, map[string]float64{"XYZ": 0.3, "ZZI": -1.1, "IYY": 0.05})

	a, err := newEngine(t, 3).Evaluate(cc, o)
	require.NoError(t, err)
	b, err := newEngine(t, 3).Evaluate(cc, o)
	require.NoError(t, err)
	assert.Equal(t, a.ExpectationValue, b.ExpectationValue)
}

func TestInsertZeros(t *testing.T) {
	assert.Equal(t, 0b0, insertZeros(0, []int{0}))
	assert.Equal(t, 0b10, insertZeros(1, []int{0}))
	assert.Equal(t, 0b1010, insertZeros(0b11, []int{0, 2}))
	assert.Equal(t, 0b1001, insertZeros(0b11, []int{1, 2}))
}

func TestMemoryRequirement(t *testing.T) {
	assert.Equal(t, uint64(16), MemoryRequirement(0))
	assert.Equal(t, uint64(16<<20), MemoryRequirement(20))
}
