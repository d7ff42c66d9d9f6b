// Package fusion rewrites a bound circuit into dense blocks acting on at most
// W qubits each, so the statevector engine pays one sweep per block instead
// of one per gate.
//
// Fusion is split in two steps. Planning decides which gates share a block and
// depends only on circuit topology, so the engine caches it across parameter
// updates. Materializing multiplies the bound gate matrices of each group and
// runs once per evaluation.
package fusion

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/timing"
)

var (
	// ErrFusionWidthExceeded is returned when one gate already spans more
	// qubits than the configured fusion width.
	ErrFusionWidthExceeded = errors.New("gate exceeds fusion width")
	// ErrInvalidFusionWidth is returned for widths outside [1, MaxWidth].
	ErrInvalidFusionWidth = errors.New("invalid fusion width")
	// ErrPlanMismatch is returned when a plan is materialized against a
	// circuit of another topology.
	ErrPlanMismatch = errors.New("fusion plan does not match circuit")
)

const (
	// MaxWidth is the widest supported fused block.
	MaxWidth = timing.MaxFuseLevel
	// DefaultWidth matches the widest pass level.
	DefaultWidth = MaxWidth
)

// Config holds compiler configuration
type Config struct {
	MaxWidth int
}

// Validate checks the configured width.
func (c Config) Validate() error {
	if c.MaxWidth < 1 || c.MaxWidth > MaxWidth {
		return fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidFusionWidth, c.MaxWidth, MaxWidth)
	}
	return nil
}

// Group is one planned block: the sorted qubit support and the indices of
// the constituent gates in application order.
type Group struct {
	Qubits []int
	Gates  []int
}

// Width is the number of qubits the group acts on.
func (g Group) Width() int {
	return len(g.Qubits)
}

// Plan is the immutable result of structural fusion.
type Plan struct {
	numQubits   int
	numGates    int
	fingerprint uint64
	maxWidth    int
	groups      []Group
}

// Len is the number of blocks the plan produces.
func (p *Plan) Len() int {
	return len(p.groups)
}

// Groups returns a copy of the planned groups.
func (p *Plan) Groups() []Group {
	out := make([]Group, len(p.groups))
	for i, g := range p.groups {
		out[i] = Group{
			Qubits: append([]int(nil), g.Qubits...),
			Gates:  append([]int(nil), g.Gates...),
		}
	}
	return out
}

// Fingerprint is the topology fingerprint of the planned circuit.
func (p *Plan) Fingerprint() uint64 {
	return p.fingerprint
}

// MaxWidth is the width the plan was built for.
func (p *Plan) MaxWidth() int {
	return p.maxWidth
}

// WidthHistogram counts planned blocks per width.
func (p *Plan) WidthHistogram() map[int]int {
	hist := make(map[int]int)
	for _, g := range p.groups {
		hist[g.Width()]++
	}
	return hist
}

// Compiler plans and materializes fused blocks.
type Compiler struct {
	cfg Config
	log zerolog.Logger
}

// NewCompiler creates a new fusion compiler.
func NewCompiler(cfg Config, log zerolog.Logger) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Compiler{
		cfg: cfg,
		log: log.With().Str("component", "fusion").Logger(),
	}, nil
}

// MaxWidth is the configured fusion width.
func (c *Compiler) MaxWidth() int {
	return c.cfg.MaxWidth
}

// item is a unit of one pass: a single gate on the first pass, a group on
// later ones.
type item struct {
	mask  uint64
	gates []int
}

// Plan runs pass levels 1..W over the circuit. Each level scans the previous
// level's output once in order and its wall-clock time is reported under
// timing.FuseWidthPhase(level).
func (c *Compiler) Plan(cc *circuit.Concrete) (*Plan, timing.PhaseTimes, error) {
	phases := timing.PhaseTimes{}
	width := c.cfg.MaxWidth

	items := make([]item, cc.Len())
	for i := 0; i < cc.Len(); i++ {
		g := cc.Gate(i)
		if len(g.Qubits) > width {
			return nil, phases, fmt.Errorf("%w: gate %d (%s) spans %d qubits, fusion width is %d",
				ErrFusionWidthExceeded, i, g.Kind, len(g.Qubits), width)
		}
		var mask uint64
		for _, q := range g.Qubits {
			mask |= 1 << uint(q)
		}
		items[i] = item{mask: mask, gates: []int{i}}
	}

	for level := 1; level <= width; level++ {
		start := time.Now()
		items = fusePass(items, level)
		phases.Add(timing.FuseWidthPhase(level), time.Since(start))
	}

	plan := &Plan{
		numQubits:   cc.NumQubits(),
		numGates:    cc.Len(),
		fingerprint: cc.Fingerprint(),
		maxWidth:    width,
		groups:      make([]Group, len(items)),
	}
	for i, it := range items {
		plan.groups[i] = Group{Qubits: maskQubits(it.mask), Gates: it.gates}
	}

	c.log.Debug().
		Int("gates", cc.Len()).
		Int("blocks", plan.Len()).
		Int("max_width", width).
		Msg("Fusion plan built")

	return plan, phases, nil
}

// fusePass merges items into groups of at most level qubits. Open groups
// are kept pairwise disjoint, so emitting a closed group ahead of an older
// open one never reorders operations on a shared qubit.
func fusePass(items []item, level int) []item {
	out := make([]item, 0, len(items))
	var open []*item

	closeWhere := func(pred func(*item) bool) {
		kept := open[:0]
		for _, g := range open {
			if pred(g) {
				out = append(out, *g)
			} else {
				kept = append(kept, g)
			}
		}
		open = kept
	}

	for _, it := range items {
		it := it
		overlaps := func(g *item) bool { return g.mask&it.mask != 0 }

		if bits.OnesCount64(it.mask) > level {
			closeWhere(overlaps)
			out = append(out, it)
			continue
		}

		last := -1
		for i := len(open) - 1; i >= 0; i-- {
			if overlaps(open[i]) {
				last = i
				break
			}
		}

		if last >= 0 && bits.OnesCount64(open[last].mask|it.mask) <= level {
			target := open[last]
			closeWhere(func(g *item) bool { return g != target && overlaps(g) })
			target.mask |= it.mask
			target.gates = append(target.gates, it.gates...)
			continue
		}

		closeWhere(overlaps)
		g := &item{mask: it.mask, gates: append([]int(nil), it.gates...)}
		open = append(open, g)
	}

	for _, g := range open {
		out = append(out, *g)
	}
	return out
}

func maskQubits(mask uint64) []int {
	qubits := make([]int, 0, bits.OnesCount64(mask))
	for mask != 0 {
		q := bits.TrailingZeros64(mask)
		qubits = append(qubits, q)
		mask &^= 1 << uint(q)
	}
	sort.Ints(qubits)
	return qubits
}
