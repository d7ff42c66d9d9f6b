package vqe

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/circuit"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/statevector"
)

// ErrInsufficientMemory is returned when the statevectors of a run would not
// fit in available memory.
var ErrInsufficientMemory = errors.New("insufficient memory for statevector")

// MemoryProbe reports available memory in bytes.
type MemoryProbe func() (uint64, error)

// SystemMemory reads available memory from the operating system.
func SystemMemory() (uint64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory statistics: %w", err)
	}
	return stat.Available, nil
}

// RequiredMemory is the peak statevector memory of one evaluation: the state
// plus the scratch copy used for the expectation value.
func RequiredMemory(numQubits int) uint64 {
	return 2 * statevector.MemoryRequirement(numQubits)
}

// CheckMemory fails with ErrInsufficientMemory when an n-qubit evaluation
// needs more than probe reports.
func CheckMemory(numQubits int, probe MemoryProbe) error {
	available, err := probe()
	if err != nil {
		return err
	}
	if need := RequiredMemory(numQubits); need > available {
		return fmt.Errorf("%w: %d qubits need %d bytes, %d available",
			ErrInsufficientMemory, numQubits, need, available)
	}
	return nil
}

// MaxQubits is the widest register whose evaluation fits in available bytes,
// or 0 when not even one qubit fits.
func MaxQubits(available uint64) int {
	n := 0
	for n < circuit.MaxQubits && RequiredMemory(n+1) <= available {
		n++
	}
	return n
}
