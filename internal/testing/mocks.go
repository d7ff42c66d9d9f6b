package testing

import "errors"

// ErrProbeFailed is returned by FailingMemory.
var ErrProbeFailed = errors.New("memory probe failed")

// PlentyOfMemory reports a terabyte of available memory.
func PlentyOfMemory() (uint64, error) {
	return 1 << 40, nil
}

// FixedMemory returns a probe that always reports bytes.
func FixedMemory(bytes uint64) func() (uint64, error) {
	return func() (uint64, error) {
		return bytes, nil
	}
}

// FailingMemory is a probe that cannot read memory statistics.
func FailingMemory() (uint64, error) {
	return 0, ErrProbeFailed
}
