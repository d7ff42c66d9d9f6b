package circuit

import (
	"encoding/json"
	"fmt"
)

// Matrix is a row-major complex matrix. It encodes to JSON as a list of
// [re, im] pairs, since JSON has no complex numbers.
type Matrix []complex128

// MarshalJSON implements json.Marshaler.
func (m Matrix) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(m))
	for i, v := range m {
		pairs[i] = [2]float64{real(v), imag(v)}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var pairs [][2]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("%w: matrix entries must be [re, im] pairs: %v", ErrInvalidGate, err)
	}
	if pairs == nil {
		*m = nil
		return nil
	}
	out := make(Matrix, len(pairs))
	for i, p := range pairs {
		out[i] = complex(p[0], p[1])
	}
	*m = out
	return nil
}
