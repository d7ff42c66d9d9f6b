package pauli

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	codecFormat  = "pauli-observable"
	codecVersion = 1
)

// ErrUnsupportedVersion is returned when decoding an unknown envelope.
var ErrUnsupportedVersion = errors.New("unsupported observable encoding")

// envelope is the versioned on-disk form of an Observable.
type envelope struct {
	Format    string `msgpack:"format"`
	Version   int    `msgpack:"version"`
	NumQubits int    `msgpack:"num_qubits"`
	Terms     []Term `msgpack:"terms"`
}

// MarshalBinary encodes the observable as a versioned msgpack envelope.
func (o *Observable) MarshalBinary() ([]byte, error) {
	data, err := msgpack.Marshal(envelope{
		Format:    codecFormat,
		Version:   codecVersion,
		NumQubits: o.numQubits,
		Terms:     o.terms,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode observable: %w", err)
	}
	return data, nil
}

// Decode parses an envelope written by MarshalBinary.
func Decode(data []byte) (*Observable, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode observable: %w", err)
	}
	if env.Format != codecFormat || env.Version != codecVersion {
		return nil, fmt.Errorf("%w: format %q version %d", ErrUnsupportedVersion, env.Format, env.Version)
	}

	o, err := New(env.Terms)
	if err != nil {
		return nil, err
	}
	if o.numQubits != env.NumQubits {
		return nil, fmt.Errorf("%w: header says %d qubits, terms have %d",
			ErrInconsistentQubitCount, env.NumQubits, o.numQubits)
	}
	return o, nil
}

// UnmarshalBinary decodes into o. It exists so Observable satisfies
// encoding.BinaryUnmarshaler; Decode is the usual entry point.
func (o *Observable) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}
