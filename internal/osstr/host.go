package osstr

import (
	"fmt"
	"runtime"
)

// Host is the host string model capability.
type Host interface {
	// Name identifies the model ("narrow" or "wide").
	Name() string

	// Separator is the host's native path separator.
	Separator() byte

	// FromBytes builds an OsString from a narrow byte sequence.
	FromBytes(b []byte) (OsString, error)

	// FromUnits builds an OsString from UTF-16 code units.
	FromUnits(u []uint16) (OsString, error)
}

// Host model names.
const (
	ModelNarrow = "narrow"
	ModelWide   = "wide"
)

// NarrowHost stores OS strings as arbitrary bytes.
type NarrowHost struct{}

// Name implements Host.
func (NarrowHost) Name() string { return ModelNarrow }

// Separator implements Host.
func (NarrowHost) Separator() byte { return '/' }

// FromBytes implements Host. Any byte sequence is a valid narrow OS string.
func (h NarrowHost) FromBytes(b []byte) (OsString, error) {
	return OsString{host: h, bytes: clone(b)}, nil
}

// FromUnits implements Host. The units must be well-formed UTF-16.
func (h NarrowHost) FromUnits(u []uint16) (OsString, error) {
	b, err := decodeUTF16(u)
	if err != nil {
		return OsString{}, err
	}
	return OsString{host: h, bytes: b}, nil
}

// WideHost stores OS strings as UTF-16 code units, including unpaired
// surrogates.
type WideHost struct{}

// Name implements Host.
func (WideHost) Name() string { return ModelWide }

// Separator implements Host.
func (WideHost) Separator() byte { return '\\' }

// FromBytes implements Host. The bytes must be valid UTF-8.
func (h WideHost) FromBytes(b []byte) (OsString, error) {
	u, err := encodeUTF16(b)
	if err != nil {
		return OsString{}, err
	}
	return OsString{host: h, units: u}, nil
}

// FromUnits implements Host. Any unit sequence is a valid wide OS string.
func (h WideHost) FromUnits(u []uint16) (OsString, error) {
	return OsString{host: h, units: clone(u)}, nil
}

// Native returns the model matching the platform the machine runs on.
func Native() Host {
	if runtime.GOOS == "windows" {
		return WideHost{}
	}
	return NarrowHost{}
}

// ByName returns the model for a configuration value. The empty string and
// "native" select Native().
func ByName(name string) (Host, error) {
	switch name {
	case "", "native":
		return Native(), nil
	case ModelNarrow:
		return NarrowHost{}, nil
	case ModelWide:
		return WideHost{}, nil
	default:
		return nil, fmt.Errorf("unknown host string model %q (want %q or %q)", name, ModelNarrow, ModelWide)
	}
}

func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
