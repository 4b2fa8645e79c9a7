package osstr

import (
	"encoding/binary"
	"fmt"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// OsString is a host-native OS string. Exactly one of bytes or units is in
// use, depending on the host model that produced it. The zero value is an
// empty narrow string.
type OsString struct {
	host  Host
	bytes []byte
	units []uint16
}

// EncodingError reports input that does not decode under the expected encoding.
type EncodingError struct {
	Encoding string
	Detail   string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s is not a valid %s string", e.Detail, e.Encoding)
}

// FromString builds an OsString from Go (UTF-8) text.
func FromString(h Host, s string) OsString {
	v, err := h.FromBytes([]byte(s))
	if err != nil {
		// Invalid UTF-8 only fails on wide hosts; replace it with U+FFFD.
		v, _ = h.FromBytes([]byte(string([]rune(s))))
	}
	return v
}

// Host returns the model this string belongs to.
func (s OsString) Host() Host { return s.host }

// model returns the host model, treating the zero value as narrow.
func (s OsString) model() Host {
	if s.host == nil {
		return NarrowHost{}
	}
	return s.host
}

// IsWide reports whether the native representation is UTF-16.
func (s OsString) IsWide() bool { return s.host != nil && s.host.Name() == ModelWide }

// Len returns the length in native encoding units.
func (s OsString) Len() int {
	if s.IsWide() {
		return len(s.units)
	}
	return len(s.bytes)
}

// Bytes returns the narrow encoding. Wide strings must be valid UTF-16.
func (s OsString) Bytes() ([]byte, error) {
	if !s.IsWide() {
		return clone(s.bytes), nil
	}
	return decodeUTF16(s.units)
}

// Units returns the UTF-16 encoding. Narrow strings must be valid UTF-8.
func (s OsString) Units() ([]uint16, error) {
	if s.IsWide() {
		return clone(s.units), nil
	}
	return encodeUTF16(s.bytes)
}

// String renders the value for diagnostics, replacing invalid sequences.
func (s OsString) String() string {
	if s.IsWide() {
		return string(utf16.Decode(s.units))
	}
	return string(s.bytes)
}

// Equal compares native representations.
func (s OsString) Equal(o OsString) bool {
	if s.IsWide() != o.IsWide() {
		return false
	}
	if s.IsWide() {
		return slices.Equal(s.units, o.units)
	}
	return slices.Equal(s.bytes, o.bytes)
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUTF16 converts UTF-8 bytes to UTF-16 code units. Invalid UTF-8 is
// rejected rather than replaced.
func encodeUTF16(b []byte) ([]uint16, error) {
	if !utf8.Valid(b) {
		return nil, &EncodingError{Encoding: "utf-8", Detail: fmt.Sprintf("%q", b)}
	}
	raw, err := utf16le.NewEncoder().Bytes(b)
	if err != nil {
		return nil, &EncodingError{Encoding: "utf-8", Detail: err.Error()}
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return units, nil
}

// decodeUTF16 converts UTF-16 code units to UTF-8. Unpaired surrogates are
// rejected rather than replaced.
func decodeUTF16(u []uint16) ([]byte, error) {
	if !validUTF16(u) {
		return nil, &EncodingError{Encoding: "utf-16", Detail: fmt.Sprintf("%v", u)}
	}
	raw := make([]byte, 2*len(u))
	for i, unit := range u {
		binary.LittleEndian.PutUint16(raw[2*i:], unit)
	}
	b, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, &EncodingError{Encoding: "utf-16", Detail: err.Error()}
	}
	return b, nil
}

func validUTF16(u []uint16) bool {
	for i := 0; i < len(u); i++ {
		switch {
		case u[i] >= 0xD800 && u[i] < 0xDC00:
			if i+1 >= len(u) || u[i+1] < 0xDC00 || u[i+1] >= 0xE000 {
				return false
			}
			i++
		case u[i] >= 0xDC00 && u[i] < 0xE000:
			return false
		}
	}
	return true
}
