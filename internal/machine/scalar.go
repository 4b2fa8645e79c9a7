package machine

import (
	"fmt"

	"github.com/roach88/tagvm/internal/ir"
)

// AllocID identifies one allocation in guest memory.
type AllocID uint64

// Tag is the provenance marker carried by a pointer. A pointer may access
// its allocation only while its tag is live there.
type Tag uint64

// Pointer is an allocation-relative address with provenance.
type Pointer struct {
	Alloc  AllocID
	Offset uint64
	Tag    Tag
}

// WrappingOffset returns p moved by n bytes, keeping alloc and tag.
// No bounds check is performed.
func (p Pointer) WrappingOffset(n uint64) Pointer {
	p.Offset += n
	return p
}

func (p Pointer) String() string {
	return fmt.Sprintf("alloc%d+%d<%d>", p.Alloc, p.Offset, p.Tag)
}

type scalarKind uint8

const (
	scalarUndef scalarKind = iota
	scalarBits
	scalarPtr
)

// Scalar is a primitive value of 1 to 8 bytes: raw integer bits, a pointer,
// or undefined.
type Scalar struct {
	kind scalarKind
	size uint8
	bits uint64
	ptr  Pointer
}

// Undef returns an undefined scalar of the given size.
func Undef(size uint64) Scalar {
	return Scalar{kind: scalarUndef, size: uint8(size)}
}

// FromUint returns the integer scalar v truncated to size bytes.
func FromUint(v uint64, size uint64) Scalar {
	return Scalar{kind: scalarBits, size: uint8(size), bits: truncate(v, size)}
}

// FromInt returns the two's complement scalar v truncated to size bytes.
func FromInt(v int64, size uint64) Scalar {
	return FromUint(uint64(v), size)
}

// FromBool returns the 1-byte scalar for b.
func FromBool(b bool) Scalar {
	if b {
		return FromUint(1, 1)
	}
	return FromUint(0, 1)
}

// FromPointer returns a pointer scalar of the given size.
func FromPointer(p Pointer, size uint64) Scalar {
	return Scalar{kind: scalarPtr, size: uint8(size), ptr: p}
}

// Size returns the scalar width in bytes.
func (s Scalar) Size() uint64 { return uint64(s.size) }

// IsUndef reports whether the scalar is undefined.
func (s Scalar) IsUndef() bool { return s.kind == scalarUndef }

// IsPointer reports whether the scalar carries provenance.
func (s Scalar) IsPointer() bool { return s.kind == scalarPtr }

// NotUndef returns s, or an undefined-value error.
func (s Scalar) NotUndef() (Scalar, error) {
	if s.kind == scalarUndef {
		return Scalar{}, newError(ErrCodeUndefinedValue, "using uninitialized data of %d bytes", s.size)
	}
	return s, nil
}

// ToBits returns the raw bits of an integer scalar of exactly size bytes.
func (s Scalar) ToBits(size uint64) (uint64, error) {
	switch s.kind {
	case scalarUndef:
		return 0, newError(ErrCodeUndefinedValue, "using uninitialized data of %d bytes", s.size)
	case scalarPtr:
		return 0, newError(ErrCodeUnsupportedOperation, "cannot use pointer %s as raw bits", s.ptr)
	}
	if uint64(s.size) != size {
		return 0, newError(ErrCodeLayoutMismatch, "expected %d-byte scalar, got %d bytes", size, s.size)
	}
	return s.bits, nil
}

// ToU64 interprets an 8-byte scalar as unsigned.
func (s Scalar) ToU64() (uint64, error) { return s.ToBits(8) }

// ToU32 interprets a 4-byte scalar as unsigned.
func (s Scalar) ToU32() (uint32, error) {
	b, err := s.ToBits(4)
	return uint32(b), err
}

// ToU16 interprets a 2-byte scalar as unsigned.
func (s Scalar) ToU16() (uint16, error) {
	b, err := s.ToBits(2)
	return uint16(b), err
}

// ToU8 interprets a 1-byte scalar as unsigned.
func (s Scalar) ToU8() (uint8, error) {
	b, err := s.ToBits(1)
	return uint8(b), err
}

// ToI32 interprets a 4-byte scalar as signed.
func (s Scalar) ToI32() (int32, error) {
	b, err := s.ToBits(4)
	return int32(uint32(b)), err
}

// ToI64 interprets an 8-byte scalar as signed.
func (s Scalar) ToI64() (int64, error) {
	b, err := s.ToBits(8)
	return int64(b), err
}

// ToPointer returns the pointer carried by s. Integer scalars, including
// null, carry no provenance and cannot be dereferenced.
func (s Scalar) ToPointer() (Pointer, error) {
	switch s.kind {
	case scalarPtr:
		return s.ptr, nil
	case scalarUndef:
		return Pointer{}, newError(ErrCodeUndefinedValue, "using uninitialized data as a pointer")
	}
	if s.bits == 0 {
		return Pointer{}, newError(ErrCodeProvenanceViolation, "null pointer is not dereferenceable")
	}
	return Pointer{}, newError(ErrCodeProvenanceViolation, "integer 0x%x has no provenance", s.bits)
}

func (s Scalar) String() string {
	switch s.kind {
	case scalarUndef:
		return fmt.Sprintf("undef<%d>", s.size)
	case scalarPtr:
		return s.ptr.String()
	default:
		return fmt.Sprintf("0x%0*x", int(s.size)*2, s.bits)
	}
}

func truncate(v uint64, size uint64) uint64 {
	if size >= 8 {
		return v
	}
	return v & (1<<(size*8) - 1)
}

// Immediate is a scalar paired with the layout it was checked against.
type Immediate struct {
	Scalar Scalar
	Layout *ir.Layout
}

// ImmFromIntChecked builds a signed immediate, failing when i does not fit.
func ImmFromIntChecked(i int64, l *ir.Layout) (Immediate, error) {
	if !l.IsPrimitive() || l.Size == 0 || l.Size > 8 {
		return Immediate{}, newError(ErrCodeLayoutMismatch, "%s is not an integer layout", l)
	}
	if l.Size < 8 {
		bits := l.Size * 8
		lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)
		if i < lo || i >= hi {
			return Immediate{}, newError(ErrCodeUnsupportedOperation, "%d does not fit in %s", i, l.Type)
		}
	}
	return Immediate{Scalar: FromInt(i, l.Size), Layout: l}, nil
}

// ImmFromUintChecked builds an unsigned immediate, failing when v does not fit.
func ImmFromUintChecked(v uint64, l *ir.Layout) (Immediate, error) {
	if !l.IsPrimitive() || l.Size == 0 || l.Size > 8 {
		return Immediate{}, newError(ErrCodeLayoutMismatch, "%s is not an integer layout", l)
	}
	if truncate(v, l.Size) != v {
		return Immediate{}, newError(ErrCodeUnsupportedOperation, "%d does not fit in %s", v, l.Type)
	}
	return Immediate{Scalar: FromUint(v, l.Size), Layout: l}, nil
}
