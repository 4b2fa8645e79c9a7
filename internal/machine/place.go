package machine

import (
	"github.com/roach88/tagvm/internal/ir"
)

// Place is a memory-backed location with a layout.
type Place struct {
	Ptr    Pointer
	Layout *ir.Layout
}

// Offset returns the sub-place at off bytes with layout l. The pointer
// keeps the parent's tag.
func (p Place) Offset(off uint64, l *ir.Layout) Place {
	return Place{Ptr: p.Ptr.WrappingOffset(off), Layout: l}
}

// MplaceField projects field i of p.
func (m *Machine) MplaceField(p Place, i uint64) (Place, error) {
	off, l, ok := p.Layout.Field(i)
	if !ok {
		return Place{}, newError(ErrCodeIndexOutOfRange,
			"field %d out of range for %s with %d fields", i, p.Layout.Type, p.Layout.FieldCount())
	}
	return p.Offset(off, l), nil
}

// LocalPlace returns the place backing local of the topmost frame.
func (m *Machine) LocalPlace(local int) (Place, error) {
	f := m.Frame()
	if f == nil {
		return Place{}, newError(ErrCodeIndexOutOfRange, "no active frame")
	}
	return f.LocalPlace(local)
}

// ReadScalarMaybeUndef loads the scalar at p without requiring it to be
// initialized.
func (m *Machine) ReadScalarMaybeUndef(p Place) (Scalar, error) {
	if err := scalarLayout(p.Layout); err != nil {
		return Scalar{}, err
	}
	return m.mem.readScalar(p.Ptr, p.Layout.Size)
}

// ReadScalar loads the scalar at p. Reading uninitialized memory is an
// undefined-value error.
func (m *Machine) ReadScalar(p Place) (Scalar, error) {
	s, err := m.ReadScalarMaybeUndef(p)
	if err != nil {
		return Scalar{}, m.surface("read_scalar", err)
	}
	s, err = s.NotUndef()
	if err != nil {
		return Scalar{}, m.surface("read_scalar", err)
	}
	return s, nil
}

// WriteScalar stores s at p. The scalar width must equal the layout size.
func (m *Machine) WriteScalar(s Scalar, p Place) error {
	if err := scalarLayout(p.Layout); err != nil {
		return m.surface("write_scalar", err)
	}
	if s.Size() != p.Layout.Size {
		return m.surface("write_scalar", newError(ErrCodeLayoutMismatch,
			"%d-byte scalar written to %s", s.Size(), p.Layout))
	}
	return m.surface("write_scalar", m.mem.writeScalar(p.Ptr, s))
}

// ReadPointer loads a pointer-width scalar at p and returns its pointer.
func (m *Machine) ReadPointer(p Place) (Pointer, error) {
	s, err := m.ReadScalar(p)
	if err != nil {
		return Pointer{}, err
	}
	ptr, err := s.ToPointer()
	return ptr, m.surface("read_pointer", err)
}

// WriteImmediate stores imm at p after checking the layouts agree.
func (m *Machine) WriteImmediate(imm Immediate, p Place) error {
	if imm.Layout != nil && imm.Layout.Size != p.Layout.Size {
		return m.surface("write_immediate", newError(ErrCodeLayoutMismatch,
			"immediate of %s written to %s", imm.Layout, p.Layout))
	}
	return m.WriteScalar(imm.Scalar, p)
}

// WritePackedImmediates stores imms back to back starting at p, without
// padding, and returns the number of bytes written.
func (m *Machine) WritePackedImmediates(p Place, imms []Immediate) (uint64, error) {
	var off uint64
	for _, imm := range imms {
		if imm.Layout == nil {
			bug("packed immediate without layout")
		}
		if err := m.WriteImmediate(imm, p.Offset(off, imm.Layout)); err != nil {
			return off, err
		}
		off += imm.Layout.Size
	}
	return off, nil
}

// WriteNull stores the null pointer or zero of p's width.
func (m *Machine) WriteNull(p Place) error {
	return m.WriteScalar(FromUint(0, p.Layout.Size), p)
}

// IsNull compares s with the target's null pointer. s must be pointer
// sized. Pointers with provenance are never null.
func (m *Machine) IsNull(s Scalar) (bool, error) {
	if s.Size() != m.PointerSize() {
		return false, m.surface("is_null", newError(ErrCodeLayoutMismatch,
			"null test of a %d-byte scalar on a %d-byte pointer target", s.Size(), m.PointerSize()))
	}
	return m.PtrEq(s, m.NullPointer())
}

// TestNull maps a null scalar to ok=false and returns the pointer
// otherwise.
func (m *Machine) TestNull(s Scalar) (Pointer, bool, error) {
	null, err := m.IsNull(s)
	if err != nil || null {
		return Pointer{}, false, err
	}
	p, err := s.ToPointer()
	if err != nil {
		return Pointer{}, false, m.surface("test_null", err)
	}
	return p, true, nil
}

// PtrEq compares two scalars as addresses. Pointers must carry live tags.
func (m *Machine) PtrEq(a, b Scalar) (bool, error) {
	var err error
	if a, err = a.NotUndef(); err != nil {
		return false, m.surface("ptr_eq", err)
	}
	if b, err = b.NotUndef(); err != nil {
		return false, m.surface("ptr_eq", err)
	}
	for _, s := range []Scalar{a, b} {
		if s.IsPointer() {
			if _, err := m.mem.lookup(s.ptr); err != nil {
				return false, m.surface("ptr_eq", err)
			}
		}
	}
	switch {
	case a.IsPointer() && b.IsPointer():
		return a.ptr.Alloc == b.ptr.Alloc && a.ptr.Offset == b.ptr.Offset, nil
	case !a.IsPointer() && !b.IsPointer():
		return a.bits == b.bits, nil
	}
	bits := a.bits
	if a.IsPointer() {
		bits = b.bits
	}
	if bits == 0 {
		return false, nil
	}
	return false, m.surface("ptr_eq", newError(ErrCodeUnsupportedOperation,
		"cannot compare pointer with integer 0x%x", bits))
}

func scalarLayout(l *ir.Layout) error {
	if !l.IsPrimitive() || l.Size == 0 || l.Size > 8 {
		return newError(ErrCodeLayoutMismatch, "%s is not a scalar layout", l)
	}
	return nil
}
