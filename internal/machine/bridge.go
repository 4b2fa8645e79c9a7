package machine

import (
	"errors"

	"github.com/roach88/tagvm/internal/ir"
	"github.com/roach88/tagvm/internal/osstr"
)

// targetUnit is the string encoding the target family uses.
type targetUnit uint8

const (
	unitNarrow targetUnit = iota
	unitWide
)

// stringUnit dispatches on the target family, never on the host.
func (m *Machine) stringUnit(op string) (targetUnit, error) {
	switch m.target.Family {
	case ir.FamilyUnix:
		return unitNarrow, nil
	case ir.FamilyWindows:
		return unitWide, nil
	default:
		return 0, m.surface(op, newError(ErrCodeUnsupportedTarget,
			"OS strings are not supported for target family %q", m.target.Family))
	}
}

// encodingError converts an osstr decoding failure into a machine error.
func encodingError(err error) error {
	var ee *osstr.EncodingError
	if errors.As(err, &ee) {
		return &MachineError{
			Code:    ErrCodeInvalidEncoding,
			Message: ee.Error(),
			Details: map[string]string{"encoding": ee.Encoding},
		}
	}
	return err
}

// ReadOsStrFromTargetStr reads a NUL-terminated string in the target's
// native encoding.
func (m *Machine) ReadOsStrFromTargetStr(ptr Scalar) (osstr.OsString, error) {
	unit, err := m.stringUnit("read_os_str_from_target_str")
	if err != nil {
		return osstr.OsString{}, err
	}
	if unit == unitWide {
		return m.ReadOsStrFromWideStr(ptr)
	}
	return m.ReadOsStrFromCStr(ptr)
}

// ReadOsStrFromCStr reads a NUL-terminated byte string.
func (m *Machine) ReadOsStrFromCStr(ptr Scalar) (osstr.OsString, error) {
	const op = "read_os_str_from_c_str"
	p, err := ptr.ToPointer()
	if err != nil {
		return osstr.OsString{}, m.surface(op, err)
	}
	b, err := m.mem.ReadCStr(p)
	if err != nil {
		return osstr.OsString{}, m.surface(op, err)
	}
	s, err := m.host.FromBytes(b)
	if err != nil {
		return osstr.OsString{}, m.surface(op, encodingError(err))
	}
	return s, nil
}

// ReadOsStrFromWideStr reads a NUL-terminated u16 string.
func (m *Machine) ReadOsStrFromWideStr(ptr Scalar) (osstr.OsString, error) {
	const op = "read_os_str_from_wide_str"
	p, err := ptr.ToPointer()
	if err != nil {
		return osstr.OsString{}, m.surface(op, err)
	}
	units, err := m.mem.ReadWideStr(p)
	if err != nil {
		return osstr.OsString{}, m.surface(op, err)
	}
	s, err := m.host.FromUnits(units)
	if err != nil {
		return osstr.OsString{}, m.surface(op, encodingError(err))
	}
	return s, nil
}

// WriteOsStrToCStr writes s plus a NUL terminator at ptr when it fits in
// size bytes. The returned length never counts the terminator; when
// size <= length nothing is written.
func (m *Machine) WriteOsStrToCStr(s osstr.OsString, ptr Scalar, size uint64) (bool, uint64, error) {
	const op = "write_os_str_to_c_str"
	b, err := s.Bytes()
	if err != nil {
		return false, 0, m.surface(op, encodingError(err))
	}
	n := uint64(len(b))
	if size <= n {
		return false, n, nil
	}
	p, err := ptr.ToPointer()
	if err != nil {
		return false, n, m.surface(op, err)
	}
	buf := make([]byte, n+1)
	copy(buf, b)
	if err := m.mem.WriteBytes(p, buf); err != nil {
		return false, n, m.surface(op, err)
	}
	return true, n, nil
}

// WideStrPlace views size u16 units at ptr as an array place.
func (m *Machine) WideStrPlace(ptr Pointer, size uint64) Place {
	return Place{Ptr: ptr, Layout: ir.NewArray(m.types.MustLayout(ir.TypeU16), size)}
}

// WriteOsStrToWideStr writes s plus a 0 terminator into the u16 array at
// place when it fits in size units. The returned length is in units and
// never counts the terminator.
func (m *Machine) WriteOsStrToWideStr(s osstr.OsString, place Place, size uint64) (bool, uint64, error) {
	units, err := s.Units()
	if err != nil {
		return false, 0, m.surface("write_os_str_to_wide_str", encodingError(err))
	}
	n := uint64(len(units))
	if size <= n {
		return false, n, nil
	}
	for i, u := range append(units, 0) {
		elem, err := m.MplaceField(place, uint64(i))
		if err != nil {
			return false, n, m.surface("write_os_str_to_wide_str", err)
		}
		if err := m.WriteScalar(FromUint(uint64(u), 2), elem); err != nil {
			return false, n, err
		}
	}
	return true, n, nil
}

// AllocOsStrAsTargetStr allocates s in the target's native encoding.
func (m *Machine) AllocOsStrAsTargetStr(s osstr.OsString, kind AllocKind) (Pointer, error) {
	unit, err := m.stringUnit("alloc_os_str_as_target_str")
	if err != nil {
		return Pointer{}, err
	}
	if unit == unitWide {
		return m.AllocOsStrAsWideStr(s, kind)
	}
	return m.AllocOsStrAsCStr(s, kind)
}

// AllocOsStrAsCStr allocates exactly len+1 bytes and writes s with its
// terminator.
func (m *Machine) AllocOsStrAsCStr(s osstr.OsString, kind AllocKind) (Pointer, error) {
	b, err := s.Bytes()
	if err != nil {
		return Pointer{}, m.surface("alloc_os_str_as_c_str", encodingError(err))
	}
	size := uint64(len(b)) + 1
	arr := ir.NewArray(m.types.MustLayout(ir.TypeU8), size)
	ptr := m.mem.Allocate(arr.Size, arr.Align, kind)
	fits, _, err := m.WriteOsStrToCStr(s, m.PointerScalar(ptr), size)
	if err != nil {
		return Pointer{}, err
	}
	if !fits {
		bug("allocated C string of %d bytes is too small", size)
	}
	return ptr, nil
}

// AllocOsStrAsWideStr allocates exactly len+1 u16 units and writes s with
// its terminator.
func (m *Machine) AllocOsStrAsWideStr(s osstr.OsString, kind AllocKind) (Pointer, error) {
	units, err := s.Units()
	if err != nil {
		return Pointer{}, m.surface("alloc_os_str_as_wide_str", encodingError(err))
	}
	size := uint64(len(units)) + 1
	place := m.WideStrPlace(Pointer{}, size)
	place.Ptr = m.mem.Allocate(place.Layout.Size, place.Layout.Align, kind)
	fits, _, err := m.WriteOsStrToWideStr(s, place, size)
	if err != nil {
		return Pointer{}, err
	}
	if !fits {
		bug("allocated wide string of %d units is too small", size)
	}
	return place.Ptr, nil
}

// ReadPathFromCStr reads a narrow path and converts target separators to
// the host's.
func (m *Machine) ReadPathFromCStr(ptr Scalar) (osstr.OsString, error) {
	s, err := m.ReadOsStrFromCStr(ptr)
	if err != nil {
		return osstr.OsString{}, err
	}
	return osstr.ToHostPath(s, m.target.PathSeparator), nil
}

// ReadPathFromWideStr reads a wide path and converts target separators to
// the host's.
func (m *Machine) ReadPathFromWideStr(ptr Scalar) (osstr.OsString, error) {
	s, err := m.ReadOsStrFromWideStr(ptr)
	if err != nil {
		return osstr.OsString{}, err
	}
	return osstr.ToHostPath(s, m.target.PathSeparator), nil
}

// WritePathToCStr converts host separators to the target's and writes the
// path like WriteOsStrToCStr.
func (m *Machine) WritePathToCStr(path osstr.OsString, ptr Scalar, size uint64) (bool, uint64, error) {
	return m.WriteOsStrToCStr(osstr.ToTargetPath(path, m.target.PathSeparator), ptr, size)
}

// WritePathToWideStr converts host separators to the target's and writes
// the path like WriteOsStrToWideStr.
func (m *Machine) WritePathToWideStr(path osstr.OsString, place Place, size uint64) (bool, uint64, error) {
	return m.WriteOsStrToWideStr(osstr.ToTargetPath(path, m.target.PathSeparator), place, size)
}

// ReadPathFromTargetStr reads a path in the target's native encoding.
func (m *Machine) ReadPathFromTargetStr(ptr Scalar) (osstr.OsString, error) {
	unit, err := m.stringUnit("read_path_from_target_str")
	if err != nil {
		return osstr.OsString{}, err
	}
	if unit == unitWide {
		return m.ReadPathFromWideStr(ptr)
	}
	return m.ReadPathFromCStr(ptr)
}

// WritePathToTargetStr writes a path in the target's native encoding into
// a buffer of size units at ptr.
func (m *Machine) WritePathToTargetStr(path osstr.OsString, ptr Pointer, size uint64) (bool, uint64, error) {
	unit, err := m.stringUnit("write_path_to_target_str")
	if err != nil {
		return false, 0, err
	}
	if unit == unitWide {
		return m.WritePathToWideStr(path, m.WideStrPlace(ptr, size), size)
	}
	return m.WritePathToCStr(path, m.PointerScalar(ptr), size)
}
