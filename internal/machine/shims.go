package machine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"syscall"

	"github.com/roach88/tagvm/internal/ir"
)

// GenRandom fills length bytes at ptr. With host communication enabled the
// bytes come from the host entropy source, otherwise from the seeded
// memory RNG. A zero length never touches ptr; otherwise the whole
// destination range is checked before any entropy is drawn.
func (m *Machine) GenRandom(ptr Scalar, length uint64) error {
	const op = "gen_random"
	if length == 0 {
		return nil
	}
	p, err := ptr.ToPointer()
	if err != nil {
		return m.surface(op, err)
	}
	if _, err := m.mem.check(p, length); err != nil {
		return m.surface(op, err)
	}

	data := make([]byte, length)
	if m.communicate {
		if _, err := io.ReadFull(m.entropy, data); err != nil {
			return m.surface(op, newError(ErrCodeUnsupportedOperation, "host getrandom failed: %v", err))
		}
	} else {
		m.mem.FillRandom(data)
	}
	return m.surface(op, m.mem.WriteBytes(p, data))
}

// CheckNoIsolation fails when isolation is on, naming the operation that
// needed the host.
func (m *Machine) CheckNoIsolation(name string) error {
	if m.communicate {
		return nil
	}
	return m.surface(name, &MachineError{
		Code:    ErrCodeUnsupportedInIsolation,
		Message: fmt.Sprintf("`%s` not available when isolation is enabled", name),
		Details: map[string]string{"name": name},
	})
}

// AssertTargetOS panics unless the target OS is targetOS. name is the
// shim that requires it.
func (m *Machine) AssertTargetOS(targetOS, name string) {
	if m.target.OS != targetOS {
		bug("`%s` is only available on the `%s` target OS", name, targetOS)
	}
}

// SetLastError stores s in the last-error slot.
func (m *Machine) SetLastError(s Scalar) error {
	return m.WriteScalar(s, m.lastError)
}

// GetLastError loads the last-error slot. Reading it before any error was
// set is an undefined-value error.
func (m *Machine) GetLastError() (Scalar, error) {
	return m.ReadScalar(m.lastError)
}

// EvalPathScalar resolves a symbolic constant such as ["libc", "ENOENT"].
func (m *Machine) EvalPathScalar(path []string) (Scalar, error) {
	const op = "eval_path_scalar"
	if len(path) != 2 || path[0] != "libc" {
		return Scalar{}, m.surface(op, newError(ErrCodeUnresolvedPath, "cannot resolve %s", strings.Join(path, "::")))
	}
	v, ok := m.target.Libc[path[1]]
	if !ok {
		return Scalar{}, m.surface(op, newError(ErrCodeUnresolvedPath,
			"libc::%s is not defined for target %s", path[1], m.target.Name))
	}
	size := uint64(4)
	if l, err := m.LibcLayout("c_int"); err == nil {
		size = l.Size
	}
	return FromInt(v, size), nil
}

// EvalLibc resolves libc::name.
func (m *Machine) EvalLibc(name string) (Scalar, error) {
	s, err := m.EvalPathScalar([]string{"libc", name})
	if err != nil {
		return Scalar{}, err
	}
	return s.NotUndef()
}

// EvalLibcI32 resolves libc::name as an i32.
func (m *Machine) EvalLibcI32(name string) (int32, error) {
	s, err := m.EvalLibc(name)
	if err != nil {
		return 0, err
	}
	v, err := s.ToI32()
	return v, m.surface("eval_libc_i32", err)
}

// LibcLayout returns the layout of the libc type name on the target.
func (m *Machine) LibcLayout(name string) (*ir.Layout, error) {
	id, ok := m.target.LibcTypes[name]
	if !ok {
		return nil, newError(ErrCodeUnresolvedPath, "libc::%s is not a known type for target %s", name, m.target.Name)
	}
	l, err := m.types.Layout(id)
	if err != nil {
		return nil, newError(ErrCodeUnresolvedPath, "libc::%s: %v", name, err)
	}
	return l, nil
}

// errnoMapping pairs a host error with the libc constant it maps to.
type errnoMapping struct {
	target error
	name   string
}

var ioErrnos = []errnoMapping{
	{syscall.ECONNREFUSED, "ECONNREFUSED"},
	{syscall.ECONNRESET, "ECONNRESET"},
	{syscall.EPERM, "EPERM"},
	{fs.ErrPermission, "EPERM"},
	{syscall.EPIPE, "EPIPE"},
	{syscall.ENOTCONN, "ENOTCONN"},
	{syscall.ECONNABORTED, "ECONNABORTED"},
	{syscall.EADDRNOTAVAIL, "EADDRNOTAVAIL"},
	{syscall.EADDRINUSE, "EADDRINUSE"},
	{fs.ErrNotExist, "ENOENT"},
	{syscall.EINTR, "EINTR"},
	{fs.ErrInvalid, "EINVAL"},
	{syscall.EINVAL, "EINVAL"},
	{os.ErrDeadlineExceeded, "ETIMEDOUT"},
	{syscall.ETIMEDOUT, "ETIMEDOUT"},
	{fs.ErrExist, "EEXIST"},
	{syscall.EAGAIN, "EWOULDBLOCK"},
}

// RequiredLibcConstants lists the libc constants a unix target must define
// for SetLastErrorFromIOError, in mapping order without duplicates.
func RequiredLibcConstants() []string {
	var names []string
	for _, e := range ioErrnos {
		if !slices.Contains(names, e.name) {
			names = append(names, e.name)
		}
	}
	return names
}

// SetLastErrorFromIOError stores the target errno corresponding to a host
// I/O error. Only unix targets are supported.
func (m *Machine) SetLastErrorFromIOError(ioErr error) error {
	const op = "set_last_error_from_io_error"
	if m.target.Family != ir.FamilyUnix {
		return m.surface(op, newError(ErrCodeUnsupportedOperation,
			"setting the last OS error from an io.Error is unsupported for %s", m.target.OS))
	}
	for _, e := range ioErrnos {
		if errors.Is(ioErr, e.target) {
			errno, err := m.EvalLibc(e.name)
			if err != nil {
				return err
			}
			return m.SetLastError(errno)
		}
	}
	return m.surface(op, newError(ErrCodeUnsupportedOperation,
		"the %v error cannot be transformed into a raw os error", ioErr))
}

// TryUnwrapIOResult returns v when err is nil. Otherwise it records err as
// the last error and returns -1.
func TryUnwrapIOResult[T ~int | ~int32 | ~int64](m *Machine, v T, err error) (T, error) {
	if err == nil {
		return v, nil
	}
	if serr := m.SetLastErrorFromIOError(err); serr != nil {
		return 0, serr
	}
	return -1, nil
}
