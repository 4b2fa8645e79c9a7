package ir

import (
	"encoding/binary"
	"fmt"
)

// Family groups target operating systems by their string and path conventions.
type Family string

const (
	// FamilyUnix targets use narrow NUL-terminated byte strings and '/'.
	FamilyUnix Family = "unix"

	// FamilyWindows targets use NUL-terminated UTF-16 strings and '\'.
	FamilyWindows Family = "windows"
)

// Target describes the simulated platform the guest program runs on.
// It is distinct from the host the machine itself runs on.
type Target struct {
	Name          string
	OS            string
	Family        Family
	PointerSize   uint64
	BigEndian     bool
	PathSeparator byte

	// Libc maps symbolic libc constant names (e.g. "ENOENT") to values.
	Libc map[string]int64

	// LibcTypes maps libc type names (e.g. "c_int", "size_t") to layouts
	// in the type registry.
	LibcTypes map[string]TypeID
}

// ByteOrder returns the byte order used for scalars in guest memory.
func (t Target) ByteOrder() binary.ByteOrder {
	if t.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Validate checks the invariants the machine relies on.
func (t Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target name is required")
	}
	switch t.PointerSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("target %s: unsupported pointer size %d", t.Name, t.PointerSize)
	}
	if t.PathSeparator != '/' && t.PathSeparator != '\\' {
		return fmt.Errorf("target %s: unsupported path separator %q", t.Name, t.PathSeparator)
	}
	return nil
}
