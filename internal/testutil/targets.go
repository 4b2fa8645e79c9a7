package testutil

import "github.com/roach88/tagvm/internal/ir"

// UnixTarget returns a 64-bit little-endian Linux target with the libc
// constants the shim tests need.
func UnixTarget() ir.Target {
	return ir.Target{
		Name:          "test-linux",
		OS:            "linux",
		Family:        ir.FamilyUnix,
		PointerSize:   8,
		PathSeparator: '/',
		Libc: map[string]int64{
			"EPERM":         1,
			"ENOENT":        2,
			"EINTR":         4,
			"EAGAIN":        11,
			"EWOULDBLOCK":   11,
			"EEXIST":        17,
			"EINVAL":        22,
			"EPIPE":         32,
			"EADDRINUSE":    98,
			"EADDRNOTAVAIL": 99,
			"ECONNABORTED":  103,
			"ECONNRESET":    104,
			"ENOTCONN":      107,
			"ETIMEDOUT":     110,
			"ECONNREFUSED":  111,
		},
		LibcTypes: map[string]ir.TypeID{
			"c_int":  ir.TypeI32,
			"size_t": ir.TypeUsize,
		},
	}
}

// WindowsTarget returns a 64-bit little-endian Windows target.
func WindowsTarget() ir.Target {
	return ir.Target{
		Name:          "test-windows",
		OS:            "windows",
		Family:        ir.FamilyWindows,
		PointerSize:   8,
		PathSeparator: '\\',
		LibcTypes: map[string]ir.TypeID{
			"c_int": ir.TypeI32,
		},
	}
}

// WasiTarget returns a target whose family supports no OS strings.
func WasiTarget() ir.Target {
	return ir.Target{
		Name:          "test-wasi",
		OS:            "wasi",
		Family:        "wasi",
		PointerSize:   4,
		PathSeparator: '/',
	}
}
