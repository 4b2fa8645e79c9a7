package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagvm/internal/ir"
)

func TestCompileTargetBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: "test-unix": {
			os: "linux"
			family: "unix"
			pointer_size: 4
			endian: "big"
			libc: { ENOENT: 2, EPERM: 1 }
			libc_types: { c_int: "i32" }
		}
	`)
	require.NoError(t, v.Err())

	tgt, err := CompileTarget(v.LookupPath(cue.MakePath(cue.Str("target"), cue.Str("test-unix"))))
	require.NoError(t, err)

	assert.Equal(t, "test-unix", tgt.Name)
	assert.Equal(t, "linux", tgt.OS)
	assert.Equal(t, ir.FamilyUnix, tgt.Family)
	assert.Equal(t, uint64(4), tgt.PointerSize)
	assert.True(t, tgt.BigEndian)
	assert.Equal(t, byte('/'), tgt.PathSeparator)
	assert.Equal(t, map[string]int64{"ENOENT": 2, "EPERM": 1}, tgt.Libc)
	assert.Equal(t, map[string]ir.TypeID{"c_int": ir.TypeI32}, tgt.LibcTypes)
}

func TestCompileTargetMissingFamily(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: bad: {
			os: "linux"
			pointer_size: 8
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileTarget(v.LookupPath(cue.ParsePath("target.bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "family", compileErr.Field)
	assert.Contains(t, err.Error(), "family is required")
}

func TestCompileTargetBadEndian(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: bad: {
			os: "linux"
			family: "unix"
			pointer_size: 8
			endian: "middle"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileTarget(v.LookupPath(cue.ParsePath("target.bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown endianness")
}

func TestCompileTargetLongSeparator(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		target: bad: {
			os: "linux"
			family: "unix"
			pointer_size: 8
			path_separator: "//"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileTarget(v.LookupPath(cue.ParsePath("target.bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one byte")
}

func TestLoadTargets(t *testing.T) {
	targets, err := LoadTargets()
	require.NoError(t, err)

	linux := targets["x86_64-linux"]
	require.NotNil(t, linux)
	assert.Equal(t, ir.FamilyUnix, linux.Family)
	assert.Equal(t, uint64(8), linux.PointerSize)
	assert.False(t, linux.BigEndian)
	assert.Equal(t, int64(2), linux.Libc["ENOENT"])
	assert.Equal(t, int64(11), linux.Libc["EWOULDBLOCK"])
	assert.Equal(t, ir.TypeI32, linux.LibcTypes["c_int"])

	macos := targets["aarch64-macos"]
	require.NotNil(t, macos)
	assert.Equal(t, int64(35), macos.Libc["EWOULDBLOCK"])

	ppc := targets["powerpc-linux"]
	require.NotNil(t, ppc)
	assert.True(t, ppc.BigEndian)
	assert.Equal(t, uint64(4), ppc.PointerSize)

	win := targets["x86_64-windows"]
	require.NotNil(t, win)
	assert.Equal(t, ir.FamilyWindows, win.Family)
	assert.Equal(t, byte('\\'), win.PathSeparator)
	assert.Empty(t, win.Libc)

	wasi := targets["wasm32-wasi"]
	require.NotNil(t, wasi)
	assert.Equal(t, ir.Family("wasi"), wasi.Family)

	for name, tgt := range targets {
		assert.NoError(t, tgt.Validate(), name)
	}
}

func TestTargetNamesSorted(t *testing.T) {
	names, err := TargetNames()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"aarch64-macos",
		"i686-linux",
		"powerpc-linux",
		"wasm32-wasi",
		"x86_64-linux",
		"x86_64-windows",
	}, names)
}

func TestLoadTargetUnknown(t *testing.T) {
	_, err := LoadTarget("vax-vms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target "vax-vms"`)
	assert.Contains(t, err.Error(), "x86_64-linux")
}
