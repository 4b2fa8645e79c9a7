package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tagvm/internal/ir"
)

func TestFromUint_Truncates(t *testing.T) {
	s := FromUint(0x1234, 1)
	b, err := s.ToBits(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x34), b)
	assert.Equal(t, uint64(1), s.Size())
}

func TestFromInt_TwosComplement(t *testing.T) {
	s := FromInt(-1, 4)

	u, err := s.ToU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xffffffff), u)

	i, err := s.ToI32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), i)

	i64, err := FromInt(-7, 8).ToI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-7), i64)
}

func TestToBits_Errors(t *testing.T) {
	_, err := Undef(4).ToBits(4)
	assert.True(t, IsUndefinedValue(err))

	_, err = FromUint(1, 2).ToBits(4)
	assert.True(t, HasCode(err, ErrCodeLayoutMismatch))

	_, err = FromPointer(Pointer{Alloc: 1}, 8).ToU64()
	assert.True(t, HasCode(err, ErrCodeUnsupportedOperation))
}

func TestNotUndef(t *testing.T) {
	_, err := Undef(8).NotUndef()
	assert.True(t, IsUndefinedValue(err))

	s, err := FromUint(3, 8).NotUndef()
	require.NoError(t, err)
	assert.False(t, s.IsUndef())
}

func TestToPointer(t *testing.T) {
	p := Pointer{Alloc: 3, Offset: 8, Tag: 9}
	got, err := FromPointer(p, 8).ToPointer()
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = FromUint(0, 8).ToPointer()
	assert.True(t, IsProvenanceViolation(err))

	_, err = FromUint(0x1000, 8).ToPointer()
	assert.True(t, IsProvenanceViolation(err))

	_, err = Undef(8).ToPointer()
	assert.True(t, IsUndefinedValue(err))
}

func TestScalar_String(t *testing.T) {
	assert.Equal(t, "0x00ff", FromUint(255, 2).String())
	assert.Equal(t, "undef<4>", Undef(4).String())
	assert.Equal(t, "alloc2+4<7>", FromPointer(Pointer{Alloc: 2, Offset: 4, Tag: 7}, 8).String())
	assert.Equal(t, "0x01", FromBool(true).String())
}

func TestImmFromIntChecked(t *testing.T) {
	i8 := ir.Primitive(ir.TypeI8, 1)

	imm, err := ImmFromIntChecked(-128, i8)
	require.NoError(t, err)
	assert.Equal(t, i8, imm.Layout)

	_, err = ImmFromIntChecked(127, i8)
	require.NoError(t, err)

	_, err = ImmFromIntChecked(128, i8)
	assert.True(t, HasCode(err, ErrCodeUnsupportedOperation))

	_, err = ImmFromIntChecked(-129, i8)
	assert.True(t, HasCode(err, ErrCodeUnsupportedOperation))

	_, err = ImmFromIntChecked(-1<<63, ir.Primitive(ir.TypeI64, 8))
	require.NoError(t, err)
}

func TestImmFromUintChecked(t *testing.T) {
	u16 := ir.Primitive(ir.TypeU16, 2)

	_, err := ImmFromUintChecked(0xffff, u16)
	require.NoError(t, err)

	_, err = ImmFromUintChecked(0x10000, u16)
	assert.True(t, HasCode(err, ErrCodeUnsupportedOperation))

	pair := ir.NewStruct("Pair", 2, 1)
	_, err = ImmFromUintChecked(1, pair)
	assert.True(t, HasCode(err, ErrCodeLayoutMismatch))
}
