package testutil

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceReader_Deterministic(t *testing.T) {
	a := NewSequenceReader(0xfe)
	b := NewSequenceReader(0xfe)

	bufA := make([]byte, 4)
	bufB := make([]byte, 4)
	_, err := io.ReadFull(a, bufA)
	require.NoError(t, err)
	_, err = io.ReadFull(b, bufB)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xfe, 0xff, 0x00, 0x01}, bufA)
	assert.Equal(t, bufA, bufB)
	assert.Equal(t, 4, a.BytesRead())
}

func TestSequenceReader_ContinuesAcrossReads(t *testing.T) {
	r := NewSequenceReader(10)
	first := make([]byte, 2)
	second := make([]byte, 2)
	_, _ = r.Read(first)
	_, _ = r.Read(second)
	assert.Equal(t, []byte{10, 11}, first)
	assert.Equal(t, []byte{12, 13}, second)
}

func TestFailingReader(t *testing.T) {
	n, err := FailingReader{}.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrEntropyUnavailable)
}

func TestTargetsValidate(t *testing.T) {
	for _, target := range []struct {
		name  string
		valid error
	}{
		{"unix", UnixTarget().Validate()},
		{"windows", WindowsTarget().Validate()},
		{"wasi", WasiTarget().Validate()},
	} {
		t.Run(target.name, func(t *testing.T) {
			assert.NoError(t, target.valid)
		})
	}
}
