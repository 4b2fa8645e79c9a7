package osstr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrowHost_RawBytesAccepted(t *testing.T) {
	raw := []byte{'a', 0xff, 0xfe, 'b'}
	s, err := NarrowHost{}.FromBytes(raw)
	require.NoError(t, err)

	assert.False(t, s.IsWide())
	assert.Equal(t, 4, s.Len())

	got, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// Converting invalid UTF-8 to wide units fails.
	_, err = s.Units()
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "utf-8", encErr.Encoding)
}

func TestNarrowHost_FromUnitsValidates(t *testing.T) {
	s, err := NarrowHost{}.FromUnits([]uint16{'h', 'i', 0xD83D, 0xDE00})
	require.NoError(t, err)
	assert.Equal(t, "hi\U0001F600", s.String())

	_, err = NarrowHost{}.FromUnits([]uint16{'x', 0xD800})
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "utf-16", encErr.Encoding)
}

func TestWideHost_UnpairedSurrogatesAccepted(t *testing.T) {
	units := []uint16{'a', 0xDC00, 'b'}
	s, err := WideHost{}.FromUnits(units)
	require.NoError(t, err)

	assert.True(t, s.IsWide())
	assert.Equal(t, 3, s.Len())

	got, err := s.Units()
	require.NoError(t, err)
	assert.Equal(t, units, got)

	_, err = s.Bytes()
	assert.Error(t, err)
}

func TestWideHost_FromBytesValidates(t *testing.T) {
	s, err := WideHost{}.FromBytes([]byte("p\u00e9"))
	require.NoError(t, err)
	units, err := s.Units()
	require.NoError(t, err)
	assert.Equal(t, []uint16{'p', 0x00E9}, units)

	_, err = WideHost{}.FromBytes([]byte{0xC3})
	assert.Error(t, err)
}

func TestRoundTripAcrossModels(t *testing.T) {
	texts := []string{"", "plain", "\u00fcber/\u00e4rger", "\U0001F600 smile", "\ufeffbom-first"}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			narrow := FromString(NarrowHost{}, text)
			units, err := narrow.Units()
			require.NoError(t, err)

			wide, err := WideHost{}.FromUnits(units)
			require.NoError(t, err)
			b, err := wide.Bytes()
			require.NoError(t, err)

			assert.Equal(t, text, string(b))
			assert.Equal(t, text, wide.String())
		})
	}
}

func TestEqual(t *testing.T) {
	a := FromString(NarrowHost{}, "x")
	b := FromString(NarrowHost{}, "x")
	w := FromString(WideHost{}, "x")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(w))
	assert.False(t, a.Equal(FromString(NarrowHost{}, "y")))
}

func TestByName(t *testing.T) {
	h, err := ByName("wide")
	require.NoError(t, err)
	assert.Equal(t, ModelWide, h.Name())

	h, err = ByName("narrow")
	require.NoError(t, err)
	assert.Equal(t, ModelNarrow, h.Name())

	h, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, Native().Name(), h.Name())

	_, err = ByName("ebcdic")
	assert.Error(t, err)
}
