package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"b": 1, "a": "x", "c": true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":true}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// An escaped backslash followed by the text u2028 stays escaped.
	got, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonical_ControlCharacters(t *testing.T) {
	got, err := MarshalCanonical("q\"\\\b\f\n\r\t\x01\x1f")
	require.NoError(t, err)
	assert.Equal(t, `"q\"\\\b\f\n\r\t\u0001\u001f"`, string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"k": struct{}{}})
	assert.Error(t, err)
}

func TestMarshalCanonical_NestedArrays(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"regions": []any{
			map[string]any{"offset": uint64(0), "size": uint64(8), "frozen": true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"regions":[{"frozen":true,"offset":0,"size":8}]}`, string(got))
}

func TestCompareUTF16(t *testing.T) {
	// U+1F600 sorts after U+FF61 in UTF-8 byte order but before it in UTF-16.
	assert.Equal(t, -1, compareUTF16("\U0001F600", "\uFF61"))
	assert.Equal(t, 0, compareUTF16("a", "a"))
	assert.Equal(t, -1, compareUTF16("a", "aa"))
}
