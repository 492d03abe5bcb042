package textenc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/psp/internal/textenc"
)

func TestIsUTF8(t *testing.T) {
	for _, name := range []string{"utf-8", "UTF-8", "utf8", "utf_8"} {
		assert.True(t, textenc.IsUTF8(name), name)
	}
	for _, name := range []string{"latin-1", "binary", "", "utf-16"} {
		assert.False(t, textenc.IsUTF8(name), name)
	}
}

func TestLookup(t *testing.T) {
	_, err := textenc.Lookup("binary")
	require.Error(t, err)
	_, err = textenc.Lookup("no-such-encoding")
	require.Error(t, err)
	_, err = textenc.Lookup("ISO-8859-1")
	require.NoError(t, err)
}

func TestRoundTripLatin1(t *testing.T) {
	raw, err := textenc.Encode("café", "ISO-8859-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, raw)

	text, err := textenc.Decode(raw, "ISO-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestDecodeInvalidUTF8(t *testing.T) {
	_, err := textenc.Decode([]byte{0xff, 0xfe}, "utf-8")
	require.Error(t, err)
}
