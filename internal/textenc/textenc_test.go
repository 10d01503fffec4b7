package textenc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantErr  bool
	}{
		{name: "utf-8", input: "utf-8", wantName: "utf-8"},
		{name: "utf8 alias upper case", input: "UTF8", wantName: "utf-8"},
		{name: "base64", input: "Base64", wantName: "base64"},
		{name: "latin-1 via iana", input: "ISO-8859-1", wantName: "iso-8859-1"},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "klingon-8", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := Lookup(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupported))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, codec.Name())
		})
	}
}

func TestUTF8Encode(t *testing.T) {
	codec, err := Lookup("utf-8")
	require.NoError(t, err)

	out, err := codec.Encode("héllo ✓")
	require.NoError(t, err)
	assert.Equal(t, []byte("héllo ✓"), out)

	_, err = codec.Encode(string([]byte{0xff, 0xfe}))
	assert.Error(t, err)
}

func TestBase64Encode(t *testing.T) {
	codec, err := Lookup("base64")
	require.NoError(t, err)

	out, err := codec.Encode("AAEC/w==")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0xff}, out)

	_, err = codec.Encode("not base64!")
	assert.Error(t, err)
}

func TestCharsetEncode(t *testing.T) {
	codec, err := Lookup("iso-8859-1")
	require.NoError(t, err)

	out, err := codec.Encode("café")
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, out)

	// The snowman has no latin-1 representation.
	_, err = codec.Encode("☃")
	assert.Error(t, err)
}
