package gitobject

import (
	"testing"

	"github.com/nanogit-labs/protocore/gitpack"
	"github.com/stretchr/testify/require"
)

func TestParseBlobWrapsBytesUnmodified(t *testing.T) {
	data := []byte{0x00, 0xff, 'h', 'i', 0x00}
	blob := ParseBlob(data)
	require.Equal(t, data, blob.Data)
}

func TestDecodeDispatchesBlob(t *testing.T) {
	decoded, err := Decode(&gitpack.ResolvedObject{Type: gitpack.TypeBlob, Data: []byte("content")})
	require.NoError(t, err)
	blob, ok := decoded.(*Blob)
	require.True(t, ok)
	require.Equal(t, []byte("content"), blob.Data)
}

func TestDecodeRejectsDeltaType(t *testing.T) {
	_, err := Decode(&gitpack.ResolvedObject{Type: gitpack.TypeOfsDelta, Data: nil})
	require.Error(t, err)
}
