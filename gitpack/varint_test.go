package gitpack

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeObjectHeader is the inverse of readObjectHeader, used only to build
// fixtures: first byte carries type (3 bits) and the low 4 bits of size,
// continuation bytes carry 7 bits each.
func encodeObjectHeader(typ ObjectType, size int64) []byte {
	first := byte(typ&0x07)<<4 | byte(size&0x0f)
	size >>= 4
	out := []byte{}
	cont := size > 0
	if cont {
		first |= 0x80
	}
	out = append(out, first)
	for cont {
		b := byte(size & 0x7f)
		size >>= 7
		cont = size > 0
		if cont {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func TestReadObjectHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		typ  ObjectType
		size int64
	}{
		{"nibble boundary low", TypeBlob, 15},
		{"nibble boundary high", TypeBlob, 16},
		{"one continuation byte max", TypeCommit, 2047},
		{"two continuation bytes", TypeCommit, 2048},
		{"large multi-byte", TypeTree, 16511},
		{"very large", TypeTag, 1_000_000},
		{"zero", TypeBlob, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := encodeObjectHeader(tc.typ, tc.size)
			r := bufio.NewReader(bytes.NewReader(encoded))
			gotType, gotSize, err := readObjectHeader(r)
			require.NoError(t, err)
			require.Equal(t, tc.typ, gotType)
			require.Equal(t, tc.size, gotSize)
		})
	}
}

func TestReadObjectHeaderRejectsReservedType(t *testing.T) {
	// type nibble 5 (0b101) in bits 4-6, no continuation.
	encoded := []byte{0x50}
	r := bufio.NewReader(bytes.NewReader(encoded))
	_, _, err := readObjectHeader(r)
	require.Error(t, err)
}

func TestReadOfsDeltaOffsetRoundTrip(t *testing.T) {
	// Encodings below were independently derived from git's
	// encode_ofs_delta algorithm (offsets chosen to exercise 1, 2, and 5
	// byte representations).
	cases := []struct {
		name   string
		offset int64
		bytes  []byte
	}{
		{"one byte", 5, []byte{0x05}},
		{"two bytes", 200, []byte{0x80, 0x48}},
		{"two bytes, 16383", 16383, []byte{0xfe, 0x7f}},
		{"two bytes, 16384", 16384, []byte{0xff, 0x00}},
		{"five bytes", 5_000_000_000, []byte{0x91, 0xcf, 0x96, 0xe3, 0x00}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(bytes.NewReader(tc.bytes))
			got, err := readOfsDeltaOffset(r)
			require.NoError(t, err)
			require.Equal(t, tc.offset, got)
			require.True(t, got > 0, "reverse offset must be positive")
		})
	}
}

func TestReadDeltaSizeRoundTrip(t *testing.T) {
	cases := []struct {
		size  int64
		bytes []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16511, []byte{0xff, 0x80, 0x01}},
	}
	for _, tc := range cases {
		r := bufio.NewReader(bytes.NewReader(tc.bytes))
		got, err := readDeltaSize(r)
		require.NoError(t, err)
		require.Equal(t, tc.size, got)
	}
}
