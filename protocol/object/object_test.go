package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeValues(t *testing.T) {
	// The numeric codes are the pack format's 3-bit values and must never
	// drift.
	require.Equal(t, Type(1), TypeCommit)
	require.Equal(t, Type(2), TypeTree)
	require.Equal(t, Type(3), TypeBlob)
	require.Equal(t, Type(4), TypeTag)
	require.Equal(t, Type(5), TypeReserved)
	require.Equal(t, Type(6), TypeOfsDelta)
	require.Equal(t, Type(7), TypeRefDelta)
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "commit", TypeCommit.String())
	require.Equal(t, "ref-delta", TypeRefDelta.String())
	require.Equal(t, "invalid(0)", TypeInvalid.String())
	require.Equal(t, "invalid(12)", Type(12).String())
}

func TestTypeBasic(t *testing.T) {
	for _, typ := range []Type{TypeCommit, TypeTree, TypeBlob, TypeTag} {
		require.True(t, typ.Basic(), typ)
	}
	for _, typ := range []Type{TypeInvalid, TypeReserved, TypeOfsDelta, TypeRefDelta} {
		require.False(t, typ.Basic(), typ)
	}
}

func TestTypeHeaderName(t *testing.T) {
	name, ok := TypeBlob.HeaderName()
	require.True(t, ok)
	require.Equal(t, "blob", name)

	_, ok = TypeOfsDelta.HeaderName()
	require.False(t, ok)
}
