package protocol_test

import (
	"errors"
	"testing"

	"github.com/nanogit-labs/protocore/protocol"
	"github.com/stretchr/testify/require"
)

func TestServerUnavailableErrorIs(t *testing.T) {
	err := protocol.NewServerUnavailableError(503, errors.New("upstream down"))
	require.ErrorIs(t, err, protocol.ErrServerUnavailable)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "upstream down")
}

func TestServerUnavailableErrorUnwrap(t *testing.T) {
	inner := errors.New("gateway timeout")
	err := protocol.NewServerUnavailableError(504, inner)
	require.ErrorIs(t, err, inner)

	var sErr *protocol.ServerUnavailableError
	require.ErrorAs(t, err, &sErr)
	require.Equal(t, 504, sErr.StatusCode)
}

func TestServerUnavailableErrorWithoutCause(t *testing.T) {
	err := protocol.NewServerUnavailableError(500, nil)
	require.ErrorIs(t, err, protocol.ErrServerUnavailable)
	require.Equal(t, "server unavailable (status 500)", err.Error())
}
