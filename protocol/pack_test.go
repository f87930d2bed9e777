package protocol_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/nanogit-labs/protocore/protocol"
	"github.com/stretchr/testify/require"
)

// decodePktLines is a test-local inverse of the encoder: it splits a wire
// body back into payloads, with flush/delim/response-end yielding empty
// strings.
func decodePktLines(t *testing.T, body []byte) []string {
	t.Helper()

	var lines []string
	for len(body) > 0 {
		require.GreaterOrEqual(t, len(body), 4, "truncated length prefix")
		n, err := strconv.ParseUint(string(body[:4]), 16, 32)
		require.NoError(t, err)
		if n < 4 {
			lines = append(lines, "")
			body = body[4:]
			continue
		}
		require.GreaterOrEqual(t, len(body), int(n), "truncated payload")
		lines = append(lines, string(body[4:n]))
		body = body[n:]
	}
	return lines
}

func TestPackLineMarshal(t *testing.T) {
	b, err := protocol.PackLine("command=fetch\n").Marshal()
	require.NoError(t, err)
	require.Equal(t, "0012command=fetch\n", string(b))
}

func TestPackLineMarshalEmpty(t *testing.T) {
	b, err := protocol.PackLine(nil).Marshal()
	require.NoError(t, err)
	require.Equal(t, "0004", string(b))
}

func TestPackLineMarshalTooLarge(t *testing.T) {
	_, err := protocol.PackLine(make([]byte, 65517)).Marshal()
	require.ErrorIs(t, err, protocol.ErrDataTooLarge)

	b, err := protocol.PackLine(make([]byte, 65516)).Marshal()
	require.NoError(t, err)
	require.Equal(t, "fff0", string(b[:4]))
}

func TestSpecialPackMarshal(t *testing.T) {
	for _, p := range []protocol.SpecialPack{
		protocol.FlushPacket,
		protocol.DelimPacket,
		protocol.ResponseEndPacket,
	} {
		b, err := p.Marshal()
		require.NoError(t, err)
		require.Equal(t, string(p), string(b))
	}
}

func TestFormatPacksRoundTrip(t *testing.T) {
	body, err := protocol.FormatPacks(
		protocol.PackLine("command=fetch\n"),
		protocol.PackLine("want abc\n"),
		protocol.DelimPacket,
		protocol.PackLine("done\n"),
		protocol.FlushPacket,
	)
	require.NoError(t, err)

	lines := decodePktLines(t, body)
	require.Equal(t, []string{"command=fetch\n", "want abc\n", "", "done\n", ""}, lines)
}

func TestFormatPacksAppendsFlush(t *testing.T) {
	body, err := protocol.FormatPacks(protocol.PackLine("want abc\n"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(body), "0000"))
}

func TestFormatPacksKeepsExplicitFlush(t *testing.T) {
	body, err := protocol.FormatPacks(
		protocol.PackLine("done\n"),
		protocol.FlushPacket,
	)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(body), "0000"))
}

func TestFormatPacksPropagatesMarshalError(t *testing.T) {
	_, err := protocol.FormatPacks(protocol.PackLine(make([]byte, 70000)))
	require.ErrorIs(t, err, protocol.ErrDataTooLarge)
}
