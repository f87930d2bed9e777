package fetchclient

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func pktLine(payload []byte) []byte {
	return []byte(fmt.Sprintf("%04x", len(payload)+4) + string(payload))
}

func TestDemuxPackChannel(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(pktLine(append([]byte{channelPack}, []byte("PACK-bytes-1")...)))
	stream.Write([]byte("0000")) // flush between sections
	stream.Write(pktLine(append([]byte{channelPack}, []byte("-more")...)))

	var sink bytes.Buffer
	err := Demux(&stream, &sink, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "PACK-bytes-1-more", sink.String())
}

func TestDemuxProgressChannel(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(pktLine(append([]byte{channelProgress}, []byte("compressing objects\n")...)))
	stream.Write(pktLine(append([]byte{channelPack}, []byte("PACK")...)))

	var progressLines []string
	var sink bytes.Buffer
	err := Demux(&stream, &sink, func(line string) { progressLines = append(progressLines, line) }, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"compressing objects\n"}, progressLines)
	require.Equal(t, "PACK", sink.String())
}

func TestDemuxErrorChannel(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(pktLine(append([]byte{channelPack}, []byte("PACK")...)))
	stream.Write(pktLine(append([]byte{channelError}, []byte("fatal: remote repository not found")...)))

	var sink bytes.Buffer
	err := Demux(&stream, &sink, nil, nil)
	require.Error(t, err)

	var remoteErr *RemoteError
	require.True(t, errors.As(err, &remoteErr))
	require.Equal(t, "fatal: remote repository not found", remoteErr.Message)
	require.True(t, errors.Is(err, ErrRemoteError))
}

func TestDemuxUnknownChannelSkipped(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(pktLine(append([]byte{0x99}, []byte("mystery")...)))
	stream.Write(pktLine(append([]byte{channelPack}, []byte("PACK")...)))

	var sink bytes.Buffer
	err := Demux(&stream, &sink, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "PACK", sink.String())
}

func TestDemuxACKLineIgnored(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(pktLine(append([]byte{channelACK}, []byte("ACK abc123 common")...)))
	stream.Write(pktLine(append([]byte{channelPack}, []byte("PACK")...)))

	var sink bytes.Buffer
	err := Demux(&stream, &sink, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "PACK", sink.String())
}

func TestDemuxInvalidLengthIsFatal(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("zzzz")

	var sink bytes.Buffer
	err := Demux(&stream, &sink, nil, nil)
	require.Error(t, err)
}

func TestDemuxEmptyStreamFlushesAndReturnsNil(t *testing.T) {
	var sink bytes.Buffer
	err := Demux(&bytes.Buffer{}, &sink, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, sink.Len())
}
