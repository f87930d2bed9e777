package fetchclient

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/nanogit-labs/protocore/log"
)

// side-band-64k channel bytes.
const (
	channelPack     = 0x01
	channelProgress = 0x02
	channelError    = 0x03
	channelACK      = 0x41 // ASCII 'A', multi_ack_detailed lines
)

// DefaultSidebandBufferSize is how many pack-data bytes Demux accumulates
// before flushing to the sink.
const DefaultSidebandBufferSize = 256 * 1024

// ProgressFunc receives channel-2 progress text as it arrives. It may be
// nil, in which case progress is silently discarded.
type ProgressFunc func(line string)

// Demux reads a pkt-line stream (the body of a protocol-v2 fetch
// response) and splits it across the side-band-64k channels: pack bytes
// (channel 1) are buffered and flushed to sink in chunks of bufferSize;
// progress (channel 2) is handed to onProgress; an error (channel 3)
// aborts the demux and is returned wrapped in RemoteError; ACK lines
// (0x41) and any other unrecognized channel byte are logged and
// discarded. Flush-pkts separate sections but do not end the stream --
// Demux runs until the reader returns io.EOF.
func Demux(r io.Reader, sink io.Writer, onProgress ProgressFunc, logger log.Logger) error {
	return demux(r, sink, onProgress, logger, DefaultSidebandBufferSize)
}

func demux(r io.Reader, sink io.Writer, onProgress ProgressFunc, logger log.Logger, bufferSize int) error {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	if bufferSize <= 0 {
		bufferSize = DefaultSidebandBufferSize
	}

	br := bufio.NewReader(r)
	buf := make([]byte, 0, bufferSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if _, err := sink.Write(buf); err != nil {
			return fmt.Errorf("fetchclient: writing packfile sink: %w", err)
		}
		buf = buf[:0]
		return nil
	}

	for {
		length, err := readPktLineLength(br)
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			_ = flush()
			return err
		}
		if length < 4 {
			// Special packets: flush (0000), delim (0001), response-end
			// (0002). None carry a payload; all act as section
			// boundaries inside the packfile stream, not end-of-stream.
			continue
		}

		payload := make([]byte, length-4)
		if _, err := io.ReadFull(br, payload); err != nil {
			_ = flush()
			return fmt.Errorf("fetchclient: reading pkt-line payload: %w", err)
		}

		if len(payload) == 0 {
			// An empty pkt-line ("0004") carries no channel byte.
			continue
		}
		channel := payload[0]
		data := payload[1:]

		switch channel {
		case channelPack:
			buf = append(buf, data...)
			if len(buf) >= bufferSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case channelProgress:
			if onProgress != nil {
				onProgress(string(data))
			}
			logger.Debug("fetch progress", "message", string(data))
		case channelError:
			_ = flush()
			msg := string(data)
			logger.Error("remote reported error", "message", msg)
			return &RemoteError{Message: msg}
		case channelACK:
			logger.Debug("ack line", "line", string(data))
		default:
			logger.Warn("unknown side-band channel", "channel", fmt.Sprintf("0x%02x", channel), "payload", hex.EncodeToString(data))
		}
	}
}

// readPktLineLength reads and decodes a pkt-line's 4-hex-digit length
// prefix. It returns io.EOF only when zero bytes could be read (a clean
// stream end); a partial length prefix is a fatal framing error.
func readPktLineLength(r *bufio.Reader) (int, error) {
	var lenBytes [4]byte
	n, err := io.ReadFull(r, lenBytes[:])
	if err != nil {
		if n == 0 && err == io.ErrUnexpectedEOF {
			return 0, io.EOF
		}
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("fetchclient: reading pkt-line length: %w", err)
	}

	length := 0
	for _, b := range lenBytes {
		v, ok := hexDigit(b)
		if !ok {
			return 0, fmt.Errorf("fetchclient: invalid pkt-line length %q", lenBytes[:])
		}
		length = length<<4 | v
	}
	return length, nil
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	default:
		return 0, false
	}
}
