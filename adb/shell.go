package adb

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	shellPacketStdout   = 1
	shellPacketStderr   = 2
	shellPacketExitCode = 3
)

// ShellResult is the decoded outcome of running a shell command over an
// ADB stream.
type ShellResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	ShellV2  bool
}

// Shell runs cmd over a fresh stream, preferring the shell_v2 sub-protocol
// when the peer advertised it. shell_v2 gives a real exit code and
// separates stdout/stderr; plain shell returns everything as stdout with
// exit code 0.
func (c *Connection) Shell(cmd string, timeout time.Duration) (*ShellResult, error) {
	useV2 := c.features.ShellV2()

	service := "shell:" + cmd
	if useV2 {
		service = "shell,v2:" + cmd
	}

	s, err := c.OpenStream(service)
	if err != nil {
		return nil, err
	}
	defer c.CloseStream(s)

	data, err := c.RecvUntilClose(s, timeout)
	if err != nil {
		return nil, err
	}

	if useV2 {
		return decodeShellV2(data)
	}
	return &ShellResult{Stdout: data, ExitCode: 0, ShellV2: false}, nil
}

// decodeShellV2 demultiplexes the shell_v2 packet stream: repeated frames
// of (id: u8, length: u32 little-endian, payload). Unknown ids are skipped
// rather than rejected, since future protocol revisions may add frame
// kinds this client doesn't know about yet.
func decodeShellV2(data []byte) (*ShellResult, error) {
	result := &ShellResult{ExitCode: -1, ShellV2: true}

	for len(data) > 0 {
		if len(data) < 5 {
			return nil, NewMessageInvalidError("shell_v2 frame header truncated")
		}
		id := data[0]
		length := binary.LittleEndian.Uint32(data[1:5])
		data = data[5:]

		if uint64(length) > uint64(len(data)) {
			return nil, NewMessageInvalidError("shell_v2 frame payload exceeds remaining bytes")
		}
		payload := data[:length]
		data = data[length:]

		switch id {
		case shellPacketStdout:
			result.Stdout = append(result.Stdout, payload...)
		case shellPacketStderr:
			result.Stderr = append(result.Stderr, payload...)
		case shellPacketExitCode:
			if len(payload) != 1 {
				return nil, NewMessageInvalidError(fmt.Sprintf("shell_v2 exit code frame must be 1 byte, got %d", len(payload)))
			}
			result.ExitCode = int(payload[0])
		default:
			// Unknown frame kind: skip.
		}
	}

	return result, nil
}
