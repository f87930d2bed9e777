package adb

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// command identifies one of the seven ADB wire commands. The wire encoding
// is the 4 ASCII bytes read/written little-endian as a uint32.
type command uint32

var (
	cmdSync = newCommand("SYNC")
	cmdCnxn = newCommand("CNXN")
	cmdAuth = newCommand("AUTH")
	cmdOpen = newCommand("OPEN")
	cmdOkay = newCommand("OKAY")
	cmdClse = newCommand("CLSE")
	cmdWrte = newCommand("WRTE")
)

func newCommand(ascii string) command {
	return command(binary.LittleEndian.Uint32([]byte(ascii)))
}

func (c command) valid() bool {
	switch c {
	case cmdSync, cmdCnxn, cmdAuth, cmdOpen, cmdOkay, cmdClse, cmdWrte:
		return true
	default:
		return false
	}
}

// protocolVersion is the ADB protocol version advertised in CNXN.
const protocolVersion uint32 = 0x01000000

// maxPayload is the hard ceiling on a single message's payload, regardless
// of what a peer advertises.
const maxPayload = 256 * 1024

const messageHeaderSize = 24 // 6 little-endian uint32 fields

// message is one decoded ADB frame: header fields plus payload.
type message struct {
	command command
	arg0    uint32
	arg1    uint32
	payload []byte
}

// messageCodec frames and deframes ADB messages on a full-duplex byte
// stream. It is the only component that touches the socket directly. All
// writes are serialized by sendMu; reads are only ever performed by the
// single dispatcher goroutine, so no read-side lock is needed.
type messageCodec struct {
	conn   net.Conn
	sendMu sync.Mutex
}

func newMessageCodec(conn net.Conn) *messageCodec {
	return &messageCodec{conn: conn}
}

// send serializes and writes one ADB message under the send mutex so that
// concurrent senders never interleave a header with another message's
// payload.
func (c *messageCodec) send(cmd command, arg0, arg1 uint32, payload []byte) error {
	var dataCRC uint32
	for _, b := range payload {
		dataCRC += uint32(b)
	}

	var header [messageHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(cmd))
	binary.LittleEndian.PutUint32(header[4:8], arg0)
	binary.LittleEndian.PutUint32(header[8:12], arg1)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[16:20], dataCRC)
	binary.LittleEndian.PutUint32(header[20:24], uint32(cmd)^0xFFFFFFFF)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := c.conn.Write(header[:]); err != nil {
		return wrapSendError(err)
	}
	if len(payload) > 0 {
		if _, err := c.conn.Write(payload); err != nil {
			return wrapSendError(err)
		}
	}
	return nil
}

func wrapSendError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewConnectionTimeoutError("send")
	}
	return NewConnectionClosedError("send", err)
}

// recv reads exactly one message. headerTimeout controls whether the
// initial header read honors the connection's configured deadline (used by
// handshake/synchronous calls) or retries indefinitely past per-read
// timeouts (used by the dispatcher's long-lived read loop, which must
// tolerate idle periods without treating them as fatal).
func (c *messageCodec) recv(headerTimeout bool, readTimeout time.Duration) (*message, error) {
	header := make([]byte, messageHeaderSize)
	if err := c.readExact(header, headerTimeout, readTimeout); err != nil {
		return nil, err
	}

	cmd := command(binary.LittleEndian.Uint32(header[0:4]))
	arg0 := binary.LittleEndian.Uint32(header[4:8])
	arg1 := binary.LittleEndian.Uint32(header[8:12])
	length := binary.LittleEndian.Uint32(header[12:16])
	dataCRC := binary.LittleEndian.Uint32(header[16:20])
	magic := binary.LittleEndian.Uint32(header[20:24])

	if !cmd.valid() {
		return nil, NewMessageInvalidError("unknown command")
	}
	if magic != uint32(cmd)^0xFFFFFFFF {
		return nil, NewMessageInvalidError("magic mismatch")
	}
	if length > maxPayload {
		return nil, NewMessageInvalidError("payload length exceeds maximum")
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		// The dispatcher always uses headerTimeout=false for the header,
		// but once a header has arrived the payload is expected promptly,
		// so it is read with the normal (bounded) timeout regardless.
		if err := c.readExact(payload, true, readTimeout); err != nil {
			return nil, err
		}
		var sum uint32
		for _, b := range payload {
			sum += uint32(b)
		}
		if sum != dataCRC {
			return nil, NewMessageInvalidError("checksum mismatch")
		}
	}

	return &message{command: cmd, arg0: arg0, arg1: arg1, payload: payload}, nil
}

// readExact fills buf completely, looping on short reads. When
// honorTimeout is false, socket timeout errors are treated as "try again"
// rather than fatal — used only for the dispatcher's header read, which
// must survive arbitrarily long idle periods between messages.
func (c *messageCodec) readExact(buf []byte, honorTimeout bool, readTimeout time.Duration) error {
	total := 0
	for total < len(buf) {
		if honorTimeout && readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		} else {
			_ = c.conn.SetReadDeadline(time.Time{})
		}

		n, err := c.conn.Read(buf[total:])
		total += n
		if err != nil {
			if !honorTimeout {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
			}
			if errors.Is(err, io.EOF) {
				return NewConnectionClosedError("recv", err)
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return NewConnectionTimeoutError("recv")
			}
			return NewConnectionClosedError("recv", err)
		}
	}
	return nil
}
