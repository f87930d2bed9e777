package adb

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nanogit-labs/protocore/log"
)

// defaultFeatures is the static feature list advertised in every CNXN
// banner this client sends.
const defaultFeatures = "shell_v2,cmd,stat_v2,ls_v2,fixed_push_mkdir,apex,abb," +
	"fixed_push_symlink_timestamp,abb_exec,remount_shell,track_app," +
	"sendrecv_v2,sendrecv_v2_brotli,sendrecv_v2_lz4,sendrecv_v2_zstd,sendrecv_v2_dry_run_send"

// defaultTimeout is the send/recv/latch-wait timeout used everywhere a
// caller does not override it.
const defaultTimeout = 5 * time.Second

// DeviceFeatures is the set of capability tokens parsed from a peer's CNXN
// banner.
type DeviceFeatures struct {
	tokens map[string]struct{}
}

// ParseDeviceFeatures accepts both "device::prop=val;features=a,b" and a
// bare "a,b,c" feature list, matching what real adbd banners and emulators
// both send.
func ParseDeviceFeatures(banner []byte) DeviceFeatures {
	f := DeviceFeatures{tokens: make(map[string]struct{})}

	s := string(banner)
	if idx := strings.Index(s, "::"); idx >= 0 {
		s = s[idx+2:]
	}

	var featureList string
	if strings.Contains(s, "=") {
		for _, kv := range strings.Split(s, ";") {
			k, v, ok := strings.Cut(kv, "=")
			if ok && k == "features" {
				featureList = v
				break
			}
		}
	} else {
		featureList = s
	}

	for _, tok := range strings.Split(featureList, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			f.tokens[tok] = struct{}{}
		}
	}
	return f
}

// Has reports whether the peer advertised the given feature token.
func (f DeviceFeatures) Has(token string) bool {
	_, ok := f.tokens[token]
	return ok
}

// ShellV2 reports whether the peer supports the shell_v2 sub-protocol.
func (f DeviceFeatures) ShellV2() bool {
	return f.Has("shell_v2")
}

// Option configures a Connection before it dials or handshakes.
type Option func(*Connection) error

// WithConn supplies an already-open net.Conn (e.g. a test net.Pipe half)
// instead of having NewConnection dial a TCP socket itself.
func WithConn(conn net.Conn) Option {
	return func(c *Connection) error {
		c.presetConn = conn
		return nil
	}
}

// WithTimeout overrides the default 5-second send/recv/latch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Connection) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(c *Connection) error {
		c.logger = l
		return nil
	}
}

// Connection owns the socket and the stream table for one ADB peer. It
// performs the CNXN handshake, runs a single dispatcher goroutine, and
// exposes OpenStream/SendToStream/CloseStream/Disconnect to any number of
// caller goroutines.
type Connection struct {
	presetConn net.Conn
	timeout    time.Duration
	logger     log.Logger

	mu       sync.Mutex // guards structural edits: conn lifecycle, stream table edits alongside it
	codec    *messageCodec
	conn     net.Conn
	streams  *streamTable
	features DeviceFeatures

	// peerMaxPayload is min(peer's advertised arg1, maxPayload), set during
	// the handshake. Writes larger than this are split into multiple WRTEs.
	peerMaxPayload uint32

	dispatchDone chan struct{}
}

// NewConnection dials host:port and performs the CNXN handshake. Pass
// WithConn to reuse an already-open connection instead (e.g. in tests).
func NewConnection(host string, port int, opts ...Option) (*Connection, error) {
	c := &Connection{
		timeout: defaultTimeout,
		logger:  log.NoopLogger{},
		streams: newStreamTable(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	conn := c.presetConn
	if conn == nil {
		var err error
		conn, err = net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), c.timeout)
		if err != nil {
			return nil, NewConnectionClosedError("dial", err)
		}
	}
	c.conn = conn
	c.codec = newMessageCodec(conn)

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	c.dispatchDone = make(chan struct{})
	go c.dispatchLoop()

	return c, nil
}

func (c *Connection) handshake() error {
	banner := fmt.Sprintf("host::features=%s", defaultFeatures)
	if err := c.codec.send(cmdCnxn, protocolVersion, maxPayload, []byte(banner)); err != nil {
		return err
	}

	msg, err := c.codec.recv(true, c.timeout)
	if err != nil {
		return err
	}
	if msg.command != cmdCnxn {
		return NewMessageInvalidError("expected CNXN in handshake response")
	}

	c.peerMaxPayload = msg.arg1
	if c.peerMaxPayload == 0 || c.peerMaxPayload > maxPayload {
		c.peerMaxPayload = maxPayload
	}
	c.features = ParseDeviceFeatures(msg.payload)
	c.logger.Debug("adb handshake complete", "maxPayload", c.peerMaxPayload, "features", msg.payload)
	return nil
}

// MaxPayload returns the negotiated per-message payload ceiling: the
// smaller of the peer's advertised limit and this client's own 256 KiB cap.
func (c *Connection) MaxPayload() uint32 {
	return c.peerMaxPayload
}

// Features returns the peer's advertised capability set, valid after a
// successful handshake.
func (c *Connection) Features() DeviceFeatures {
	return c.features
}

// OpenStream opens a new multiplexed stream for the given service string
// (e.g. "shell,v2:getprop").
func (c *Connection) OpenStream(service string) (*Stream, error) {
	c.mu.Lock()
	localID := c.streams.allocateID()
	s := newStream(localID, service)
	c.streams.register(s)
	c.mu.Unlock()

	cleanup := func() {
		c.streams.remove(localID)
		c.streams.releaseID(localID)
	}

	payload := append([]byte(service), 0)
	if err := c.codec.send(cmdOpen, uint32(localID), 0, payload); err != nil {
		cleanup()
		return nil, err
	}

	if !s.sendLatch.wait(c.timeout) {
		cleanup()
		return nil, NewConnectionTimeoutError("open stream")
	}

	state, _ := s.snapshotState()
	if state == stateClosed {
		cleanup()
		return nil, NewStreamClosedError(localID)
	}
	return s, nil
}

// SendToStream writes data to an already-opened stream and waits for the
// peer's OKAY acknowledgement. Payloads larger than the negotiated max are
// split into multiple WRTE messages, each individually acknowledged.
func (c *Connection) SendToStream(s *Stream, data []byte) error {
	_, remoteID := s.snapshotState()
	if remoteID == 0 {
		return NewStreamClosedError(s.localID)
	}

	limit := int(c.peerMaxPayload)
	if limit == 0 {
		limit = maxPayload
	}

	for first := true; first || len(data) > 0; first = false {
		chunk := data
		if len(chunk) > limit {
			chunk = chunk[:limit]
		}
		data = data[len(chunk):]

		// Swap in a fresh send latch so we wait on this write's ack, not
		// a stale release from a previous WRTE.
		ack := s.armSendLatch()

		if err := c.codec.send(cmdWrte, uint32(s.localID), remoteID, chunk); err != nil {
			return err
		}

		if !ack.wait(c.timeout) {
			return NewStreamTimeoutError(s.localID, "send")
		}
	}
	return nil
}

// CloseStream sends CLSE (if not already closed) and waits for the
// dispatcher to acknowledge the close.
func (c *Connection) CloseStream(s *Stream) error {
	state, remoteID := s.snapshotState()
	if state == stateClosed {
		return nil
	}

	if state == stateOpened || state == stateOpening {
		if err := c.codec.send(cmdClse, uint32(s.localID), remoteID, nil); err != nil {
			return err
		}
	}

	if !s.currentRecvLatch().wait(c.timeout) {
		return NewStreamTimeoutError(s.localID, "close")
	}
	return nil
}

// RecvUntilClose blocks until the stream transitions to closed, returning
// every payload byte received in arrival order.
func (c *Connection) RecvUntilClose(s *Stream, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	var collected []byte
	for {
		// Arm before draining so data landing between the drain and the
		// wait still releases the latch we are about to block on.
		ready := s.resetRecvLatch()
		collected = append(collected, s.drainData()...)

		state, _ := s.snapshotState()
		if state == stateClosed || state == stateClosing {
			collected = append(collected, s.drainData()...)
			return collected, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return collected, NewStreamTimeoutError(s.localID, "recv")
		}
		ready.wait(remaining)
	}
}

// Disconnect closes the socket, releases every outstanding stream's
// latches so waiters observe closed, and waits (best-effort, capped at 2s)
// for the dispatcher goroutine to exit.
//
// We don't bother with a graceful per-stream CLSE handshake before closing
// the socket: the peer tears down its side when the TCP connection drops,
// so this only needs to release our own resources.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	streams := c.streams.removeAll()
	c.mu.Unlock()

	for _, s := range streams {
		s.setClosed()
	}

	select {
	case <-c.dispatchDone:
	case <-time.After(2 * time.Second):
	}
	return nil
}

func (c *Connection) dispatchLoop() {
	defer close(c.dispatchDone)
	for {
		msg, err := c.codec.recv(false, c.timeout)
		if err != nil {
			c.logger.Debug("adb dispatcher exiting", "error", err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Connection) dispatch(msg *message) {
	// OKAY/WRTE/CLSE address the stream by our local id in arg1 (the peer
	// echoes back the id we assigned in OPEN).
	localID := int(msg.arg1)
	s, ok := c.streams.lookup(localID)
	if !ok {
		c.logger.Warn("adb: message for unknown stream, dropped", "localID", localID, "command", msg.command)
		return
	}

	state, _ := s.snapshotState()
	switch msg.command {
	case cmdOkay:
		switch state {
		case stateOpening:
			s.setOpened(msg.arg0)
		case stateOpened:
			s.releaseSendLatch()
		default:
			c.logger.Warn("adb: unexpected OKAY on stream", "localID", localID, "state", state)
		}
	case cmdWrte:
		if state != stateOpened {
			c.logger.Warn("adb: unexpected WRTE on stream", "localID", localID, "state", state)
			return
		}
		_, remoteID := s.snapshotState()
		if err := c.codec.send(cmdOkay, uint32(localID), remoteID, nil); err != nil {
			c.logger.Warn("adb: failed to ack WRTE", "localID", localID, "error", err)
		}
		s.appendData(msg.payload)
	case cmdClse:
		c.mu.Lock()
		c.streams.remove(localID)
		c.streams.releaseID(localID)
		c.mu.Unlock()
		s.setClosed()
	}
}

