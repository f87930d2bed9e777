package adb

import (
	"sync"
	"time"
)

type streamState int

const (
	stateOpening streamState = iota
	stateOpened
	stateClosing
	stateClosed
)

// latch is a single-fire signal that tolerates being released more than
// once; a release of an already-released latch is a no-op, never a
// double-release. A Go sync.Mutex/sync.Cond would panic or deadlock on a
// naive double-unlock; closing a channel exactly once via sync.Once gives
// the same "release is idempotent, wait blocks until released" semantics.
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

// release signals the latch. Safe to call multiple times.
func (l *latch) release() {
	l.once.Do(func() { close(l.ch) })
}

// wait blocks until release is called or d elapses, returning false on
// timeout. d<=0 waits forever.
func (l *latch) wait(d time.Duration) bool {
	if d <= 0 {
		<-l.ch
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Stream is one multiplexed ADB stream: a service request/response channel
// identified locally by localID and, once the peer acknowledges, by
// remoteID. remoteID is zero iff state is opening or the stream has closed
// without ever opening; once set it never changes.
type Stream struct {
	localID  int
	remoteID uint32
	service  string

	mu    sync.Mutex
	state streamState

	data      [][]byte
	sendLatch *latch
	recvLatch *latch
}

func newStream(localID int, service string) *Stream {
	return &Stream{
		localID:   localID,
		service:   service,
		state:     stateOpening,
		sendLatch: newLatch(),
		recvLatch: newLatch(),
	}
}

// LocalID returns the connection-local stream identifier.
func (s *Stream) LocalID() int { return s.localID }

func (s *Stream) setOpened(remoteID uint32) {
	s.mu.Lock()
	s.remoteID = remoteID
	s.state = stateOpened
	send := s.sendLatch
	s.mu.Unlock()
	send.release()
}

func (s *Stream) setClosed() {
	s.mu.Lock()
	s.state = stateClosed
	send, recv := s.sendLatch, s.recvLatch
	s.mu.Unlock()
	send.release()
	recv.release()
}

func (s *Stream) appendData(b []byte) {
	s.mu.Lock()
	s.data = append(s.data, append([]byte(nil), b...))
	recv := s.recvLatch
	s.mu.Unlock()
	recv.release()
}

// armSendLatch swaps in a fresh send latch and returns it, so a sender
// waits on its own write's acknowledgement rather than a stale release
// from a previous WRTE.
func (s *Stream) armSendLatch() *latch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLatch = newLatch()
	return s.sendLatch
}

// releaseSendLatch releases whichever send latch is currently armed.
func (s *Stream) releaseSendLatch() {
	s.mu.Lock()
	l := s.sendLatch
	s.mu.Unlock()
	l.release()
}

// resetRecvLatch swaps in a fresh recv latch so a subsequent WRTE can
// signal a new wait without racing a waiter that already observed the
// previous release.
func (s *Stream) resetRecvLatch() *latch {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A closed stream's latch is already released and must stay that way,
	// or a waiter that re-arms after the CLSE would block until timeout.
	if s.state == stateClosed {
		return s.recvLatch
	}
	s.recvLatch = newLatch()
	return s.recvLatch
}

// currentRecvLatch returns whichever recv latch is currently armed.
func (s *Stream) currentRecvLatch() *latch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvLatch
}

func (s *Stream) snapshotState() (streamState, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.remoteID
}

// drainData pops and returns all buffered inbound payload chunks collected
// so far, concatenated.
func (s *Stream) drainData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil
	}
	var total int
	for _, chunk := range s.data {
		total += len(chunk)
	}
	out := make([]byte, 0, total)
	for _, chunk := range s.data {
		out = append(out, chunk...)
	}
	s.data = nil
	return out
}

// streamTable maps local stream ids to Streams and allocates ids from a
// reuse pool replenished in blocks of eight, starting at {1..8}.
type streamTable struct {
	mu      sync.Mutex
	streams map[int]*Stream
	idPool  map[int]struct{}
	idNext  int // next block to grow from; starts at 8 (ids 1..8 already pooled)
}

func newStreamTable() *streamTable {
	t := &streamTable{
		streams: make(map[int]*Stream),
		idPool:  make(map[int]struct{}, 8),
		idNext:  8,
	}
	for i := 1; i <= 8; i++ {
		t.idPool[i] = struct{}{}
	}
	return t
}

// allocateID pops an id from the pool, growing it by the next block of
// eight when exhausted.
func (t *streamTable) allocateID() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.idPool {
		delete(t.idPool, id)
		return id
	}

	// Pool exhausted: the next id is idNext+1, and idNext+2..idNext+8
	// refill the pool for subsequent allocations.
	next := t.idNext + 1
	for i := next + 1; i <= t.idNext+8; i++ {
		t.idPool[i] = struct{}{}
	}
	t.idNext += 8
	return next
}

func (t *streamTable) releaseID(id int) {
	t.mu.Lock()
	t.idPool[id] = struct{}{}
	t.mu.Unlock()
}

func (t *streamTable) register(s *Stream) {
	t.mu.Lock()
	t.streams[s.localID] = s
	t.mu.Unlock()
}

func (t *streamTable) lookup(localID int) (*Stream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[localID]
	return s, ok
}

func (t *streamTable) remove(localID int) {
	t.mu.Lock()
	delete(t.streams, localID)
	t.mu.Unlock()
}

// removeAll drops every stream, used on Disconnect to release every
// outstanding id at once.
func (t *streamTable) removeAll() []*Stream {
	t.mu.Lock()
	defer t.mu.Unlock()
	all := make([]*Stream, 0, len(t.streams))
	for id, s := range t.streams {
		all = append(all, s)
		delete(t.streams, id)
	}
	return all
}
