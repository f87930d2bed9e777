package fetchclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// defaultGitPort is the well-known git:// daemon port used when the
// repository URL carries no explicit port.
const defaultGitPort = "9418"

// fetchGit runs the same protocol-v2 fetch over a raw TCP connection to a
// git:// daemon: one pkt-line carrying the native handshake
// "git-upload-pack <path>\0host=<host>\0", the same negotiation body as
// the HTTP path, then the side-band-64k response until the server closes.
func (t *Transport) fetchGit(ctx context.Context, body []byte, sink io.Writer) error {
	logger := t.loggerFor(ctx)
	host := t.repoURL.Hostname()
	port := t.repoURL.Port()
	if port == "" {
		port = defaultGitPort
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("fetchclient: dialing git daemon: %w", err)
	}
	defer conn.Close()

	// Closing the socket on ctx cancellation unblocks any in-flight read.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	handshake, err := UploadPackHandshake(t.repoURL.Path, host)
	if err != nil {
		return fmt.Errorf("fetchclient: building git handshake: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(t.readTimeout))
	if _, err := conn.Write(handshake); err != nil {
		return fmt.Errorf("fetchclient: sending git handshake: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("fetchclient: sending fetch request: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	reader := &connDeadlineReader{conn: conn, timeout: t.readTimeout}
	if err := demux(reader, sink, t.onProgress, logger, t.bufferSize); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	logger.Debug("git fetch completed")
	return nil
}

// connDeadlineReader applies a rolling per-Read deadline to a net.Conn,
// mirroring deadlineReader's behavior for HTTP bodies without the extra
// goroutine a net.Conn doesn't need.
type connDeadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *connDeadlineReader) Read(p []byte) (int, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	n, err := r.conn.Read(p)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, fmt.Errorf("fetchclient: read timed out after %s", r.timeout)
		}
	}
	return n, err
}
