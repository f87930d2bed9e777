package fetchclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nanogit-labs/protocore/log"
	"github.com/nanogit-labs/protocore/retry"
)

const (
	userAgent             = "git/2.28.0"
	defaultReadTimeout    = 5 * time.Second
	uploadPackContentType = "application/x-git-upload-pack-request"
)

// Option configures a Transport.
type Option func(*Transport) error

// WithHTTPClient overrides the *http.Client used for requests. The
// default is http.DefaultClient's zero value, i.e. no timeout beyond what
// ctx imposes.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) error {
		if c == nil {
			return fmt.Errorf("fetchclient: nil http client")
		}
		t.client = c
		return nil
	}
}

// WithReadTimeout overrides the per-read deadline applied while streaming
// the response body. The default is defaultReadTimeout (5s).
func WithReadTimeout(d time.Duration) Option {
	return func(t *Transport) error {
		if d <= 0 {
			return fmt.Errorf("fetchclient: read timeout must be positive")
		}
		t.readTimeout = d
		return nil
	}
}

// WithLogger attaches a logger used for wire-level detail and progress.
// When none is set, each Fetch derives one from its context via
// log.FromContext.
func WithLogger(l log.Logger) Option {
	return func(t *Transport) error {
		t.logger = l
		return nil
	}
}

// WithProxy routes requests through an HTTP proxy. Only HTTP proxies are
// supported.
func WithProxy(proxyURL string) Option {
	return func(t *Transport) error {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("fetchclient: parsing proxy url: %w", err)
		}
		transport := &http.Transport{Proxy: http.ProxyURL(u)}
		t.client.Transport = transport
		return nil
	}
}

// WithBufferSize overrides how many pack-data bytes are accumulated
// before each flush to the sink. The default is
// DefaultSidebandBufferSize (256 KiB).
func WithBufferSize(n int) Option {
	return func(t *Transport) error {
		if n <= 0 {
			return fmt.Errorf("fetchclient: buffer size must be positive")
		}
		t.bufferSize = n
		return nil
	}
}

// OnProgress subscribes to channel-2 progress text emitted during a Fetch.
func OnProgress(fn ProgressFunc) Option {
	return func(t *Transport) error {
		t.onProgress = fn
		return nil
	}
}

// Transport runs the client side of a protocol-v2 "fetch" over
// HTTP(S): POST <repo>/git-upload-pack with a pkt-line negotiation body,
// then demultiplex the side-band-64k response and stream the packfile
// bytes to a sink. A git:// repository URL sends the same body over a raw
// TCP connection to a git daemon instead. Only v2 is spoken; a server that doesn't acknowledge
// Git-Protocol: version=2 is not specially detected here -- its response
// will simply fail pkt-line decoding.
type Transport struct {
	repoURL     *url.URL
	client      *http.Client
	readTimeout time.Duration
	bufferSize  int
	logger      log.Logger
	onProgress  ProgressFunc
}

// NewTransport creates a Transport for the given repository URL: an
// http, https or git URL; for HTTP(S) the base, not including
// "/git-upload-pack".
func NewTransport(repoURL string, opts ...Option) (*Transport, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return nil, fmt.Errorf("fetchclient: parsing repository url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "git" {
		return nil, fmt.Errorf("fetchclient: only http, https and git repository urls are supported, got %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	t := &Transport{
		repoURL:     u,
		client:      &http.Client{},
		readTimeout: defaultReadTimeout,
		bufferSize:  DefaultSidebandBufferSize,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// loggerFor prefers the logger configured with WithLogger and otherwise
// picks up whatever the caller carried in ctx (NoopLogger when neither).
func (t *Transport) loggerFor(ctx context.Context) log.Logger {
	if t.logger != nil {
		return t.logger
	}
	return log.FromContext(ctx)
}

// Fetch runs one protocol-v2 fetch negotiation and streams the resulting
// packfile bytes to sink in the exact order the server sent them. The
// whole call is driven by ctx: cancelling ctx aborts the underlying
// connection and discards in-flight inflate state (the caller is
// responsible for discarding a partially written sink).
func (t *Transport) Fetch(ctx context.Context, opts NegotiationOptions, sink io.Writer) error {
	body, err := BuildFetchRequest(opts)
	if err != nil {
		return fmt.Errorf("fetchclient: building fetch request: %w", err)
	}

	logger := t.loggerFor(ctx)
	logger.Debug("fetch request built", "size", len(body), "want", opts.Want, "depth", opts.Depth)

	if t.repoURL.Scheme == "git" {
		return t.fetchGit(ctx, body, sink)
	}

	res, err := t.postUploadPack(ctx, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	reader := &deadlineReader{ctx: ctx, r: res.Body, timeout: t.readTimeout}
	if err := demux(reader, sink, t.onProgress, logger, t.bufferSize); err != nil {
		return err
	}

	logger.Debug("fetch completed")
	return nil
}

// postUploadPack sends the pkt-line body to <repo>/git-upload-pack and
// returns the raw HTTP response, retrying through any retrier injected
// into ctx via retry.ToContext. A request body is only safe to retry
// because it is a fixed in-memory buffer, not a stream that Do() could
// already have consumed.
func (t *Transport) postUploadPack(ctx context.Context, body []byte) (*http.Response, error) {
	retrier := retry.FromContextOrNoop(ctx)
	logger := t.loggerFor(ctx)
	endpoint := t.repoURL.JoinPath("git-upload-pack").String()

	var lastErr error
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("fetchclient: building request: %w", err)
		}
		req.Header.Set("Content-Type", uploadPackContentType)
		req.Header.Set("Git-Protocol", "version=2")
		req.Header.Set("User-Agent", userAgent)

		res, err := t.client.Do(req)
		if err != nil {
			lastErr = err
		} else if serr := CheckServerUnavailable(res); serr != nil {
			res.Body.Close()
			lastErr = serr
		} else if cerr := CheckHTTPClientError(res); cerr != nil {
			res.Body.Close()
			return nil, cerr
		} else if res.StatusCode < 200 || res.StatusCode >= 300 {
			res.Body.Close()
			return nil, fmt.Errorf("fetchclient: unexpected status %s", res.Status)
		} else {
			return res, nil
		}

		if !retrier.ShouldRetry(lastErr, attempt) {
			return nil, lastErr
		}
		logger.Warn("retrying fetch request", "attempt", attempt, "error", lastErr)
		if err := retrier.Wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// deadlineReader applies a rolling per-Read deadline derived from a
// parent context, so a stalled server can't hang a fetch forever even
// though the whole request is otherwise bounded only by ctx.
type deadlineReader struct {
	ctx     context.Context
	r       io.Reader
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := d.r.Read(p)
		ch <- result{n, err}
	}()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(d.timeout):
		return 0, fmt.Errorf("fetchclient: read timed out after %s", d.timeout)
	case <-d.ctx.Done():
		return 0, d.ctx.Err()
	}
}
