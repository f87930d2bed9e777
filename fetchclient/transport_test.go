package fetchclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nanogit-labs/protocore/retry"
	"github.com/stretchr/testify/require"
)

// fastRetrier retries up to n times with no backoff delay, so retry tests
// don't sleep real exponential-backoff durations.
type fastRetrier struct{ n int }

func (f fastRetrier) ShouldRetry(err error, attempt int) bool { return attempt < f.n }
func (f fastRetrier) Wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}
func (f fastRetrier) MaxAttempts() int { return f.n }

func TestTransportFetchStreamsPackfile(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/git-upload-pack", r.URL.Path)
		require.Equal(t, uploadPackContentType, r.Header.Get("Content-Type"))
		require.Equal(t, "version=2", r.Header.Get("Git-Protocol"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body

		w.Write(pktLine(append([]byte{channelPack}, []byte("PACK\x00\x00\x00\x02")...)))
		w.Write(pktLine(append([]byte{channelProgress}, []byte("done\n")...)))
	}))
	defer srv.Close()

	transport, err := NewTransport(srv.URL)
	require.NoError(t, err)

	var sink bytes.Buffer
	err = transport.Fetch(context.Background(), NegotiationOptions{Want: []string{"refs/heads/main"}}, &sink)
	require.NoError(t, err)
	require.Equal(t, "PACK\x00\x00\x00\x02", sink.String())
	require.Contains(t, string(gotBody), "want refs/heads/main")
}

func TestTransportFetchRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		w.Write(pktLine(append([]byte{channelError}, []byte("repository not found")...)))
	}))
	defer srv.Close()

	transport, err := NewTransport(srv.URL)
	require.NoError(t, err)

	var sink bytes.Buffer
	err = transport.Fetch(context.Background(), NegotiationOptions{Want: []string{"main"}}, &sink)
	require.Error(t, err)
	require.Contains(t, err.Error(), "repository not found")
}

func TestTransportFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	transport, err := NewTransport(srv.URL)
	require.NoError(t, err)

	var sink bytes.Buffer
	err = transport.Fetch(context.Background(), NegotiationOptions{Want: []string{"main"}}, &sink)
	require.ErrorIs(t, err, ErrRepositoryNotFound)
}

func TestTransportRejectsNonHTTPScheme(t *testing.T) {
	_, err := NewTransport("ssh://example.com/repo.git")
	require.Error(t, err)
}

func TestTransportRetriesServerUnavailable(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(pktLine(append([]byte{channelPack}, []byte("PACK")...)))
	}))
	defer srv.Close()

	transport, err := NewTransport(srv.URL)
	require.NoError(t, err)

	ctx := retry.ToContext(context.Background(), fastRetrier{n: 5})
	var sink bytes.Buffer
	err = transport.Fetch(ctx, NegotiationOptions{Want: []string{"main"}}, &sink)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, "PACK", sink.String())
}

func TestGitProtocolHandshakeLineFormat(t *testing.T) {
	pkt, err := UploadPackHandshake("/owner/repo.git", "git.example.com")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(pkt), "host=git.example.com\x00"))
}
