// Package fetchclient runs the client side of Git protocol-v2 fetch-pack
// negotiation over HTTP(S) or git://: building the want/have/deepen/done request
// body, demultiplexing the side-band-64k response, and streaming the
// packfile to a sink.
package fetchclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nanogit-labs/protocore/protocol"
)

// ErrServerUnavailable is an alias for protocol.ErrServerUnavailable so
// callers of this package never need to import protocol directly to
// compare with errors.Is. retry.Backoff recognizes the same sentinel, so
// fetchclient's HTTP errors stay retryable without a second taxonomy.
var ErrServerUnavailable = protocol.ErrServerUnavailable

// ErrUnauthorized is returned for HTTP 401.
var ErrUnauthorized = errors.New("fetchclient: unauthorized")

// ErrPermissionDenied is returned for HTTP 403.
var ErrPermissionDenied = errors.New("fetchclient: permission denied")

// ErrRepositoryNotFound is returned for HTTP 404.
var ErrRepositoryNotFound = errors.New("fetchclient: repository not found")

// ErrRemoteError is returned when the server's side-band-64k error channel
// (0x03) carried a message.
var ErrRemoteError = errors.New("fetchclient: remote error")

// CheckServerUnavailable returns a *protocol.ServerUnavailableError if res
// indicates a 5xx or 429 response, else nil. The caller remains
// responsible for closing res.Body.
func CheckServerUnavailable(res *http.Response) error {
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return protocol.NewServerUnavailableError(res.StatusCode, fmt.Errorf("got status code %d: %s", res.StatusCode, res.Status))
	}
	return nil
}

// HTTPClientError carries the HTTP status code, method, and endpoint of a
// recognized 4xx response (401/403/404).
type HTTPClientError struct {
	StatusCode int
	Operation  string
	Endpoint   string
	sentinel   error
}

func (e *HTTPClientError) Error() string {
	return fmt.Sprintf("%s (operation %s, endpoint %s, status %d)", e.sentinel, e.Operation, e.Endpoint, e.StatusCode)
}
func (e *HTTPClientError) Unwrap() error       { return e.sentinel }
func (e *HTTPClientError) Is(target error) bool { return target == e.sentinel }

// CheckHTTPClientError maps 401/403/404 to a structured *HTTPClientError;
// other 4xx codes return nil so callers handle them generically.
func CheckHTTPClientError(res *http.Response) error {
	if res.StatusCode < 400 || res.StatusCode >= 500 {
		return nil
	}

	op, endpoint := "", "unknown"
	if res.Request != nil {
		op = res.Request.Method
		endpoint = extractEndpoint(res.Request.URL.Path)
	}

	var sentinel error
	switch res.StatusCode {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrPermissionDenied
	case http.StatusNotFound:
		sentinel = ErrRepositoryNotFound
	default:
		return nil
	}

	return &HTTPClientError{StatusCode: res.StatusCode, Operation: op, Endpoint: endpoint, sentinel: sentinel}
}

func extractEndpoint(path string) string {
	switch {
	case strings.Contains(path, "git-upload-pack"):
		return "git-upload-pack"
	case strings.Contains(path, "info/refs"):
		return "info/refs"
	default:
		return "unknown"
	}
}

// RemoteError wraps a side-band-64k channel-3 payload from the server.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string   { return fmt.Sprintf("remote error: %s", e.Message) }
func (e *RemoteError) Unwrap() error   { return ErrRemoteError }
func (e *RemoteError) Is(t error) bool { return t == ErrRemoteError }
