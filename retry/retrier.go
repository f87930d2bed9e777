// Package retry decides whether and how long to wait before reissuing a
// failed HTTP request. Nothing retries by default: a caller opts in by
// putting a Retrier into the context it passes to the transport.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/nanogit-labs/protocore/protocol"
)

// Retrier classifies errors and paces retry attempts. attempt is
// 1-indexed: ShouldRetry(err, 1) asks whether the first failure deserves
// a second try.
type Retrier interface {
	ShouldRetry(err error, attempt int) bool
	Wait(ctx context.Context, attempt int) error
	MaxAttempts() int
}

// NoopRetrier never retries. It is what FromContextOrNoop hands out when
// the caller injected nothing.
type NoopRetrier struct{}

func (NoopRetrier) ShouldRetry(error, int) bool     { return false }
func (NoopRetrier) Wait(context.Context, int) error { return nil }
func (NoopRetrier) MaxAttempts() int                { return 1 }

// Backoff retries transient failures with exponentially growing delays.
// Transient means a 5xx/429 response (protocol.ErrServerUnavailable) or a
// network-level error; context cancellation and anything else stop the
// attempt loop immediately.
type Backoff struct {
	attempts int
	initial  time.Duration
	ceiling  time.Duration
	factor   float64
	jitter   bool
}

var _ Retrier = (*Backoff)(nil)

// NewBackoff returns a Backoff with 3 attempts, a 100ms initial delay
// doubling up to 5s, and jitter enabled.
func NewBackoff() *Backoff {
	return &Backoff{
		attempts: 3,
		initial:  100 * time.Millisecond,
		ceiling:  5 * time.Second,
		factor:   2.0,
		jitter:   true,
	}
}

// WithMaxAttempts caps the total number of attempts, the first included.
func (b *Backoff) WithMaxAttempts(n int) *Backoff {
	b.attempts = n
	return b
}

// WithInitialDelay sets the delay before the first retry.
func (b *Backoff) WithInitialDelay(d time.Duration) *Backoff {
	b.initial = d
	return b
}

// WithMaxDelay caps the delay between attempts.
func (b *Backoff) WithMaxDelay(d time.Duration) *Backoff {
	b.ceiling = d
	return b
}

// WithFactor sets the per-attempt delay multiplier.
func (b *Backoff) WithFactor(f float64) *Backoff {
	b.factor = f
	return b
}

// WithoutJitter makes delays deterministic, mostly for tests.
func (b *Backoff) WithoutJitter() *Backoff {
	b.jitter = false
	return b
}

func (b *Backoff) MaxAttempts() int {
	if b.attempts <= 0 {
		return 3
	}
	return b.attempts
}

func (b *Backoff) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= b.MaxAttempts() {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, protocol.ErrServerUnavailable) {
		return true
	}

	// Anything the net stack reports (refused connections, resets,
	// timeouts) is worth another attempt; a plain application error is
	// not.
	var netErr interface {
		error
		Timeout() bool
	}
	return errors.As(err, &netErr)
}

func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	delay := float64(b.initial) * math.Pow(b.factor, float64(attempt-1))
	if ceiling := float64(b.ceiling); delay > ceiling {
		delay = ceiling
	}
	if b.jitter {
		// Keep half the computed delay, randomize the other half, so the
		// wait lies between half and all of the curve's value (mean three
		// quarters) while concurrent clients spread out.
		delay = delay/2 + rand.Float64()*delay/2
	}

	timer := time.NewTimer(time.Duration(delay))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
