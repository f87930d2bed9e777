package retry

import "context"

// retrierKey keys the Retrier carried in a context.
type retrierKey struct{}

// ToContext returns a copy of ctx that carries retrier; transports that
// honor retries pick it up with FromContextOrNoop.
func ToContext(ctx context.Context, retrier Retrier) context.Context {
	return context.WithValue(ctx, retrierKey{}, retrier)
}

// FromContext returns the Retrier carried by ctx, or nil.
func FromContext(ctx context.Context) Retrier {
	retrier, _ := ctx.Value(retrierKey{}).(Retrier)
	return retrier
}

// FromContextOrNoop returns the carried Retrier, falling back to
// NoopRetrier so callers never need a nil check.
func FromContextOrNoop(ctx context.Context) Retrier {
	if retrier := FromContext(ctx); retrier != nil {
		return retrier
	}
	return NoopRetrier{}
}
