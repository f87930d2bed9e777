package log

import "context"

// ctxKey keys the Logger carried in a context.
type ctxKey struct{}

// ToContext returns a copy of ctx carrying logger. Transports fall back
// to this when no logger was configured on them directly.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the Logger carried by ctx, or NoopLogger when none
// is set, so callers can log unconditionally.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(ctxKey{}).(Logger); ok && logger != nil {
		return logger
	}
	return NoopLogger{}
}
