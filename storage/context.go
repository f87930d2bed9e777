package storage

import "context"

// ctxKey keys the PackfileStorage carried in a context.
type ctxKey struct{}

// ToContext returns a copy of ctx carrying storage, for callers that
// build object stores several layers below where the cache lives.
func ToContext(ctx context.Context, storage PackfileStorage) context.Context {
	return context.WithValue(ctx, ctxKey{}, storage)
}

// FromContext returns the carried PackfileStorage, or nil when none was
// set.
func FromContext(ctx context.Context) PackfileStorage {
	storage, _ := ctx.Value(ctxKey{}).(PackfileStorage)
	return storage
}
