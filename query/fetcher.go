package query

import (
	"context"

	"github.com/jonwraymond/querycache/cache"
)

// FetchFunc loads the data for key from the remote authority.
// It should honor ctx cancellation; the cache never interprets its result.
type FetchFunc func(ctx context.Context, key cache.Key) (any, error)

// Typed adapts a typed fetch function to a FetchFunc.
func Typed[T any](fn func(ctx context.Context, key cache.Key) (T, error)) FetchFunc {
	return func(ctx context.Context, key cache.Key) (any, error) {
		return fn(ctx, key)
	}
}

// As converts cached data to T. It reports false when data is absent or of
// another type.
func As[T any](data any) (T, bool) {
	v, ok := data.(T)
	return v, ok
}

// ViewAs returns the data held by v as T.
func ViewAs[T any](v cache.EntryView) (T, bool) {
	if !v.HasData {
		var zero T
		return zero, false
	}
	return As[T](v.Data)
}
