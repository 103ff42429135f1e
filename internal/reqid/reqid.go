package reqid

import (
	"context"
	"sync/atomic"
)

// key is the context key for the request ID.
type key struct{}

var counter atomic.Int64

// NewContext returns a copy of parent with a fresh request ID stored.
// It also returns the generated ID. IDs are unique within the process.
func NewContext(parent context.Context) (context.Context, int64) {
	id := counter.Add(1)
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
