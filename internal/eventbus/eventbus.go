package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

// Bus is a simple in-process event dispatcher. Dispatch is synchronous:
// Publish returns after every handler has run.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[reflect.Type]map[uint64]func(context.Context, any)
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{handlers: make(map[reflect.Type]map[uint64]func(context.Context, any))}
}

func (b *Bus) subscribe(t reflect.Type, h func(context.Context, any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	m := b.handlers[t]
	if m == nil {
		m = make(map[uint64]func(context.Context, any))
		b.handlers[t] = m
	}
	m[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m := b.handlers[t]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(b.handlers, t)
			}
		}
	}
}

// emit dispatches e to all handlers of its dynamic type in subscription order.
func (b *Bus) emit(ctx context.Context, e any) {
	if b == nil {
		return
	}
	t := reflect.TypeOf(e)
	b.mu.RLock()
	m := b.handlers[t]
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	// subscription ids are monotonic, so sorting restores registration order
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	fns := make([]func(context.Context, any), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m[id])
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		dispatch(ctx, fn, e)
	}
}

// dispatch isolates subscriber panics: a broken sink must not abort the
// publisher's operation.
func dispatch(ctx context.Context, fn func(context.Context, any), e any) {
	defer func() { _ = recover() }()
	fn(ctx, e)
}

var global atomic.Pointer[Bus]

// Use sets the global bus. Passing nil disables event publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h with the global bus.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	if b := global.Load(); b != nil {
		t := reflect.TypeOf((*T)(nil)).Elem()
		return b.subscribe(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
	}
	return func() {}
}

// Publish sends e through the global bus.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.emit(ctx, e)
	}
}
