// Package registry resolves, builds and caches named request executors.
//
// Lookups on the hot path are lock-free reads of a concurrent map. A cache
// miss enters the build path, which is serialized process-wide by a single
// capacity-1 semaphore: builds are rare (one per distinct name, amortized)
// and one primitive is simpler than lock striping. The semaphore is acquired
// through a select so a waiting caller's context cancellation is honored.
// After acquisition the cache is checked again; another caller may have
// finished the same build while this one waited.
//
// Lifecycle events are published on the event bus after the cache mutation,
// outside the build critical section, so subscribers never run under the
// build lock.
package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	config "github.com/hanpama/graphhost/internal/config"
	errfilter "github.com/hanpama/graphhost/internal/errfilter"
	eventbus "github.com/hanpama/graphhost/internal/eventbus"
	graphql "github.com/hanpama/graphhost/internal/graphql"
	options "github.com/hanpama/graphhost/internal/options"
	pipeline "github.com/hanpama/graphhost/internal/pipeline"
	schema "github.com/hanpama/graphhost/internal/schema"
)

// ErrDisposed is returned by operations on a closed registry.
var ErrDisposed = errors.New("registry: disposed")

// ExecutorCreated is published after a build result enters the cache.
type ExecutorCreated struct {
	Name     string
	Executor *Executor
}

// ExecutorEvicted is published after an entry leaves the cache.
type ExecutorEvicted struct {
	Name     string
	Executor *Executor
}

// Registry caches fully assembled executors keyed by name.
type Registry struct {
	source    options.Source
	services  graphql.Services
	activator pipeline.Activator

	cache    sync.Map // string -> *Executor
	buildSem chan struct{}

	closed     atomic.Bool
	stopNotify func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithServices sets the service-resolution context forwarded into builder
// actions, middleware factories and filter factories.
func WithServices(s graphql.Services) Option {
	return func(r *Registry) { r.services = s }
}

// WithActivator sets the opaque activator forwarded to middleware factories.
func WithActivator(a pipeline.Activator) Option {
	return func(r *Registry) { r.activator = a }
}

// New creates a registry over source. If source implements options.Notifier
// the registry subscribes its eviction path to change notifications.
func New(source options.Source, opts ...Option) *Registry {
	r := &Registry{
		source:   source,
		buildSem: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(r)
	}
	if n, ok := source.(options.Notifier); ok {
		r.stopNotify = n.Subscribe(r.OnConfigurationChanged)
	}
	return r
}

// GetOrCreate returns the cached executor for name, building and caching it
// first if absent. An empty name resolves to options.DefaultName. A failed
// build caches nothing; the next call for the same name retries from scratch.
func (r *Registry) GetOrCreate(ctx context.Context, name string) (*Executor, error) {
	if name == "" {
		name = options.DefaultName
	}
	if r.closed.Load() {
		return nil, ErrDisposed
	}
	if v, ok := r.cache.Load(name); ok {
		return v.(*Executor), nil
	}

	select {
	case r.buildSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	exec, created, err := func() (*Executor, bool, error) {
		defer func() { <-r.buildSem }()
		if r.closed.Load() {
			return nil, false, ErrDisposed
		}
		if v, ok := r.cache.Load(name); ok {
			return v.(*Executor), false, nil
		}
		built, err := r.build(ctx, name)
		if err != nil {
			return nil, false, err
		}
		r.cache.Store(name, built)
		return built, true, nil
	}()
	if err != nil {
		return nil, err
	}
	if created {
		eventbus.Publish(ctx, ExecutorCreated{Name: name, Executor: exec})
	}
	return exec, nil
}

// Evict removes the cached executor for name and reports whether an entry
// existed. The removed executor is published in an ExecutorEvicted event.
func (r *Registry) Evict(name string) bool {
	if name == "" {
		name = options.DefaultName
	}
	if r.closed.Load() {
		return false
	}
	v, ok := r.cache.LoadAndDelete(name)
	if !ok {
		return false
	}
	eventbus.Publish(context.Background(), ExecutorEvicted{Name: name, Executor: v.(*Executor)})
	return true
}

// OnConfigurationChanged evicts name's executor so the next lookup rebuilds
// it against fresh options. A name with no cached entry is a no-op.
func (r *Registry) OnConfigurationChanged(name string) {
	r.Evict(name)
}

// Close stops change notifications, waits for an in-flight build to finish
// and clears the cache. Subsequent operations fail with ErrDisposed. Close
// is idempotent.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.stopNotify != nil {
		r.stopNotify()
	}
	// drain the build semaphore: an in-flight build holds it until done
	r.buildSem <- struct{}{}
	<-r.buildSem
	r.cache.Range(func(k, _ any) bool {
		r.cache.Delete(k)
		return true
	})
	return nil
}

// build assembles one executor. Runs only while the build semaphore is held.
func (r *Registry) build(ctx context.Context, name string) (*Executor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts, err := r.source.Options(name)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &options.FactoryOptions{}
	}

	cfg, err := config.Resolve(ctx, opts.Config, opts.ConfigActions)
	if err != nil {
		return nil, err
	}

	sch, err := schema.Assemble(ctx, name, opts.Schema, opts.SchemaBuilder, opts.SchemaActions, r.services)
	if err != nil {
		return nil, err
	}

	filters := errfilter.Collect(opts.ErrorFilterFactories, r.services, cfg)
	errorHandler := errfilter.NewHandler(filters)

	fc := &pipeline.FactoryContext{
		Name:         name,
		Services:     r.services,
		Activator:    r.activator,
		ErrorHandler: errorHandler,
		Config:       cfg,
	}
	handler := pipeline.Compose(fc, opts.MiddlewareFactories)

	return &Executor{
		name:         name,
		schema:       sch,
		cfg:          cfg,
		errorHandler: errorHandler,
		handler:      handler,
		services:     r.services,
	}, nil
}
