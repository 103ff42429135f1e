// Package config assembles a request executor's resolved configuration from a
// base value and an ordered list of configuration actions.
package config

import (
	"context"
	"fmt"
	"time"

	graphql "github.com/hanpama/graphhost/internal/graphql"
)

// RequestConfig is the configuration an executor is built against. It is
// resolved fresh for every build attempt and frozen inside the executor
// afterwards.
type RequestConfig struct {
	// ExecutionTimeout bounds a single operation. 0 means no bound beyond
	// the caller's context.
	ExecutionTimeout time.Duration

	// EnableIntrospection controls whether introspection fields are served.
	EnableIntrospection bool

	// ComplexityLimit rejects operations above this cost. 0 disables the check.
	ComplexityLimit int

	// Engine executes parsed, validated operations. The default pipeline's
	// execute stage fails if no engine is configured.
	Engine graphql.ExecutionEngine

	// Properties is free-form state for user actions and middleware. Later
	// actions overwrite earlier writes to the same key.
	Properties map[string]any
}

// Default returns a fresh configuration with introspection enabled and a
// 30 second execution timeout.
func Default() *RequestConfig {
	return &RequestConfig{
		ExecutionTimeout:    30 * time.Second,
		EnableIntrospection: true,
		Properties:          map[string]any{},
	}
}

// Clone returns a copy with its own Properties map.
func (c *RequestConfig) Clone() *RequestConfig {
	out := *c
	out.Properties = make(map[string]any, len(c.Properties))
	for k, v := range c.Properties {
		out.Properties[k] = v
	}
	return &out
}

// Action mutates a RequestConfig. Either half may be nil; when both are set
// the sync half runs first and the async half is awaited before the next
// action starts.
type Action struct {
	Apply      func(*RequestConfig)
	ApplyAsync func(context.Context, *RequestConfig) error
}

// Resolve folds base (or a fresh default) through actions in list order.
// A failing action aborts the remainder and propagates its error. The base
// value is never mutated; every call works on its own copy.
func Resolve(ctx context.Context, base *RequestConfig, actions []Action) (*RequestConfig, error) {
	var cfg *RequestConfig
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = Default()
	}
	for i, act := range actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if act.Apply != nil {
			act.Apply(cfg)
		}
		if act.ApplyAsync != nil {
			if err := act.ApplyAsync(ctx, cfg); err != nil {
				return nil, fmt.Errorf("config action %d: %w", i, err)
			}
		}
	}
	return cfg, nil
}
