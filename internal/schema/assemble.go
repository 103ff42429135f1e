package schema

import (
	"context"
	"fmt"

	graphql "github.com/hanpama/graphhost/internal/graphql"
)

// Action mutates a Builder. Either half may be nil; when both are set the
// sync half runs first and the async half is awaited before the next action.
type Action struct {
	Apply      func(*Builder)
	ApplyAsync func(context.Context, *Builder) error
}

// Assemble produces the schema for name.
//
// When prebuilt is non-nil it is returned unchanged after its name is
// validated; no builder actions run. Otherwise base (or a fresh builder) is
// folded through actions in list order, a name-binding interceptor is
// registered so the finished schema always carries the requested name, the
// service context is attached, and the builder is finalized. The name is
// checked once more after Build; a mismatch there means an interceptor
// registered after ours misbehaved and is a fatal construction error.
func Assemble(ctx context.Context, name string, prebuilt *Schema, base *Builder, actions []Action, services graphql.Services) (*Schema, error) {
	if prebuilt != nil {
		if prebuilt.Name != name {
			return nil, &NameMismatchError{Requested: name, Actual: prebuilt.Name}
		}
		return prebuilt, nil
	}

	b := NewBuilder()
	if base != nil {
		b = base.Clone()
	}
	for i, act := range actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if act.Apply != nil {
			act.Apply(b)
		}
		if act.ApplyAsync != nil {
			if err := act.ApplyAsync(ctx, b); err != nil {
				return nil, fmt.Errorf("schema action %d: %w", i, err)
			}
		}
	}

	b.InterceptName(func(string) string { return name })
	b.SetServices(services)

	built, err := b.Build()
	if err != nil {
		return nil, err
	}
	if built.Name != name {
		return nil, &NameMismatchError{Requested: name, Actual: built.Name}
	}
	return built, nil
}
