// Package schema builds named executable schemas from SDL sources.
//
// A Schema is produced either from a pre-built value supplied by the caller
// or by folding an ordered list of builder actions over a Builder and
// finalizing it. In both paths the schema's name must equal the name it was
// requested under; the builder path enforces this with a name interceptor
// that runs during name completion.
package schema

import (
	"fmt"

	graphql "github.com/hanpama/graphhost/internal/graphql"
	language "github.com/hanpama/graphhost/internal/language"
)

// Schema is a compiled, named schema. Immutable after Build.
type Schema struct {
	Name     string
	Compiled *language.Schema

	services graphql.Services
}

// Services returns the service-resolution context attached at build time.
// May be nil.
func (s *Schema) Services() graphql.Services { return s.services }

// NameMismatchError reports a schema whose name does not equal the name it
// was requested under.
type NameMismatchError struct {
	Requested string
	Actual    string
}

func (e *NameMismatchError) Error() string {
	return fmt.Sprintf("schema name %q does not match requested executor name %q", e.Actual, e.Requested)
}

// Builder accumulates SDL sources and metadata and finalizes them into a
// Schema.
type Builder struct {
	name             string
	sources          []*language.Source
	services         graphql.Services
	nameInterceptors []func(current string) string
}

func NewBuilder() *Builder { return &Builder{} }

// SetName sets the schema name. Interceptors registered with InterceptName
// may still override it at build time.
func (b *Builder) SetName(name string) *Builder {
	b.name = name
	return b
}

// AddSource appends an SDL document. Sources are linked together in the
// order they were added.
func (b *Builder) AddSource(name, sdl string) *Builder {
	b.sources = append(b.sources, &language.Source{Name: name, Input: sdl})
	return b
}

// SetServices attaches the service-resolution context carried into the
// finished schema.
func (b *Builder) SetServices(services graphql.Services) *Builder {
	b.services = services
	return b
}

// InterceptName registers fn to run during name completion. Interceptors run
// in registration order, each seeing the previous one's result; the last
// registered interceptor has the final say.
func (b *Builder) InterceptName(fn func(current string) string) *Builder {
	b.nameInterceptors = append(b.nameInterceptors, fn)
	return b
}

// Clone returns an independent copy. Builds work on clones so a builder held
// in factory options survives rebuilds unmodified.
func (b *Builder) Clone() *Builder {
	out := &Builder{name: b.name, services: b.services}
	out.sources = append([]*language.Source(nil), b.sources...)
	out.nameInterceptors = append([]func(string) string(nil), b.nameInterceptors...)
	return out
}

// Build completes the name, links all sources and returns the schema.
func (b *Builder) Build() (*Schema, error) {
	name := b.name
	for _, ic := range b.nameInterceptors {
		name = ic(name)
	}
	if len(b.sources) == 0 {
		return nil, fmt.Errorf("schema builder for %q has no SDL sources", name)
	}
	compiled, err := language.LoadSchema(b.sources...)
	if err != nil {
		return nil, fmt.Errorf("schema build for %q: %w", name, err)
	}
	return &Schema{Name: name, Compiled: compiled, services: b.services}, nil
}
