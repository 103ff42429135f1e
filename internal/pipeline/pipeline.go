// Package pipeline composes an executor's request-handling chain from an
// ordered list of middleware factories.
//
// Factories are folded in reverse: the last factory wraps the terminal
// handler, each earlier factory wraps the handler produced so far, and the
// result of folding index 0 is the pipeline. Invoking it therefore runs
// middleware in original list order, each free to act before and after its
// call to next.
package pipeline

import (
	"context"

	config "github.com/hanpama/graphhost/internal/config"
	errfilter "github.com/hanpama/graphhost/internal/errfilter"
	graphql "github.com/hanpama/graphhost/internal/graphql"
	language "github.com/hanpama/graphhost/internal/language"
	schema "github.com/hanpama/graphhost/internal/schema"
)

// RequestContext carries one request through the pipeline. Middleware may
// populate Document and Response; Request, Schema, Services and Config are
// read-only.
type RequestContext struct {
	Request  *graphql.Request
	Response *graphql.Response
	Schema   *schema.Schema
	Services graphql.Services
	Config   *config.RequestConfig

	// Document is the parsed query, set by the parse stage (or by a caller
	// that already holds a parsed document).
	Document *language.QueryDocument
}

// Handler processes a request. Errors returned from a handler are routed
// through the executor's error handler into the response.
type Handler func(ctx context.Context, rc *RequestContext) error

// MiddlewareFactory builds one middleware around next. It runs once per
// executor build; the returned handler runs once per request.
type MiddlewareFactory func(fc *FactoryContext, next Handler) Handler

// Activator is an opaque collaborator that middleware factories may use to
// construct their dependencies. The assembler only forwards it.
type Activator any

// FactoryContext is shared by every factory of one pipeline build.
type FactoryContext struct {
	Name         string
	Services     graphql.Services
	Activator    Activator
	ErrorHandler *errfilter.Handler
	Config       *config.RequestConfig
}

// Terminal is the innermost handler: it performs no work at all.
func Terminal(ctx context.Context, rc *RequestContext) error { return nil }

// Compose folds factories right-to-left around the terminal handler. An
// empty list is replaced by DefaultFactories, so the pipeline is never empty.
func Compose(fc *FactoryContext, factories []MiddlewareFactory) Handler {
	if len(factories) == 0 {
		factories = DefaultFactories()
	}
	next := Handler(Terminal)
	for i := len(factories) - 1; i >= 0; i-- {
		next = factories[i](fc, next)
	}
	return next
}
