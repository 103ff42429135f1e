package registry

import (
	"context"

	config "github.com/hanpama/graphhost/internal/config"
	errfilter "github.com/hanpama/graphhost/internal/errfilter"
	graphql "github.com/hanpama/graphhost/internal/graphql"
	pipeline "github.com/hanpama/graphhost/internal/pipeline"
	schema "github.com/hanpama/graphhost/internal/schema"
)

// Executor is the cached unit: a compiled schema, its resolved configuration,
// its error handler and its composed pipeline. Immutable after construction,
// so concurrent callers share it without synchronization; callers holding a
// reference across an eviction keep using it safely.
type Executor struct {
	name         string
	schema       *schema.Schema
	cfg          *config.RequestConfig
	errorHandler *errfilter.Handler
	handler      pipeline.Handler
	services     graphql.Services
}

func (e *Executor) Name() string { return e.name }

func (e *Executor) Schema() *schema.Schema { return e.schema }

func (e *Executor) Config() *config.RequestConfig { return e.cfg }

func (e *Executor) ErrorHandler() *errfilter.Handler { return e.errorHandler }

// Pipeline returns the composed request handler.
func (e *Executor) Pipeline() pipeline.Handler { return e.handler }

// Execute runs req through the pipeline and returns the response. Errors the
// pipeline surfaces (cancellation aside, everything is normally absorbed by
// the recovery stage) are routed through the error handler into the response.
func (e *Executor) Execute(ctx context.Context, req *graphql.Request) *graphql.Response {
	rc := &pipeline.RequestContext{
		Request:  req,
		Response: &graphql.Response{},
		Schema:   e.schema,
		Services: e.services,
		Config:   e.cfg,
	}
	if err := e.handler(ctx, rc); err != nil {
		rc.Response.AddError(e.errorHandler.Handle(ctx, err))
	}
	return rc.Response
}
