package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventbus "github.com/hanpama/graphhost/internal/eventbus"
	events "github.com/hanpama/graphhost/internal/events"
	graphql "github.com/hanpama/graphhost/internal/graphql"
	language "github.com/hanpama/graphhost/internal/language"
)

// DefaultFactories returns the baseline chain used when no middleware is
// configured, in execution order:
//
//  1. RequestEvents  — publishes RequestStart/RequestFinish
//  2. ErrorRecovery  — converts downstream errors and panics into response
//     errors via the executor's error handler
//  3. Parse          — parses the query unless a document is already present
//  4. Validate       — runs spec validation against the executor's schema
//  5. Execute        — hands the operation to the configured engine
func DefaultFactories() []MiddlewareFactory {
	return []MiddlewareFactory{
		RequestEvents,
		ErrorRecovery,
		Parse,
		Validate,
		Execute,
	}
}

// RequestEvents publishes pipeline entry and exit events.
func RequestEvents(fc *FactoryContext, next Handler) Handler {
	name := fc.Name
	return func(ctx context.Context, rc *RequestContext) error {
		start := time.Now()
		eventbus.Publish(ctx, events.RequestStart{
			ExecutorName:  name,
			Query:         rc.Request.Query,
			OperationName: rc.Request.OperationName,
		})
		err := next(ctx, rc)
		eventbus.Publish(ctx, events.RequestFinish{
			ExecutorName:  name,
			Query:         rc.Request.Query,
			OperationName: rc.Request.OperationName,
			ErrorCount:    len(rc.Response.Errors),
			Duration:      time.Since(start),
		})
		return err
	}
}

// ErrorRecovery absorbs errors and panics from the rest of the chain. Errors
// pass through the executor's filter chain and land in the response, so a
// request never escapes the pipeline as a raw failure. Context cancellation
// is not absorbed; the transport distinguishes it from query failure.
func ErrorRecovery(fc *FactoryContext, next Handler) Handler {
	handler := fc.ErrorHandler
	return func(ctx context.Context, rc *RequestContext) (err error) {
		defer func() {
			if r := recover(); r != nil {
				rc.Response.AddError(handler.Handle(ctx, fmt.Errorf("internal error: %v", r)))
				err = nil
			}
		}()
		err = next(ctx, rc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			rc.Response.AddError(handler.Handle(ctx, err))
			err = nil
		}
		return err
	}
}

// Parse fills rc.Document from the raw query. A syntax error stops the chain
// and is reported through the error handler.
func Parse(fc *FactoryContext, next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if rc.Document == nil {
			doc, err := language.ParseQuery(rc.Request.Query)
			if err != nil {
				return err
			}
			rc.Document = doc
		}
		return next(ctx, rc)
	}
}

// Validate runs the spec validation rules. All violations are reported; a
// failed validation stops the chain.
func Validate(fc *FactoryContext, next Handler) Handler {
	handler := fc.ErrorHandler
	return func(ctx context.Context, rc *RequestContext) error {
		if rc.Document == nil {
			return errors.New("validate: no parsed document")
		}
		if errs := language.Validate(rc.Schema.Compiled, rc.Document); len(errs) > 0 {
			for _, e := range errs {
				rc.Response.AddError(handler.Handle(ctx, e))
			}
			return nil
		}
		return next(ctx, rc)
	}
}

// Execute hands the request to the configured execution engine and merges
// its response. The executor's timeout bounds the engine call.
func Execute(fc *FactoryContext, next Handler) Handler {
	cfg := fc.Config
	return func(ctx context.Context, rc *RequestContext) error {
		if cfg.Engine == nil {
			return fmt.Errorf("executor %q has no execution engine configured", fc.Name)
		}
		if cfg.ExecutionTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ExecutionTimeout)
			defer cancel()
		}
		res, err := cfg.Engine.ExecuteOperation(ctx, graphql.ExecutionParams{
			Schema:        rc.Schema.Compiled,
			Document:      rc.Document,
			OperationName: rc.Request.OperationName,
			Variables:     rc.Request.Variables,
		})
		if err != nil {
			return err
		}
		if res != nil {
			rc.Response.Data = res.Data
			rc.Response.Errors = append(rc.Response.Errors, res.Errors...)
		}
		return next(ctx, rc)
	}
}
