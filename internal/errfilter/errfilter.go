// Package errfilter collects error filters and applies them through a single
// error handler. Explicit per-executor filters run before filters registered
// ambiently on the service context.
package errfilter

import (
	"context"
	"errors"

	config "github.com/hanpama/graphhost/internal/config"
	graphql "github.com/hanpama/graphhost/internal/graphql"
)

// ServicesKey is the service-context key under which ambient filters are
// registered ([]Filter).
const ServicesKey = "graphhost.errorFilters"

// Filter rewrites a GraphQL error before it reaches the response. Returning
// nil keeps the error as passed in.
type Filter func(ctx context.Context, gqlErr *graphql.Error) *graphql.Error

// FilterFactory produces a filter from the service context and the resolved
// configuration of the executor being built.
type FilterFactory func(services graphql.Services, cfg *config.RequestConfig) Filter

// Collect yields one filter per factory, in factory order, followed by every
// filter registered under ServicesKey.
func Collect(factories []FilterFactory, services graphql.Services, cfg *config.RequestConfig) []Filter {
	filters := make([]Filter, 0, len(factories))
	for _, f := range factories {
		filters = append(filters, f(services, cfg))
	}
	if services != nil {
		if v, ok := services.Get(ServicesKey); ok {
			if ambient, ok := v.([]Filter); ok {
				filters = append(filters, ambient...)
			}
		}
	}
	return filters
}

// Handler turns errors into GraphQL errors and runs them through the filter
// chain in order. Immutable after construction.
type Handler struct {
	filters []Filter
}

func NewHandler(filters []Filter) *Handler {
	return &Handler{filters: append([]Filter(nil), filters...)}
}

// Handle converts err into a *graphql.Error and applies every filter in
// order. Each filter sees the previous filter's output.
func (h *Handler) Handle(ctx context.Context, err error) *graphql.Error {
	var gqlErr *graphql.Error
	if !errors.As(err, &gqlErr) {
		gqlErr = &graphql.Error{Message: err.Error()}
	}
	for _, f := range h.filters {
		if next := f(ctx, gqlErr); next != nil {
			gqlErr = next
		}
	}
	return gqlErr
}
