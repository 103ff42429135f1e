package graphql

import (
	"context"

	language "github.com/hanpama/graphhost/internal/language"
)

// Request is a single GraphQL request as received from a transport.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// Response is the GraphQL response envelope per spec.
type Response struct {
	Data   any      `json:"data"`
	Errors []*Error `json:"errors,omitempty"`
}

// Error is a located GraphQL error (message + path + extensions).
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// AddError appends e to the response error list.
func (r *Response) AddError(e *Error) {
	if e == nil {
		return
	}
	r.Errors = append(r.Errors, e)
}

// ExecutionParams carries everything an engine needs to run one operation.
type ExecutionParams struct {
	Schema        *language.Schema
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
	RootValue     any
}

// ExecutionEngine is the boundary to the query execution machinery. The
// hosting layer never executes operations itself; the configured engine does.
type ExecutionEngine interface {
	ExecuteOperation(ctx context.Context, params ExecutionParams) (*Response, error)
}

// Services is the opaque service-resolution context handed to builder actions,
// middleware factories and filter factories. The hosting layer only forwards
// it and never inspects what a key resolves to.
type Services interface {
	Get(key string) (any, bool)
}

// ServiceMap is a Services backed by a plain map.
type ServiceMap map[string]any

func (m ServiceMap) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}
