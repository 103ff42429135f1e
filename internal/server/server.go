package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	eventbus "github.com/hanpama/graphhost/internal/eventbus"
	events "github.com/hanpama/graphhost/internal/events"
	graphql "github.com/hanpama/graphhost/internal/graphql"
	registry "github.com/hanpama/graphhost/internal/registry"
	reqid "github.com/hanpama/graphhost/internal/reqid"
)

// Handler is an http.Handler that serves GraphQL endpoints backed by the
// executor registry. The executor name is taken from the first path segment
// after the handler's mount point ("/graphql/billing" serves the "billing"
// executor); the bare mount point serves the default executor.
type Handler struct {
	reg *registry.Registry
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// PathPrefix is the mount point used to extract the executor name.
	// Default is "/graphql".
	PathPrefix string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithPathPrefix(p string) Option { return func(o *Options) { o.PathPrefix = p } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler over reg.
func New(reg *registry.Registry, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, PathPrefix: "/graphql"}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{reg: reg, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	req, perr := parseRequest(r, h.opt.MaxBodyBytes)
	if perr != nil {
		status = http.StatusBadRequest
		if errors.Is(perr, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(perr.Error()), h.opt.Pretty)
		return
	}

	exec, err := h.reg.GetOrCreate(ctx, h.executorName(r))
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDisposed):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse(err.Error()), h.opt.Pretty)
		return
	}

	res := exec.Execute(ctx, req)
	writeJSON(w, status, res, h.opt.Pretty)
}

// executorName extracts the executor name from the request path. An empty
// segment means the default executor.
func (h *Handler) executorName(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, h.opt.PathPrefix)
	p = strings.Trim(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// ------------------ Request parsing ------------------

var errBodyTooLarge = errors.New("request body too large")

func parseRequest(r *http.Request, maxBody int64) (*graphql.Request, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return nil, errors.New("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return nil, errors.New("invalid 'variables' JSON")
			}
		}
		return &graphql.Request{
			Query:         q,
			Variables:     vars,
			OperationName: r.URL.Query().Get("operationName"),
		}, nil
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return nil, errors.New("unsupported Content-Type")
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.New("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, errBodyTooLarge
	}

	var req graphql.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.New("invalid JSON")
	}
	if req.Query == "" {
		return nil, errors.New("missing 'query'")
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return &req, nil
}

// ------------------ Response formatting ------------------

func errorResponse(message string) *graphql.Response {
	return &graphql.Response{Errors: []*graphql.Error{{Message: message}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

// ------------------ CORS ------------------

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Vary", "Origin")
}
