// Package logging mirrors event-bus traffic into structured zerolog output.
// It is one of the diagnostics sinks subscribed to the registry's lifecycle
// events; the bus isolates subscriber panics, so a misbehaving log writer
// never aborts a build or an eviction.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	eventbus "github.com/hanpama/graphhost/internal/eventbus"
	events "github.com/hanpama/graphhost/internal/events"
	registry "github.com/hanpama/graphhost/internal/registry"
	reqid "github.com/hanpama/graphhost/internal/reqid"
)

// Options describes logger configuration supplied at creation time.
type Options struct {
	Level  string
	Pretty bool
	Writer io.Writer
}

// New creates a configured zerolog logger.
func New(opts Options) (zerolog.Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), err
		}
		level = parsed
	}
	out := writer
	if opts.Pretty {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		out = console
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Attach subscribes log emitters for executor lifecycle, request and HTTP
// events. The returned function removes all subscriptions.
func Attach(log zerolog.Logger) (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e registry.ExecutorCreated) {
			log.Info().
				Str("executor", e.Name).
				Str("schema", e.Executor.Schema().Name).
				Msg("executor created")
		}),
		eventbus.Subscribe(func(ctx context.Context, e registry.ExecutorEvicted) {
			log.Info().
				Str("executor", e.Name).
				Msg("executor evicted")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RequestFinish) {
			rid, _ := reqid.FromContext(ctx)
			log.Debug().
				Int64("request_id", rid).
				Str("executor", e.ExecutorName).
				Str("operation", e.OperationName).
				Int("errors", e.ErrorCount).
				Dur("duration", e.Duration).
				Msg("request finished")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			log.Debug().
				Int64("request_id", rid).
				Str("method", e.Request.Method).
				Str("path", e.Request.URL.Path).
				Int("status", e.Status).
				Dur("duration", e.Duration).
				Msg("http request")
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
