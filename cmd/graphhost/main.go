package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hanpama/graphhost/internal/eventbus"
	"github.com/hanpama/graphhost/internal/logging"
	"github.com/hanpama/graphhost/internal/options"
	"github.com/hanpama/graphhost/internal/otel"
	"github.com/hanpama/graphhost/internal/registry"
	"github.com/hanpama/graphhost/internal/schema"
	"github.com/hanpama/graphhost/internal/server"
)

const rootUsage = `graphhost — named GraphQL executor hosting

USAGE:
  graphhost <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint backed by the executor registry
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -graphql.schema <file>       SDL file loaded into the default executor (required)
  -server.addr <addr>          HTTP listen address (default: :8080)
  -server.pretty               Pretty-print JSON responses
  -server.timeout <duration>   Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>     Max request body size (default: 1048576)
  -log.level <level>           Log level: trace..panic (default: info)
  -log.pretty                  Human-readable console logs
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: graphhost)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "help", "-h", "--help":
		fmt.Print(rootUsage)
		fmt.Print(serveUsage)
		return nil
	default:
		fmt.Print(rootUsage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	schemaFile := fs.String("graphql.schema", "", "")
	addr := fs.String("server.addr", ":8080", "")
	pretty := fs.Bool("server.pretty", false, "")
	timeout := fs.Duration("server.timeout", 10*time.Second, "")
	maxBody := fs.Int64("server.max-body", 1<<20, "")
	logLevel := fs.String("log.level", "info", "")
	logPretty := fs.Bool("log.pretty", false, "")
	otelEndpoint := fs.String("otel.endpoint", "", "")
	otelService := fs.String("otel.service", "graphhost", "")
	fs.Usage = func() { fmt.Print(serveUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *schemaFile == "" {
		fs.Usage()
		return fmt.Errorf("-graphql.schema is required")
	}

	sdl, err := os.ReadFile(*schemaFile)
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	eventbus.Use(eventbus.New())

	log, err := logging.New(logging.Options{Level: *logLevel, Pretty: *logPretty})
	if err != nil {
		return err
	}
	detach := logging.Attach(log)
	defer detach()

	shutdown, err := otel.Setup(*otelEndpoint, *otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	source := options.NewInMemorySource()
	source.Set(options.DefaultName, &options.FactoryOptions{
		SchemaActions: []schema.Action{{
			Apply: func(b *schema.Builder) { b.AddSource(*schemaFile, string(sdl)) },
		}},
	})

	reg := registry.New(source)
	defer func() { _ = reg.Close() }()

	srvOpts := []server.Option{server.WithTimeout(*timeout), server.WithMaxBodyBytes(*maxBody)}
	if *pretty {
		srvOpts = append(srvOpts, server.WithPretty())
	}
	handler := server.New(reg, srvOpts...)

	mux := http.NewServeMux()
	mux.Handle("/graphql", handler)
	mux.Handle("/graphql/", handler)

	log.Info().Str("addr", *addr).Msg("listening")
	return http.ListenAndServe(*addr, mux)
}
