// Package options defines the per-name configuration bundle an executor is
// built from and the source interface that supplies it.
package options

import (
	config "github.com/hanpama/graphhost/internal/config"
	errfilter "github.com/hanpama/graphhost/internal/errfilter"
	pipeline "github.com/hanpama/graphhost/internal/pipeline"
	schema "github.com/hanpama/graphhost/internal/schema"
)

// DefaultName is the executor name used when a caller does not name one.
const DefaultName = "default"

// FactoryOptions bundles everything needed to build one named executor.
// The registry treats a bundle as immutable once read for a build.
type FactoryOptions struct {
	// Schema, when set, is used as-is; SchemaBuilder and SchemaActions are
	// ignored and no builder actions run.
	Schema *schema.Schema

	// SchemaBuilder seeds the builder path. Nil means a fresh builder.
	SchemaBuilder *schema.Builder

	// SchemaActions run against the builder in list order.
	SchemaActions []schema.Action

	// Config seeds configuration resolution. Nil means defaults.
	Config *config.RequestConfig

	// ConfigActions run against the configuration in list order.
	ConfigActions []config.Action

	// MiddlewareFactories define the pipeline. Empty means the built-in
	// default chain.
	MiddlewareFactories []pipeline.MiddlewareFactory

	// ErrorFilterFactories produce the executor's explicit error filters.
	ErrorFilterFactories []errfilter.FilterFactory
}

// Source supplies factory options per executor name.
type Source interface {
	// Options returns the bundle for name. A source must return an empty
	// bundle, not an error, for names it has no configuration for.
	Options(name string) (*FactoryOptions, error)
}

// Notifier is implemented by sources that can report configuration changes.
// The registry subscribes its eviction path to change notifications.
type Notifier interface {
	// Subscribe registers fn to be called with the name whose configuration
	// changed. The returned stop function removes the subscription.
	Subscribe(fn func(name string)) (stop func())
}
