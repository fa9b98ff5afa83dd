// Package llmrelay provides a high-level façade over the task processor and
// provider routing layer enabling rapid construction of multi-provider
// inference workers. Most applications interact with this package by:
//  1. Creating a Relay via New() (optionally overriding configuration,
//     logging or the fallback chain)
//  2. Feeding it task envelopes, either one at a time (Process) or through
//     channels (Run)
//
// The façade delegates routing to provider.Select and execution to
// worker.Processor while keeping setup ergonomics concise. All defaults are
// safe for local development; production deployments typically supply a
// structured logger and explicit configuration.
package llmrelay

import (
	"context"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/fallback"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/worker"
)

// Options configures the Relay instance.
type Options struct {
	// Config carries credentials, endpoints and operator overrides. When nil
	// it is loaded from the environment (including a .env file if present).
	Config *config.Config

	// Logger (defaults to a structured logger honoring the configured
	// verbosity).
	Logger logging.Logger

	// Fallback overrides the default privacy-safe candidate chain.
	Fallback *fallback.Chain

	// Adapters substitutes the provider registry, keyed by provider name.
	Adapters map[string]provider.Adapter
}

// Relay is the high-level façade aggregating configuration, routing and the
// task processor.
type Relay struct {
	opts      Options
	processor *worker.Processor
}

// New creates a new Relay with optional overrides. Unset options fall back to
// environment-derived configuration and a verbosity-aware logger.
func New(optFns ...func(o *Options)) *Relay {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config == nil {
		opts.Config = config.Load()
	}
	if opts.Logger == nil {
		lc := logging.DefaultLoggerConfig()
		lc.Verbosity = opts.Config.Verbosity
		opts.Logger = logging.NewLogger(lc)
	}

	processor := worker.New(opts.Config, func(o *worker.Options) {
		o.Logger = opts.Logger
		o.Fallback = opts.Fallback
		o.Adapters = opts.Adapters
	})

	return &Relay{opts: opts, processor: processor}
}

// Process handles one task envelope synchronously. It returns nil for
// protocol violations, which are dropped without a response.
func (r *Relay) Process(ctx context.Context, task core.TaskMessage) *core.ResponseMessage {
	return r.processor.ProcessTask(ctx, task)
}

// Run consumes tasks from in until ctx is canceled or in closes, writing one
// response per well-typed task to out.
func (r *Relay) Run(ctx context.Context, in <-chan core.TaskMessage, out chan<- core.ResponseMessage) {
	r.processor.Run(ctx, in, out)
}

// Decide exposes the routing decision for a payload without executing it.
// Useful for dry runs and diagnostics.
func (r *Relay) Decide(payload *core.RequestPayload) provider.Decision {
	return provider.Select(payload, r.opts.Config)
}
