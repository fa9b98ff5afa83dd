// Package worker implements the task processing loop: it consumes task
// envelopes, routes them through the selector, invokes the chosen provider
// adapter, validates the result and falls back to the privacy-safe chain when
// the primary attempt fails. Exactly one response envelope leaves the
// processor per consumed task.
package worker

import (
	"context"
	"fmt"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/fallback"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/provider/bedrock"
	"github.com/hupe1980/llmrelay/provider/claude"
	"github.com/hupe1980/llmrelay/provider/ionos"
	"github.com/hupe1980/llmrelay/provider/litellm"
	"github.com/hupe1980/llmrelay/provider/mistral"
	"github.com/hupe1980/llmrelay/provider/openai"
)

// ValidationError marks a provider response that violated the result contract
// (for example a tool_use stop with no tool calls). It counts as a primary
// failure and triggers the fallback chain.
type ValidationError struct {
	Provider string
	Reason   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s response failed validation: %s", e.Provider, e.Reason)
}

// Options configures a Processor.
type Options struct {
	// Logger receives processing diagnostics.
	Logger logging.Logger
	// Fallback overrides the default privacy-safe chain.
	Fallback *fallback.Chain
	// Adapters overrides the default adapter registry, keyed by provider
	// name. Used by tests to substitute stubs.
	Adapters map[string]provider.Adapter
}

// Processor consumes task envelopes and emits exactly one response envelope
// per task. It owns no transport: callers feed it through channels or call
// ProcessTask directly.
type Processor struct {
	cfg      *config.Config
	logger   logging.Logger
	adapters map[string]provider.Adapter
	fallback *fallback.Chain
}

// New constructs a Processor with the full adapter registry wired from the
// configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) *Processor {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	adapters := opts.Adapters
	if adapters == nil {
		adapters = map[string]provider.Adapter{
			provider.Bedrock: bedrock.New(cfg, func(o *bedrock.Options) { o.Logger = opts.Logger }),
			provider.Mistral: mistral.New(cfg, func(o *mistral.Options) { o.Logger = opts.Logger }),
			provider.LiteLLM: litellm.New(cfg),
			provider.Ionos:   ionos.New(cfg),
			provider.OpenAI:  openai.New(cfg),
			provider.Claude:  claude.New(cfg),
		}
	}

	chain := opts.Fallback
	if chain == nil {
		chain = fallback.New(func(o *fallback.Options) {
			o.Logger = opts.Logger
		})
	}

	return &Processor{
		cfg:      cfg,
		logger:   opts.Logger,
		adapters: adapters,
		fallback: chain,
	}
}

// Run consumes tasks until ctx is canceled or in closes. Every response is
// written to out; dropped envelopes (protocol violations) produce nothing.
func (p *Processor) Run(ctx context.Context, in <-chan core.TaskMessage, out chan<- core.ResponseMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-in:
			if !ok {
				return
			}
			resp := p.ProcessTask(ctx, task)
			if resp == nil {
				continue
			}
			select {
			case out <- *resp:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ProcessTask handles one envelope. It returns nil only for protocol
// violations (non-request types), which are logged and dropped without a
// response; every well-typed task yields exactly one response or error
// envelope.
func (p *Processor) ProcessTask(ctx context.Context, task core.TaskMessage) *core.ResponseMessage {
	if task.Type != core.MessageTypeRequest {
		p.logger.Warn("dropping envelope with unexpected type",
			"type", string(task.Type), "requestId", task.RequestID)
		return nil
	}
	if task.Data == nil {
		return errorResponse(task.RequestID, fmt.Errorf("task %s carries no payload", task.RequestID))
	}

	result, err := p.execute(ctx, task.RequestID, task.Data)
	if err != nil {
		p.logger.Error("task failed", "requestId", task.RequestID, "error", err.Error())
		return errorResponse(task.RequestID, err)
	}

	return &core.ResponseMessage{
		Type:      core.MessageTypeResponse,
		RequestID: task.RequestID,
		Data:      result,
	}
}

// execute runs the primary attempt and, on any failure, the fallback chain.
// The error returned on total failure is the primary attempt's, never the
// fallback chain's.
func (p *Processor) execute(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	decision := provider.Select(payload, p.cfg)

	// The selector's decision is authoritative unless the caller pinned a
	// route-level provider, whose own options then pass through untouched.
	effective := payload.Clone()
	if payload.Options.Provider == "" {
		effective.Options.Provider = decision.Provider
		effective.Options.Model = decision.Model
		effective.Options.UseBedrock = decision.UseBedrock
	}

	adapter, err := p.resolveAdapter(payload, decision)
	if err != nil {
		return nil, err
	}

	p.logger.Info("dispatching task",
		"requestId", requestID,
		"provider", adapter.Name(),
		"model", effective.Options.Model,
		"type", payload.Type)

	result, primaryErr := p.invoke(ctx, adapter, requestID, effective)
	if primaryErr == nil {
		return result, nil
	}
	p.logger.Warn("primary attempt failed",
		"requestId", requestID, "provider", adapter.Name(), "error", primaryErr.Error())

	// Safety net. Candidates receive the original request, not the already
	// routed one, so the chain's own provider/model pinning applies cleanly.
	fbResult, fbErr := p.fallback.Run(ctx, payload, func(ctx context.Context, candidate fallback.Candidate, attempt *core.RequestPayload) (*core.Result, error) {
		candidateAdapter, ok := p.adapters[candidate.Provider]
		if !ok {
			return nil, fmt.Errorf("no adapter registered for fallback provider %q", candidate.Provider)
		}
		return p.invoke(ctx, candidateAdapter, requestID, attempt)
	})
	if fbErr != nil {
		// The fallback aggregate is diagnostic only; the caller sees the
		// primary failure.
		p.logger.Error("fallback exhausted", "requestId", requestID, "error", fbErr.Error())
		return nil, primaryErr
	}
	return fbResult, nil
}

// payloadDumper is implemented by loggers that can emit full payload dumps
// behind a verbosity gate (logging.RelayLogger).
type payloadDumper interface {
	DumpPayload(label string, payload any)
}

// invoke calls one adapter and enforces the result contract on success.
func (p *Processor) invoke(ctx context.Context, adapter provider.Adapter, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	if d, ok := p.logger.(payloadDumper); ok {
		d.DumpPayload("provider request payload", payload)
	}
	result, err := adapter.Complete(ctx, requestID, payload)
	if err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, &ValidationError{Provider: adapter.Name(), Reason: err.Error()}
	}
	if d, ok := p.logger.(payloadDumper); ok {
		d.DumpPayload("provider response payload", result)
	}
	return result, nil
}

// resolveAdapter applies the dispatch policy. A top-level provider set on the
// request wins outright; claude in particular must bypass the useBedrock
// branch, which would otherwise capture every Claude-family model. Without an
// explicit provider, pro-mode tasks go to bedrock and everything else to the
// provider the selector chose.
func (p *Processor) resolveAdapter(payload *core.RequestPayload, decision provider.Decision) (provider.Adapter, error) {
	name := payload.Options.Provider
	if name == "" {
		if decision.UseBedrock {
			name = provider.Bedrock
		} else {
			name = decision.Provider
		}
	}
	if name == "" {
		name = provider.Mistral
	}
	adapter, ok := p.adapters[name]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", name)
	}
	return adapter, nil
}

func errorResponse(requestID string, err error) *core.ResponseMessage {
	return &core.ResponseMessage{
		Type:      core.MessageTypeError,
		RequestID: requestID,
		Error:     err.Error(),
	}
}
