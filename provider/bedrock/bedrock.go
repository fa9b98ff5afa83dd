// Package bedrock implements the provider adapter for Anthropic models hosted
// on AWS Bedrock, using the Converse API. On throttling it walks down a
// degraded model hierarchy (pro tier, then the fast/cheap tier) before giving
// up.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client required
// by the adapter. It matches *bedrockruntime.Client so callers can pass either
// the real client or a fake in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	// Runtime overrides the lazily-built SDK client (tests).
	Runtime RuntimeClient
	// MaxRetries bounds the per-model backoff attempts on throttling.
	MaxRetries uint64
	// Logger receives hierarchy walk diagnostics.
	Logger logging.Logger
}

// Adapter wraps the Bedrock Converse API behind provider.Adapter.
type Adapter struct {
	cfg  *config.Config
	opts Options

	once    sync.Once
	runtime RuntimeClient
	initErr error
}

// New constructs the adapter. The SDK client resolves credentials through the
// AWS default chain at first use.
func New(cfg *config.Config, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		MaxRetries: 2,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{cfg: cfg, opts: opts}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return provider.Bedrock }

func (a *Adapter) ensureRuntime(ctx context.Context) (RuntimeClient, error) {
	a.once.Do(func() {
		if a.opts.Runtime != nil {
			a.runtime = a.opts.Runtime
			return
		}
		region := ""
		if a.cfg != nil {
			region = a.cfg.AWSRegion
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			a.initErr = &provider.ConfigError{Provider: provider.Bedrock, Variable: "AWS credential chain"}
			return
		}
		a.runtime = bedrockruntime.NewFromConfig(awsCfg)
	})
	return a.runtime, a.initErr
}

// Complete implements provider.Adapter. Throttled calls retry with backoff on
// the requested model, then degrade through the model hierarchy.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	runtime, err := a.ensureRuntime(ctx)
	if err != nil {
		return nil, err
	}

	requested := payload.Options.Model
	if requested == "" {
		requested = provider.BedrockProModel
	}

	var lastErr error
	for _, modelID := range modelHierarchy(requested) {
		result, err := a.converseWithRetry(ctx, runtime, requestID, payload, modelID)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !provider.IsTransient(err) {
			return nil, err
		}
		a.opts.Logger.Warn("bedrock model throttled, degrading", "model", modelID)
	}
	return nil, fmt.Errorf("bedrock model hierarchy exhausted: %w", lastErr)
}

// modelHierarchy lists the models to try in order: the requested model, then
// the pro tier, then the fast tier, with duplicates removed.
func modelHierarchy(requested string) []string {
	hierarchy := []string{requested, provider.BedrockProModel, provider.BedrockFastModel}
	seen := make(map[string]struct{}, len(hierarchy))
	out := make([]string, 0, len(hierarchy))
	for _, m := range hierarchy {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func (a *Adapter) converseWithRetry(ctx context.Context, runtime RuntimeClient, requestID string, payload *core.RequestPayload, modelID string) (*core.Result, error) {
	input, err := buildConverseInput(payload, modelID)
	if err != nil {
		return nil, err
	}

	var output *bedrockruntime.ConverseOutput
	operation := func() error {
		out, opErr := runtime.Converse(ctx, input)
		if opErr != nil {
			if isThrottled(opErr) {
				return fmt.Errorf("bedrock throttled: %v: %w", opErr, provider.ErrRateLimited)
			}
			return backoff.Permanent(fmt.Errorf("bedrock converse failed: %w", opErr))
		}
		output = out
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.opts.MaxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return translateResponse(output, modelID, requestID)
}

// isThrottled reports whether err represents a provider throttling or
// warm-up condition, via the smithy error code or an HTTP 429.
func isThrottled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ModelNotReadyException", "ServiceUnavailableException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusTooManyRequests {
		return true
	}
	return false
}

func buildConverseInput(payload *core.RequestPayload, modelID string) (*bedrockruntime.ConverseInput, error) {
	messages, system, err := encodeMessages(payload)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolCfg := encodeTools(payload.Options.Tools); toolCfg != nil {
		input.ToolConfig = toolCfg
	}

	temperature, topP := provider.EffectiveSampling(payload)
	cfg := &brtypes.InferenceConfiguration{
		Temperature: aws.Float32(float32(temperature)),
		TopP:        aws.Float32(float32(topP)),
	}
	if payload.Options.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(payload.Options.MaxTokens))
	}
	input.InferenceConfig = cfg
	return input, nil
}

func encodeMessages(payload *core.RequestPayload) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	if payload.SystemPrompt != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: payload.SystemPrompt})
	}

	var conversation []brtypes.Message
	for _, m := range payload.Messages {
		switch m.Role {
		case "system":
			if m.Content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			}
		case "assistant":
			var blocks []brtypes.ContentBlock
			if m.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     toDocument(tc.Input),
				}})
			}
			if len(blocks) > 0 {
				conversation = append(conversation, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
			}
		case "tool":
			// Converse expects tool results inside user messages, one
			// ToolResultBlock per originating call.
			conversation = append(conversation, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Content: []brtypes.ToolResultContentBlock{
							&brtypes.ToolResultContentBlockMemberText{Value: m.Content},
						},
					}},
				},
			})
		default:
			blocks := []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}}
			for _, att := range m.Attachments {
				blocks = append(blocks, &brtypes.ContentBlockMemberDocument{Value: brtypes.DocumentBlock{
					Name:   aws.String(att.Name),
					Format: documentFormat(att.MimeType),
					Source: &brtypes.DocumentSourceMemberBytes{Value: att.Data},
				}})
			}
			conversation = append(conversation, brtypes.Message{Role: brtypes.ConversationRoleUser, Content: blocks})
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeTools(defs []core.ToolDefinition) *brtypes.ToolConfiguration {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(def.Parameters)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func documentFormat(mime string) brtypes.DocumentFormat {
	switch mime {
	case "application/pdf":
		return brtypes.DocumentFormatPdf
	case "text/csv":
		return brtypes.DocumentFormatCsv
	case "text/markdown":
		return brtypes.DocumentFormatMd
	default:
		return brtypes.DocumentFormatTxt
	}
}

func toDocument(v map[string]any) document.Interface {
	if v == nil {
		v = map[string]any{"type": "object"}
	}
	return document.NewLazyDocument(v)
}

func translateResponse(output *bedrockruntime.ConverseOutput, modelID, requestID string) (*core.Result, error) {
	if output == nil {
		return nil, errors.New("bedrock: response is nil")
	}

	result := &core.Result{
		Success:  true,
		Metadata: core.NewResultMetadata(provider.Bedrock, modelID, requestID),
	}

	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				if v.Value == "" {
					continue
				}
				result.Content += v.Value
				result.RawContentBlocks = append(result.RawContentBlocks, core.ContentBlock{Type: "text", Text: v.Value})
			case *brtypes.ContentBlockMemberToolUse:
				call := core.ToolCall{Input: decodeDocument(v.Value.Input)}
				if v.Value.ToolUseId != nil {
					call.ID = *v.Value.ToolUseId
				}
				if v.Value.Name != nil {
					call.Name = *v.Value.Name
				}
				result.ToolCalls = append(result.ToolCalls, call)
				blockCall := call
				result.RawContentBlocks = append(result.RawContentBlocks, core.ContentBlock{Type: "tool_use", ToolCall: &blockCall})
			}
		}
	}

	switch output.StopReason {
	case brtypes.StopReasonToolUse:
		result.StopReason = core.StopReasonToolUse
	case brtypes.StopReasonEndTurn, brtypes.StopReasonStopSequence:
		result.StopReason = core.StopReasonStop
	default:
		result.StopReason = core.StopReasonOther
	}

	if usage := output.Usage; usage != nil {
		result.Metadata.Usage = &core.TokenUsage{
			PromptTokens:     int(aws.ToInt32(usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(usage.TotalTokens)),
		}
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("bedrock returned unusable completion: %w", err)
	}
	return result, nil
}

func decodeDocument(doc document.Interface) map[string]any {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"raw": string(data)}
	}
	return out
}
