// Package openai implements the llms.Model provider for OpenAI chat models
// over the github.com/openai/openai-go SDK.
package openai

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

var (
	ErrEmptyResponse = errors.New("no response")
)

// LLM is an OpenAI chat completions client.
type LLM struct {
	client openai.Client
	opts   Options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	clientOptions := DefaultOptions()
	for _, opt := range opts {
		opt(&clientOptions)
	}
	clientOptions.EnsureAuthPresent()
	if clientOptions.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(clientOptions.APIKey),
	}
	if clientOptions.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(clientOptions.BaseURL))
	}
	if clientOptions.Organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(clientOptions.Organization))
	}
	if clientOptions.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(clientOptions.HTTPClient))
	}

	return &LLM{
		client: openai.NewClient(reqOpts...),
		opts:   clientOptions,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:       o.opts.DefaultModel,
		MaxTokens:   o.opts.DefaultMaxTokens,
		Temperature: o.opts.DefaultTemperature,
	}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.Seed > 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: opts.StopWords,
		}
	}
	if o.opts.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(o.opts.ReasoningEffort)
	}
	for _, tool := range opts.Tools {
		t, err := toolFromTool(tool)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to convert tool")
		}
		params.Tools = append(params.Tools, t)
	}

	var result *openai.ChatCompletion
	if opts.StreamingFunc != nil {
		result, err = o.streamCompletion(ctx, params, opts.StreamingFunc)
	} else {
		result, err = o.client.Chat.Completions.New(ctx, params)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, errors.WithStack(ErrEmptyResponse)
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":      result.Usage.PromptTokens,
				"OutputTokens":     result.Usage.CompletionTokens,
				"TotalTokens":      result.Usage.TotalTokens,
				"ReasoningTokens":  result.Usage.CompletionTokensDetails.ReasoningTokens,
				"CacheReadTokens":  result.Usage.PromptTokensDetails.CachedTokens,
				"AudioTokens":      result.Usage.CompletionTokensDetails.AudioTokens,
				"RejectedTokens":   result.Usage.CompletionTokensDetails.RejectedPredictionTokens,
				"PredictionTokens": result.Usage.CompletionTokensDetails.AcceptedPredictionTokens,
			},
			ReasoningContent: extractReasoningContent(c.Message.RawJSON()),
		}
		for _, tool := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: string(tool.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// streamCompletion runs the completion as a stream, forwarding content deltas
// to streamFn and returning the accumulated completion.
func (o *LLM) streamCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	streamFn func(ctx context.Context, chunk []byte) error,
) (*openai.ChatCompletion, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() {
		_ = stream.Close()
	}()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := streamFn(ctx, []byte(delta)); err != nil {
				return nil, errors.WithMessage(err, "streaming callback failed")
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &acc.ChatCompletion, nil
}

func convertMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	chatMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			chatMsgs = append(chatMsgs, openai.SystemMessage(llms.TextFromParts(mc.Parts)))
		case llms.RoleHuman:
			chatMsgs = append(chatMsgs, openai.UserMessage(llms.TextFromParts(mc.Parts)))
		case llms.RoleAI:
			msg, err := assistantMessage(mc)
			if err != nil {
				return nil, err
			}
			chatMsgs = append(chatMsgs, msg)
		case llms.RoleTool:
			for _, part := range mc.Parts {
				p, ok := part.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.Newf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, part)
				}
				chatMsgs = append(chatMsgs, openai.ToolMessage(p.Content, p.ToolCallID))
			}
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
		}
	}
	return chatMsgs, nil
}

func assistantMessage(mc llms.Message) (openai.ChatCompletionMessageParamUnion, error) {
	param := openai.ChatCompletionAssistantMessageParam{}
	if text := llms.TextFromParts(mc.Parts); text != "" {
		param.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	for _, part := range mc.Parts {
		tc, ok := part.(llms.ToolCall)
		if !ok {
			continue
		}
		if tc.FunctionCall == nil {
			return openai.ChatCompletionMessageParamUnion{}, errors.New("tool call without function call")
		}
		param.ToolCalls = append(param.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &param}, nil
}

// toolFromTool converts an llms.Tool to the SDK tool param.
func toolFromTool(t llms.Tool) (openai.ChatCompletionToolParam, error) {
	if t.Type != "function" {
		return openai.ChatCompletionToolParam{}, errors.Newf("tool type %v not supported", t.Type)
	}
	params, err := functionParameters(t.Function.Parameters)
	if err != nil {
		return openai.ChatCompletionToolParam{}, err
	}
	fn := shared.FunctionDefinitionParam{
		Name:       t.Function.Name,
		Parameters: params,
	}
	if t.Function.Description != "" {
		fn.Description = openai.String(t.Function.Description)
	}
	return openai.ChatCompletionToolParam{Function: fn}, nil
}

func functionParameters(params any) (shared.FunctionParameters, error) {
	if params == nil {
		return shared.FunctionParameters{"type": "object"}, nil
	}
	bs, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal parameters")
	}
	var out shared.FunctionParameters
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode parameters")
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out, nil
}

// extractReasoningContent pulls reasoning_content emitted by thinking models
// that extend the chat completions wire format.
func extractReasoningContent(raw string) string {
	if raw == "" {
		return ""
	}
	var parsed struct {
		ReasoningContent string `json:"reasoning_content"`
	}
	_ = json.Unmarshal([]byte(raw), &parsed)
	return parsed.ReasoningContent
}
