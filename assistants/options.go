package assistants

import (
	"context"

	"github.com/ohtaman/planchat/pkg/llms"
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// TopK is the number of tokens to consider for top-k sampling in an LLM call.
	TopK    int
	topkSet bool

	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP    float64
	toppSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	// ThinkingBudget is the token budget for the model's internal reasoning.
	ThinkingBudget    int32
	thinkingBudgetSet bool

	// IncludeThoughts requests thought summaries in the response.
	IncludeThoughts    bool
	includeThoughtsSet bool

	// Tools is a list of tool definitions for the LLM call.
	Tools    []llms.Tool
	toolsSet bool

	// StreamingFunc receives response chunks as the model produces them.
	StreamingFunc    func(ctx context.Context, chunk []byte) error
	streamingFuncSet bool

	// CallbackHandler receives assistant and tool lifecycle events.
	CallbackHandler Callback

	//
	// Below are the options for the Assistant, not related to LLM call
	//

	// PromptInput provides default values for the system prompt template.
	PromptInput map[string]any

	// MaxToolCalls limits the total tool calls in a single assistant call.
	MaxToolCalls int

	// MaxMessages limits the message history length in a single assistant call.
	MaxMessages int
}

const (
	// DefaultMaxToolCalls limits tool calls in a single assistant call.
	DefaultMaxToolCalls = 100
	// DefaultMaxMessages limits the message history length.
	DefaultMaxMessages = 1000
	// DefaultMaxRetries limits retries on empty LLM responses.
	DefaultMaxRetries = 3
)

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxToolCalls: DefaultMaxToolCalls,
		MaxMessages:  DefaultMaxMessages,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the given options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithMaxToolCalls limits the total tool calls in a single assistant call.
func WithMaxToolCalls(limit int) Option {
	return func(o *Config) {
		o.MaxToolCalls = limit
	}
}

// WithMaxMessages limits the message history length in a single assistant call.
func WithMaxMessages(limit int) Option {
	return func(o *Config) {
		o.MaxMessages = limit
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopK will add an option to use top-k sampling for LLM.Call.
func WithTopK(topK int) Option {
	return func(o *Config) {
		o.TopK = topK
		o.topkSet = true
	}
}

// WithTopP will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithThinkingBudget sets the token budget for the model's internal reasoning.
func WithThinkingBudget(budget int32) Option {
	return func(o *Config) {
		o.ThinkingBudget = budget
		o.thinkingBudgetSet = true
	}
}

// WithIncludeThoughts requests thought summaries in the response.
func WithIncludeThoughts(include bool) Option {
	return func(o *Config) {
		o.IncludeThoughts = include
		o.includeThoughtsSet = true
	}
}

// WithTools is an option for LLM.Call.
func WithTools(tools []llms.Tool) Option {
	return func(o *Config) {
		o.Tools = tools
		o.toolsSet = true
	}
}

// WithStreamingFunc streams response chunks to the given function during the
// LLM call.
func WithStreamingFunc(fn func(ctx context.Context, chunk []byte) error) Option {
	return func(o *Config) {
		o.StreamingFunc = fn
		o.streamingFuncSet = true
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

func (c *Config) GetCallOptions(options ...Option) []llms.CallOption {
	cfg := c.Apply(options...)

	var callOptions []llms.CallOption
	if cfg.modelSet {
		callOptions = append(callOptions, llms.WithModel(cfg.Model))
	}
	if cfg.maxTokensSet {
		callOptions = append(callOptions, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.temperatureSet {
		callOptions = append(callOptions, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.topkSet {
		callOptions = append(callOptions, llms.WithTopK(cfg.TopK))
	}
	if cfg.toppSet {
		callOptions = append(callOptions, llms.WithTopP(cfg.TopP))
	}
	if cfg.seedSet {
		callOptions = append(callOptions, llms.WithSeed(cfg.Seed))
	}
	if cfg.thinkingBudgetSet {
		callOptions = append(callOptions, llms.WithThinkingBudget(cfg.ThinkingBudget))
	}
	if cfg.includeThoughtsSet {
		callOptions = append(callOptions, llms.WithIncludeThoughts(cfg.IncludeThoughts))
	}
	if cfg.toolsSet {
		callOptions = append(callOptions, llms.WithTools(cfg.Tools))
	}
	if cfg.streamingFuncSet {
		callOptions = append(callOptions, llms.WithStreamingFunc(cfg.StreamingFunc))
	}
	return callOptions
}
