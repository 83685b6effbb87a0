package openai

import (
	"net/http"
	"os"
)

// Options is a set of options for the OpenAI client.
type Options struct {
	BaseURL            string
	DefaultModel       string
	DefaultMaxTokens   int
	DefaultTemperature float64
	ReasoningEffort    string
	APIKey             string
	Organization       string
	HTTPClient         *http.Client
}

func DefaultOptions() Options {
	return Options{
		DefaultModel:       "gpt-4o",
		DefaultMaxTokens:   16384,
		DefaultTemperature: 0.5,
	}
}

// EnsureAuthPresent attempts to ensure that the client has authentication
// information, falling back to the OPENAI_API_KEY environment variable.
func (o *Options) EnsureAuthPresent() {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

type Option func(*Options)

// WithAPIKey passes the API KEY (token) to the client.
func WithAPIKey(apiKey string) Option {
	return func(opts *Options) {
		opts.APIKey = apiKey
	}
}

// WithBaseURL passes a custom API endpoint, for Azure or proxies.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithOrganization sets the OpenAI organization ID.
func WithOrganization(org string) Option {
	return func(opts *Options) {
		opts.Organization = org
	}
}

// WithHTTPClient uses the provided HTTP client to make requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = httpClient
	}
}

// WithDefaultModel passes a default content model name to the client. This
// model name is used if not explicitly provided in specific client invocations.
func WithDefaultModel(defaultModel string) Option {
	return func(opts *Options) {
		opts.DefaultModel = defaultModel
	}
}

// WithDefaultTemperature sets the default temperature for the model.
func WithDefaultTemperature(t float64) Option {
	return func(opts *Options) {
		opts.DefaultTemperature = t
	}
}

// WithDefaultMaxTokens sets the default max completion tokens for the model.
func WithDefaultMaxTokens(n int) Option {
	return func(opts *Options) {
		opts.DefaultMaxTokens = n
	}
}

// WithReasoningEffort sets the reasoning effort for reasoning models.
func WithReasoningEffort(effort string) Option {
	return func(opts *Options) {
		opts.ReasoningEffort = effort
	}
}
