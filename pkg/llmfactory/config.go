package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"required,dive"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// AgentModels specifies the mapping of agents to models.
	// key is the agent name, value is the preferred model names.
	// Use `default: <model_name>` as the default model for agents.
	AgentModels map[string][]string `json:"agent_models" yaml:"agent_models"`
}

// ProviderConfig describes a single LLM provider.
type ProviderConfig struct {
	Name            string   `json:"name" yaml:"name" validate:"required"`
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	// APIType specifies the type of API to use: OPENAI|GOOGLEAI
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty" validate:"required"`
	// BaseURL overrides the provider endpoint, for Azure or proxies.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// OrgID specifies which organization's quota and billing should be used
	// when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	// ReasoningEffort sets the reasoning effort for OpenAI reasoning models.
	ReasoningEffort string `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`
	// ThinkingBudget sets the default thinking token budget for Gemini models.
	ThinkingBudget int32 `json:"thinking_budget,omitempty" yaml:"thinking_budget,omitempty"`
}

func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig loads the config from a YAML or JSON file,
// expanding environment variables.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	err = validator.New().Struct(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
