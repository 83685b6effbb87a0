package llmfactory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ohtaman/planchat/pkg/llmfactory"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	name     string
	provider llms.ProviderType
}

func (m *fakeModel) GetName() string                    { return m.name }
func (m *fakeModel) GetProviderType() llms.ProviderType { return m.provider }
func (m *fakeModel) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func withFakeLLM(t *testing.T) {
	t.Helper()
	orig := llmfactory.NewLLM
	llmfactory.NewLLM = func(cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		return &fakeModel{name: cfg.FindModel(preferredModels...)}, nil
	}
	t.Cleanup(func() { llmfactory.NewLLM = orig })
}

func Test_FindModel(t *testing.T) {
	cfg := &llmfactory.ProviderConfig{
		DefaultModel:    "gemini-2.5-flash",
		AvailableModels: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
	}
	assert.Equal(t, "gemini-2.5-pro", cfg.FindModel("gpt-4.1", "gemini-2.5-pro"))
	assert.Equal(t, "gemini-2.5-flash", cfg.FindModel("gpt-4.1"))
	assert.Equal(t, "gemini-2.5-flash", cfg.FindModel())
}

func Test_LoadConfig(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-key")

	file := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
providers:
  - name: gemini
    api_type: GOOGLEAI
    token: ${TEST_GEMINI_KEY}
    default_model: gemini-2.5-flash
    available_models:
      - gemini-2.5-flash
      - gemini-2.5-pro
default_provider: gemini
agent_models:
  planner_agent:
    - gemini-2.5-pro
`), 0o644))

	cfg, err := llmfactory.LoadConfig(file)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "secret-key", cfg.Providers[0].Token)
	assert.Equal(t, "gemini", cfg.DefaultProvider)
	assert.Equal(t, []string{"gemini-2.5-pro"}, cfg.AgentModels["planner_agent"])
}

func Test_LoadConfig_Invalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
providers:
  - name: gemini
`), 0o644))

	_, err := llmfactory.LoadConfig(file)
	require.Error(t, err)
}

func Test_Factory_DefaultModel(t *testing.T) {
	withFakeLLM(t)

	f := llmfactory.New(&llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{Name: "openai", APIType: "OPENAI", DefaultModel: "gpt-4.1"},
			{Name: "gemini", APIType: "GOOGLEAI", DefaultModel: "gemini-2.5-flash"},
		},
		DefaultProvider: "gemini",
	})

	model, err := f.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", model.GetName())

	empty := llmfactory.New(&llmfactory.Config{})
	_, err = empty.DefaultModel()
	require.Error(t, err)
}

func Test_Factory_ModelByType(t *testing.T) {
	withFakeLLM(t)

	f := llmfactory.New(&llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{Name: "gemini", APIType: "GOOGLEAI", DefaultModel: "gemini-2.5-flash"},
		},
	})

	model, err := f.ModelByType("googleai")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", model.GetName())

	// cached on second lookup
	again, err := f.ModelByType("googleai")
	require.NoError(t, err)
	assert.Same(t, model, again)

	_, err = f.ModelByType("OPENAI")
	require.Error(t, err)
}

func Test_Factory_ModelByName(t *testing.T) {
	withFakeLLM(t)

	f := llmfactory.New(&llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{
				Name:            "gemini",
				APIType:         "GOOGLEAI",
				DefaultModel:    "gemini-2.5-flash",
				AvailableModels: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
			},
		},
	})

	model, err := f.ModelByName("gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", model.GetName())

	// unknown names fall back to the default provider model
	model, err = f.ModelByName("no-such-model")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", model.GetName())
}

func Test_Factory_AgentModel(t *testing.T) {
	withFakeLLM(t)

	f := llmfactory.New(&llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{
				Name:            "gemini",
				APIType:         "GOOGLEAI",
				DefaultModel:    "gemini-2.5-flash",
				AvailableModels: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
			},
		},
		AgentModels: map[string][]string{
			"planner_agent": {"gemini-2.5-pro"},
			"default":       {"gemini-2.5-flash"},
		},
	})

	model, err := f.AgentModel("planner_agent")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", model.GetName())

	// unmapped agents use the default mapping
	model, err = f.AgentModel("mentor_agent")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", model.GetName())
}

func Test_CreateLLM_UnsupportedType(t *testing.T) {
	_, err := llmfactory.CreateLLM(&llmfactory.ProviderConfig{APIType: "BEDROCK"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider type")
}
