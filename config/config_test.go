package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ohtaman/planchat/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-key")
	t.Setenv("TEST_REDIS_PASSWORD", "redis-pass")

	file := filepath.Join(t.TempDir(), "planchat.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  addr: ":8080"
  examples_dir: examples
llm:
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
    mentor_agent:
      - gemini-2.5-flash
redis:
  addr: localhost:6379
  password: ${TEST_REDIS_PASSWORD}
  prefix: planchat
solver:
  package: github:ohtaman/remip-mcp
  port: 3333
agents:
  max_iterations: 25
  planner_thinking_budget: 4096
  max_tool_calls: 40
`), 0o644))

	cfg, err := config.Load(file)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "examples", cfg.Server.ExamplesDir)
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "secret-key", cfg.LLM.Providers[0].Token)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, "planchat", cfg.Redis.Prefix)
	assert.Equal(t, "github:ohtaman/remip-mcp", cfg.Solver.Package)
	assert.Equal(t, 3333, cfg.Solver.Port)
	assert.Equal(t, 25, cfg.Agents.MaxIterations)
	assert.Equal(t, int32(4096), cfg.Agents.PlannerThinkingBudget)
	assert.Equal(t, int32(0), cfg.Agents.MentorThinkingBudget)
	assert.Equal(t, 40, cfg.Agents.MaxToolCalls)
}

func Test_Load_ExternalSolver(t *testing.T) {
	t.Setenv("TEST_KEY", "k")

	file := filepath.Join(t.TempDir(), "planchat.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
llm:
  providers:
    - name: gemini
      api_type: GOOGLEAI
      token: ${TEST_KEY}
      default_model: gemini-2.5-flash
  default_provider: gemini
solver:
  url: http://solver.internal:9000/mcp/
`), 0o644))

	cfg, err := config.Load(file)
	require.NoError(t, err)
	assert.Equal(t, "http://solver.internal:9000/mcp/", cfg.Solver.URL)
}

func Test_Load_MissingLLM(t *testing.T) {
	file := filepath.Join(t.TempDir(), "planchat.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  addr: ":8080"
`), 0o644))

	_, err := config.Load(file)
	require.Error(t, err)
}
