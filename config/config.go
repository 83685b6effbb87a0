// Package config defines the service configuration.
package config

import (
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
	"github.com/ohtaman/planchat/mcp"
	"github.com/ohtaman/planchat/pkg/llmfactory"
	"github.com/ohtaman/planchat/server"
)

// Configuration is the top-level service configuration, loaded from a YAML or
// JSON file with environment variable expansion.
type Configuration struct {
	// Server configures the HTTP front end.
	Server server.Config `json:"server" yaml:"server"`
	// LLM configures the model providers.
	LLM llmfactory.Config `json:"llm" yaml:"llm" validate:"required"`
	// Redis configures the session store backend. When empty, sessions are
	// kept in memory.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	// Solver configures the optimization MCP server bootstrap.
	Solver mcp.LauncherConfig `json:"solver,omitempty" yaml:"solver,omitempty"`
	// Agents configures the refinement loop.
	Agents AgentsConfig `json:"agents,omitempty" yaml:"agents,omitempty"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// Password is the optional auth password.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// DB is the database index.
	DB int `json:"db,omitempty" yaml:"db,omitempty"`
	// Prefix is the key namespace prefix.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// AgentsConfig configures the planner/mentor loop.
type AgentsConfig struct {
	// MaxIterations bounds the refinement loop.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	// PlannerThinkingBudget is the reasoning token budget of the planner.
	PlannerThinkingBudget int32 `json:"planner_thinking_budget,omitempty" yaml:"planner_thinking_budget,omitempty"`
	// MentorThinkingBudget is the reasoning token budget of the mentor.
	MentorThinkingBudget int32 `json:"mentor_thinking_budget,omitempty" yaml:"mentor_thinking_budget,omitempty"`
	// MaxToolCalls limits the planner tool calls within a single run.
	MaxToolCalls int `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty"`
}

// Load loads the configuration from a file, expanding environment variables.
func Load(file string) (*Configuration, error) {
	cfg := new(Configuration)
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
