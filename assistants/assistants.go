// Package assistants implements a chat agent over an LLM with tool calling.
package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/xlog"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/tools"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "assistants")

// IAssistant is the interface of a chat agent.
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used in the
	// prompt of other Assistants or LLMs. Should not exceed LLM model limit.
	Description() string
	// GetPromptInputVariables returns the declared input variables of the
	// system prompt.
	GetPromptInputVariables() []string
	// GetTools returns the tools available to the Assistant.
	GetTools() []tools.ITool

	// Call executes the assistant with the given input.
	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

// CallInput is the input for an assistant call.
type CallInput struct {
	// Input is the user message for this call. May be empty when the
	// conversation is carried entirely by Messages.
	Input string
	// PromptInputs are values for the system prompt template.
	PromptInputs map[string]any
	// Messages is prior conversation history to include after the system
	// prompt and before the input.
	Messages []llms.Message
	// Options are per call configuration overrides.
	Options []Option
}

// Callback receives assistant lifecycle events.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, assistant IAssistant, input string)
	OnAssistantEnd(ctx context.Context, assistant IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, assistant IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, assistant IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, assistant IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, assistant IAssistant, tool string)
}

// GetDescriptions returns a markdown list of assistant names and descriptions.
func GetDescriptions(list ...IAssistant) string {
	var ts strings.Builder
	for _, item := range list {
		ts.WriteString(fmt.Sprintf("- `%s`: %s\n", item.Name(), item.Description()))
	}
	return ts.String()
}

// MapAssistants maps assistants by name.
func MapAssistants(list ...IAssistant) map[string]IAssistant {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]IAssistant, len(list))
	for _, a := range list {
		m[a.Name()] = a
	}
	return m
}
