package assistants_test

import (
	"context"
	"sync"

	"github.com/ohtaman/planchat/assistants"
	"github.com/ohtaman/planchat/pkg/llms"
	"github.com/ohtaman/planchat/tools"
)

// recordingCallback records the order of lifecycle events.
type recordingCallback struct {
	mu  sync.Mutex
	log []string
}

var _ assistants.Callback = (*recordingCallback)(nil)

func (c *recordingCallback) record(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, event)
}

func (c *recordingCallback) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.log))
	copy(out, c.log)
	return out
}

func (c *recordingCallback) OnAssistantStart(context.Context, assistants.IAssistant, string) {
	c.record("start")
}

func (c *recordingCallback) OnAssistantEnd(context.Context, assistants.IAssistant, string, *llms.ContentResponse, []llms.Message) {
	c.record("end")
}

func (c *recordingCallback) OnAssistantError(context.Context, assistants.IAssistant, string, error, []llms.Message) {
	c.record("error")
}

func (c *recordingCallback) OnAssistantLLMCallStart(context.Context, assistants.IAssistant, llms.Model, []llms.Message) {
	c.record("llm_start")
}

func (c *recordingCallback) OnAssistantLLMCallEnd(context.Context, assistants.IAssistant, llms.Model, *llms.ContentResponse) {
	c.record("llm_end")
}

func (c *recordingCallback) OnToolNotFound(context.Context, assistants.IAssistant, string) {
	c.record("tool_not_found")
}

func (c *recordingCallback) OnToolStart(context.Context, tools.ITool, string, string) {
	c.record("tool_start")
}

func (c *recordingCallback) OnToolEnd(context.Context, tools.ITool, string, string, string) {
	c.record("tool_end")
}

func (c *recordingCallback) OnToolError(context.Context, tools.ITool, string, string, error) {
	c.record("tool_error")
}
