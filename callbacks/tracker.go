package callbacks

import (
	"context"
	"sync"

	"github.com/ohtaman/planchat/pkg/llmutils"
	"github.com/ohtaman/planchat/tools"
)

// maxTrackedArgs bounds the recorded tool arguments so the reviewer prompt
// stays small.
const maxTrackedArgs = 128

// ToolUsage is a single recorded tool invocation.
type ToolUsage struct {
	Agent   string `json:"agent"`
	Tool    string `json:"tool"`
	Args    string `json:"args"`
	Success bool   `json:"success"`
}

// ToolTracker records the tool invocations made during a run, so they can be
// reported to the reviewer agent.
type ToolTracker struct {
	Noop

	mu    sync.Mutex
	usage []ToolUsage
}

func NewToolTracker() *ToolTracker {
	return &ToolTracker{}
}

// Reset clears the recorded usage before a new run.
func (t *ToolTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = nil
}

// Usage returns a copy of the recorded invocations.
func (t *ToolTracker) Usage() []ToolUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ToolUsage, len(t.usage))
	copy(out, t.usage)
	return out
}

// JSON returns the recorded invocations as a JSON array.
func (t *ToolTracker) JSON() string {
	return llmutils.ToJSON(t.Usage())
}

func (t *ToolTracker) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input string, output string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = append(t.usage, ToolUsage{
		Agent:   assistantName,
		Tool:    tool.Name(),
		Args:    llmutils.StringUpto(input, maxTrackedArgs),
		Success: true,
	})
}

func (t *ToolTracker) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = append(t.usage, ToolUsage{
		Agent:   assistantName,
		Tool:    tool.Name(),
		Args:    llmutils.StringUpto(input, maxTrackedArgs),
		Success: false,
	})
}
