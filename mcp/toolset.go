package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ohtaman/planchat/pkg/llmutils"
	"github.com/ohtaman/planchat/tools"
)

// callTimeout bounds a single tool invocation. Solver runs that exceed it are
// reported back to the agent as an error instead of stalling the loop.
const callTimeout = 30 * time.Second

// caller invokes a named tool on an MCP server.
type caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error)
}

// Toolset exposes the tools of an MCP server as tools.ITool.
type Toolset struct {
	list []tools.ITool
}

// NewToolset fetches the tool list from the session and wraps each tool.
func NewToolset(ctx context.Context, session *Session) (*Toolset, error) {
	defs, err := session.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	ts := &Toolset{}
	for _, def := range defs {
		ts.list = append(ts.list, &remoteTool{
			session:     session,
			name:        def.Name,
			description: def.Description,
			params:      def.InputSchema,
		})
	}
	return ts, nil
}

// Tools returns the wrapped tools.
func (ts *Toolset) Tools() []tools.ITool {
	return ts.list
}

// remoteTool proxies a single MCP server tool.
type remoteTool struct {
	session     caller
	name        string
	description string
	params      any
}

var _ tools.ITool = (*remoteTool)(nil)

func (t *remoteTool) Name() string {
	return t.name
}

func (t *remoteTool) Description() string {
	return t.description
}

func (t *remoteTool) Parameters() any {
	return t.params
}

func (t *remoteTool) Call(ctx context.Context, input string) (string, error) {
	var args map[string]any
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &args); err != nil {
			return "", errors.WithMessagef(err, "failed to unmarshal arguments for tool %s", t.name)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := t.session.CallTool(ctx, t.name, args)
	if err != nil {
		return "", err
	}

	out := flattenContent(res)
	if res.IsError {
		return "", errors.Newf("tool %s failed: %s", t.name, out)
	}
	return out, nil
}

// flattenContent joins the text parts of a tool result. Structured content is
// used when no text parts are present.
func flattenContent(res *mcpsdk.CallToolResult) string {
	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(tc.Text)
		}
	}
	if sb.Len() == 0 && res.StructuredContent != nil {
		return llmutils.ToJSON(res.StructuredContent)
	}
	return sb.String()
}
