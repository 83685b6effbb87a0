// Package mcp connects to an MCP server over streamable HTTP and exposes its
// tools to assistants.
package mcp

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "mcp")

const (
	clientName = "planchat"

	// DefaultConnectTimeout bounds the initialize handshake.
	DefaultConnectTimeout = 30 * time.Second
)

// ClientVersion is reported to the server during the initialize handshake.
var ClientVersion = "dev"

// Session is an initialized MCP client session.
type Session struct {
	session *mcpsdk.ClientSession
}

// Connect dials the MCP server at the given streamable HTTP endpoint and
// completes the initialize handshake.
func Connect(ctx context.Context, endpoint string) (*Session, error) {
	if endpoint == "" {
		return nil, errors.New("mcp endpoint is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    clientName,
		Version: ClientVersion,
	}, nil)

	transport := &mcpsdk.StreamableClientTransport{Endpoint: endpoint}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to connect MCP server at %s", endpoint)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "connected",
		"endpoint", endpoint,
		"session_id", session.ID(),
	)

	return &Session{session: session}, nil
}

// ListTools returns the tools the server offers.
func (s *Session) ListTools(ctx context.Context) ([]*mcpsdk.Tool, error) {
	var list []*mcpsdk.Tool
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, errors.WithMessage(err, "failed to list MCP tools")
		}
		if tool == nil {
			continue
		}
		list = append(list, tool)
	}
	return list, nil
}

// CallTool invokes a tool on the server.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to call MCP tool %s", name)
	}
	if res == nil {
		return nil, errors.Newf("MCP tool %s returned nil result", name)
	}
	return res, nil
}

// Close terminates the session.
func (s *Session) Close() error {
	return s.session.Close()
}
