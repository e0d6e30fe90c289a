package mcphost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Connection is the live binding between a server name and its transport.
// Connections are created by Manager.StartServer and owned exclusively by the
// manager's registry; callers reach them through Manager methods only.
//
// For http/websocket transports the session is nil: the endpoint is recorded
// as already reachable but never dialed or probed, so protocol operations on
// such a connection report a RemoteError.
type Connection struct {
	cfg     ServerConfig
	session *mcp.ClientSession
	logger  *slog.Logger
}

func (c *Connection) Name() string { return c.cfg.Name }

func (c *Connection) TransportKind() TransportKind { return c.cfg.Transport }

// CallTool sends one tools/call round trip and returns the remote's result as
// arbitrary JSON. Arguments that do not decode to a JSON object are coerced
// to an empty object rather than rejected.
func (c *Connection) CallTool(ctx context.Context, tool string, args any) (any, error) {
	if c.session == nil {
		return nil, c.notConnected("tools/call")
	}
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: coerceArguments(args)})
	if err != nil {
		return nil, &RemoteError{Server: c.cfg.Name, Op: "tools/call", Err: err}
	}
	if res.IsError {
		return nil, &RemoteError{Server: c.cfg.Name, Op: "tools/call", Err: errors.New(contentText(res.Content))}
	}
	payload, err := resultPayload(res)
	if err != nil {
		return nil, &RemoteError{Server: c.cfg.Name, Op: "tools/call", Err: err}
	}
	return payload, nil
}

// ListTools requests the server's full tool catalog in one round trip and
// normalizes every input schema to the canonical shape.
func (c *Connection) ListTools(ctx context.Context) ([]Tool, error) {
	if c.session == nil {
		return nil, c.notConnected("tools/list")
	}
	res, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, &RemoteError{Server: c.cfg.Name, Op: "tools/list", Err: err}
	}
	tools := make([]Tool, 0, len(res.Tools))
	for _, tool := range res.Tools {
		if tool == nil {
			continue
		}
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			c.logger.Warn("could not encode input schema, using default",
				"server", c.cfg.Name, "tool", tool.Name, "error", err)
			raw = nil
		}
		tools = append(tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: NormalizeInputSchema(raw),
		})
	}
	return tools, nil
}

// Shutdown requests graceful termination of the remote session. It never
// blocks past timeout and never reports failure to the caller; once Shutdown
// returns, the connection is considered closed regardless of what the child
// process did.
func (c *Connection) Shutdown(timeout time.Duration) {
	if c.session == nil {
		return
	}
	done := make(chan error, 1)
	go func() { done <- c.session.Close() }()
	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("session close reported an error", "server", c.cfg.Name, "error", err)
		}
	case <-time.After(timeout):
		c.logger.Warn("session did not close in time, dropping connection",
			"server", c.cfg.Name, "timeout", timeout)
	}
}

func (c *Connection) notConnected(op string) error {
	return &RemoteError{
		Server: c.cfg.Name,
		Op:     op,
		Err:    fmt.Errorf("%s transport is configured but never connected", c.cfg.Transport),
	}
}

func coerceArguments(args any) map[string]any {
	switch v := args.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	default:
		raw, err := json.Marshal(args)
		if err != nil {
			return map[string]any{}
		}
		return decodeObject(raw)
	}
}

func decodeObject(raw []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

// resultPayload re-encodes the SDK result so callers receive plain JSON data
// rather than SDK types.
func resultPayload(res *mcp.CallToolResult) (any, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		if text, ok := item.(*mcp.TextContent); ok && text.Text != "" {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return "tool call failed"
	}
	return strings.Join(parts, "\n")
}
