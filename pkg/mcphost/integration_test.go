package mcphost

import (
	"context"
	"os/exec"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestStdioTransportBuildsCommand(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available on this system")
	}

	cfg := ServerConfig{
		Name:    "everything",
		Command: "cat",
		Args:    []string{"-u"},
		Env:     map[string]string{"MCP_SERVER_MODE": "stdio"},
	}
	transport, err := stdioTransport(&cfg)
	if err != nil {
		t.Fatalf("stdioTransport: %v", err)
	}
	cmdTransport, ok := transport.(*mcp.CommandTransport)
	if !ok {
		t.Fatalf("transport is %T, want *mcp.CommandTransport", transport)
	}
	wantArgs := append([]string{cfg.Command}, cfg.Args...)
	if !reflect.DeepEqual(cmdTransport.Command.Args, wantArgs) {
		t.Fatalf("command args = %v, want %v", cmdTransport.Command.Args, wantArgs)
	}
	if !envContains(cmdTransport.Command.Env, "MCP_SERVER_MODE", "stdio") {
		t.Fatalf("command env missing MCP_SERVER_MODE=stdio: %v", cmdTransport.Command.Env)
	}
}

func envContains(env []string, key, value string) bool {
	for _, entry := range env {
		if entry == key+"="+value {
			return true
		}
	}
	return false
}

func TestManagerAgainstRealServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-server integration test in short mode")
	}
	if _, err := exec.LookPath("npx"); err != nil {
		t.Skip("npx not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	m := NewManager(&Options{DialTimeout: 60 * time.Second})
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	msg, err := m.StartServer(ctx, ServerConfig{
		Name:    "everything",
		Command: "npx",
		Args:    []string{"@modelcontextprotocol/server-everything"},
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if msg != "Started and connected to MCP server: everything" {
		t.Fatalf("StartServer message = %q", msg)
	}

	tools := m.ListAllTools(ctx)
	if len(tools) == 0 {
		t.Fatalf("server-everything exposed no tools")
	}
	for _, tool := range tools {
		if !strings.HasPrefix(tool.Name, "everything__") {
			t.Fatalf("aggregate tool %q is not namespaced", tool.Name)
		}
	}

	res := m.CallTool(ctx, "everything", "echo", map[string]any{"message": "ping"})
	if !res.Success {
		t.Fatalf("echo call failed: %s", res.Error)
	}

	if err := m.StopServer(ctx, "everything"); err != nil {
		t.Fatalf("StopServer: %v", err)
	}
	if m.IsServerAlive("everything") {
		t.Fatalf("server still alive after stop")
	}
}
