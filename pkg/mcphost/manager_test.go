package mcphost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mathArgs struct {
	A int `json:"a,omitempty"`
	B int `json:"b,omitempty"`
}

type mathResult struct {
	Sum int `json:"sum"`
}

// newInMemoryServer runs an MCP server over an in-memory transport and
// returns the client end. The server exposes an "add" tool that sums two
// integers and a "boom" tool that always fails.
func newInMemoryServer(t *testing.T) mcp.Transport {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "0.1.0"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "add", Description: "adds two integers"},
		func(ctx context.Context, req *mcp.CallToolRequest, args mathArgs) (*mcp.CallToolResult, mathResult, error) {
			return nil, mathResult{Sum: args.A + args.B}, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "boom", Description: "always fails"},
		func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
			return nil, nil, errors.New("boom exploded")
		})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	session, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return clientTransport
}

// newTestManager builds a Manager whose transport seam serves the given
// per-server transports and counts how often it is asked to dial.
func newTestManager(t *testing.T, transports map[string]mcp.Transport) (*Manager, *atomic.Int32) {
	t.Helper()

	var dials atomic.Int32
	m := NewManager(&Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DialTimeout: 5 * time.Second,
		SettleDelay: -1,
	})
	m.transportFor = func(cfg *ServerConfig) (mcp.Transport, error) {
		dials.Add(1)
		transport, ok := transports[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("no such executable: %s", cfg.Command)
		}
		return transport, nil
	}
	return m, &dials
}

func startTestServer(t *testing.T, m *Manager, name string) {
	t.Helper()
	msg, err := m.StartServer(context.Background(), ServerConfig{Name: name, Command: "cat"})
	if err != nil {
		t.Fatalf("StartServer(%s): %v", name, err)
	}
	want := fmt.Sprintf("Started and connected to MCP server: %s", name)
	if msg != want {
		t.Fatalf("StartServer message = %q, want %q", msg, want)
	}
}

func TestStartServerIdempotent(t *testing.T) {
	t.Parallel()

	m, dials := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	msg, err := m.StartServer(context.Background(), ServerConfig{Name: "alpha", Command: "cat"})
	if err != nil {
		t.Fatalf("second StartServer: %v", err)
	}
	if msg != "MCP server already connected: alpha" {
		t.Fatalf("second StartServer message = %q", msg)
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("dial count = %d, want 1", got)
	}
	if !m.IsServerAlive("alpha") {
		t.Fatalf("IsServerAlive(alpha) = false")
	}
}

func TestStartServerRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	m, dials := newTestManager(t, nil)
	_, err := m.StartServer(context.Background(), ServerConfig{Name: "alpha"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("StartServer error = %v, want *ConfigError", err)
	}
	if got := dials.Load(); got != 0 {
		t.Fatalf("invalid config reached the transport layer (%d dials)", got)
	}
}

func TestStartServerSpawnFailure(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, nil)
	_, err := m.StartServer(context.Background(), ServerConfig{Name: "ghost", Command: "no-such-binary"})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("StartServer error = %v, want *SpawnError", err)
	}
	if m.IsServerAlive("ghost") {
		t.Fatalf("failed start left a registry entry behind")
	}
}

func TestStartServerHandshakeFailure(t *testing.T) {
	t.Parallel()

	// A transport with no server behind it: the handshake never completes.
	clientTransport, _ := mcp.NewInMemoryTransports()
	m, _ := newTestManager(t, map[string]mcp.Transport{"mute": clientTransport})
	m.opts.DialTimeout = 200 * time.Millisecond

	_, err := m.StartServer(context.Background(), ServerConfig{Name: "mute", Command: "cat"})
	var hsErr *HandshakeError
	if !errors.As(err, &hsErr) {
		t.Fatalf("StartServer error = %v, want *HandshakeError", err)
	}
	if m.IsServerAlive("mute") {
		t.Fatalf("failed handshake left a registry entry behind")
	}
}

func TestStopServerIdempotent(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	if err := m.StopServer(context.Background(), "alpha"); err != nil {
		t.Fatalf("StopServer: %v", err)
	}
	if m.IsServerAlive("alpha") {
		t.Fatalf("server still alive after StopServer")
	}
	if err := m.StopServer(context.Background(), "alpha"); err != nil {
		t.Fatalf("second StopServer: %v", err)
	}
	if err := m.StopServer(context.Background(), "never-started"); err != nil {
		t.Fatalf("StopServer for unknown server: %v", err)
	}
}

func TestCallToolUnknownServer(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, nil)
	res := m.CallTool(context.Background(), "ghost", "add", nil)
	if res.Success {
		t.Fatalf("CallTool on unknown server reported success")
	}
	if res.Error != "Server 'ghost' not found" {
		t.Fatalf("CallTool error = %q", res.Error)
	}
}

func TestCallToolSuccess(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	res := m.CallTool(context.Background(), "alpha", "add", map[string]any{"a": 3, "b": 5})
	if !res.Success {
		t.Fatalf("CallTool failed: %s", res.Error)
	}
	payload, ok := res.Result.(map[string]any)
	if !ok {
		t.Fatalf("result payload is %T, want object", res.Result)
	}
	structured, ok := payload["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("missing structuredContent in %v", payload)
	}
	if sum, _ := structured["sum"].(float64); sum != 8 {
		t.Fatalf("sum = %v, want 8", structured["sum"])
	}
}

func TestCallToolCoercesNonObjectArguments(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	// A string is not a JSON object; it is coerced to {} and the tool runs
	// with zero values.
	res := m.CallTool(context.Background(), "alpha", "add", "not an object")
	if !res.Success {
		t.Fatalf("CallTool with coerced arguments failed: %s", res.Error)
	}
}

func TestCallToolRemoteFailure(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	res := m.CallTool(context.Background(), "alpha", "boom", nil)
	if res.Success {
		t.Fatalf("failing tool reported success")
	}
	if !strings.Contains(res.Error, "boom") {
		t.Fatalf("envelope error %q does not carry the remote message", res.Error)
	}
}

func TestListToolsUnknownServer(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, nil)
	_, err := m.ListTools(context.Background(), "ghost")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("ListTools error = %v, want *NotFoundError", err)
	}
}

func TestListToolsNormalizesSchemas(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	tools, err := m.ListTools(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	add, ok := byName["add"]
	if !ok {
		t.Fatalf("add tool missing from %v", tools)
	}
	if add.InputSchema.Type != "object" {
		t.Fatalf("add schema type = %q, want object", add.InputSchema.Type)
	}
	if _, ok := byName["boom"]; !ok {
		t.Fatalf("boom tool missing from %v", tools)
	}
}

func TestGetValidatedToolsKeepsWellFormedSchemas(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	startTestServer(t, m, "alpha")

	tools, err := m.GetValidatedTools(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("GetValidatedTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("validated tool count = %d, want 2", len(tools))
	}
}

func TestListAllToolsPrefixesAndSkipsFailures(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{
		"alpha": newInMemoryServer(t),
		"beta":  newInMemoryServer(t),
	})
	startTestServer(t, m, "alpha")
	startTestServer(t, m, "beta")

	// Kill beta's session out from under the manager; the aggregate listing
	// must still return alpha's tools.
	conn, ok := m.registry.get("beta")
	if !ok {
		t.Fatalf("beta not registered")
	}
	if err := conn.session.Close(); err != nil {
		t.Fatalf("closing beta session: %v", err)
	}

	tools := m.ListAllTools(context.Background())
	if tools == nil {
		t.Fatalf("ListAllTools returned nil")
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	if !reflect.DeepEqual(names, []string{"alpha__add", "alpha__boom"}) {
		t.Fatalf("aggregate tool names = %v", names)
	}
}

func TestListToolsFromConfigMappingDocument(t *testing.T) {
	t.Parallel()

	m, dials := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	document := []byte(`{"mcpServers": {"alpha": {"command": "cat"}}}`)

	tools, err := m.ListToolsFromConfig(context.Background(), document)
	if err != nil {
		t.Fatalf("ListToolsFromConfig: %v", err)
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	if !reflect.DeepEqual(names, []string{"alpha__add", "alpha__boom"}) {
		t.Fatalf("tool names = %v", names)
	}

	// A second ingestion of the same document reuses the live connection.
	if _, err := m.ListToolsFromConfig(context.Background(), document); err != nil {
		t.Fatalf("second ListToolsFromConfig: %v", err)
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("dial count = %d, want 1", got)
	}
}

func TestListToolsFromConfigSkipsFailedServers(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{"alpha": newInMemoryServer(t)})
	document := []byte(`{"mcpServers": {"alpha": {"command": "cat"}, "broken": {"command": "nope"}}}`)

	tools, err := m.ListToolsFromConfig(context.Background(), document)
	if err != nil {
		t.Fatalf("ListToolsFromConfig: %v", err)
	}
	for _, tool := range tools {
		if strings.HasPrefix(tool.Name, "broken__") {
			t.Fatalf("tools from failed server leaked into %v", tools)
		}
	}
	if len(tools) != 2 {
		t.Fatalf("tool count = %d, want 2", len(tools))
	}
}

func TestListToolsFromConfigRejectsMalformedDocument(t *testing.T) {
	t.Parallel()

	m, dials := newTestManager(t, nil)
	_, err := m.ListToolsFromConfig(context.Background(), []byte(`{"wat": 1}`))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("ListToolsFromConfig error = %v, want *ConfigError", err)
	}
	if got := dials.Load(); got != 0 {
		t.Fatalf("malformed document touched the transport layer (%d dials)", got)
	}
}

func TestNetworkTransportRecordedNotProbed(t *testing.T) {
	t.Parallel()

	m, dials := newTestManager(t, nil)
	msg, err := m.StartServer(context.Background(), ServerConfig{
		Name:      "web",
		Transport: TransportHTTP,
		URL:       "http://localhost:9999/mcp",
	})
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if msg != "HTTP server configured: web" {
		t.Fatalf("StartServer message = %q", msg)
	}
	if got := dials.Load(); got != 0 {
		t.Fatalf("network endpoint was dialed (%d dials)", got)
	}
	if !m.IsServerAlive("web") {
		t.Fatalf("configured network server not registered")
	}

	res := m.CallTool(context.Background(), "web", "add", nil)
	if res.Success {
		t.Fatalf("CallTool on a never-connected endpoint reported success")
	}
	if !strings.Contains(res.Error, "never connected") {
		t.Fatalf("envelope error = %q", res.Error)
	}

	_, err = m.ListTools(context.Background(), "web")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("ListTools error = %v, want *RemoteError", err)
	}
}

func TestConnectedServersAndStatus(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{
		"zeta":  newInMemoryServer(t),
		"alpha": newInMemoryServer(t),
	})
	startTestServer(t, m, "zeta")
	startTestServer(t, m, "alpha")

	if got := m.ConnectedServers(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Fatalf("ConnectedServers = %v, want sorted names", got)
	}
	status := m.CheckAllServers()
	if !status["alpha"] || !status["zeta"] {
		t.Fatalf("CheckAllServers = %v", status)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, map[string]mcp.Transport{
		"alpha": newInMemoryServer(t),
		"beta":  newInMemoryServer(t),
	})
	startTestServer(t, m, "alpha")
	startTestServer(t, m, "beta")

	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := m.ConnectedServers(); len(got) != 0 {
		t.Fatalf("servers still registered after Close: %v", got)
	}
}
