package mcphost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

// Options configure a Manager instance.
type Options struct {
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// DialTimeout bounds process spawn plus protocol handshake for one
	// StartServer call, so a misbehaving child cannot hang a start forever.
	// Defaults to 15 seconds.
	DialTimeout time.Duration
	// ShutdownTimeout bounds the graceful session close performed by
	// StopServer; once it elapses the connection is dropped regardless.
	// Defaults to 5 seconds.
	ShutdownTimeout time.Duration
	// SettleDelay is the pause after a fresh stdio spawn before the first
	// tools/list during document ingestion; a newly spawned server may not
	// have finished initializing synchronously with spawn return. Defaults
	// to 1 second; negative disables the delay.
	SettleDelay time.Duration
	// ClientName and ClientVersion are advertised to servers during the MCP
	// handshake. Default to "mcphost" / "1.0.0".
	ClientName    string
	ClientVersion string
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 15 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = time.Second
	}
	if opts.ClientName == "" {
		opts.ClientName = "mcphost"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	return opts
}

// Manager is the façade over the connection registry: it starts and stops
// servers, dispatches tool calls, and aggregates tool catalogs. Construct one
// per process and share it by reference; all methods are safe for concurrent
// use.
type Manager struct {
	opts     Options
	registry *registry

	// transportFor builds the protocol transport for a stdio config. A field
	// so tests can substitute in-memory transports.
	transportFor func(cfg *ServerConfig) (mcp.Transport, error)
}

// NewManager constructs a Manager. Pass nil options for defaults.
func NewManager(opts *Options) *Manager {
	return &Manager{
		opts:         opts.withDefaults(),
		registry:     newRegistry(),
		transportFor: stdioTransport,
	}
}

// StartServer validates cfg and establishes a connection for it, returning a
// human-readable status message. Starting a server whose name is already
// registered is a no-op success that reuses the existing connection; it never
// spawns a duplicate process. Failures leave the registry unchanged.
func (m *Manager) StartServer(ctx context.Context, cfg ServerConfig) (string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if m.registry.contains(cfg.Name) {
		return fmt.Sprintf("MCP server already connected: %s", cfg.Name), nil
	}
	switch cfg.Transport {
	case TransportStdio:
		if err := m.startStdio(ctx, cfg); err != nil {
			return "", err
		}
		return fmt.Sprintf("Started and connected to MCP server: %s", cfg.Name), nil
	case TransportHTTP:
		m.registry.insert(cfg.Name, &Connection{cfg: cfg, logger: m.opts.Logger})
		return fmt.Sprintf("HTTP server configured: %s", cfg.Name), nil
	case TransportWebSocket:
		m.registry.insert(cfg.Name, &Connection{cfg: cfg, logger: m.opts.Logger})
		return fmt.Sprintf("WebSocket server configured: %s", cfg.Name), nil
	default:
		return "", &ConfigError{Server: cfg.Name, Reason: fmt.Sprintf("unsupported transport %q", cfg.Transport)}
	}
}

func (m *Manager) startStdio(ctx context.Context, cfg ServerConfig) error {
	transport, err := m.transportFor(&cfg)
	if err != nil {
		return &SpawnError{Server: cfg.Name, Command: cfg.Command, Err: err}
	}
	client := mcp.NewClient(&mcp.Implementation{Name: m.opts.ClientName, Version: m.opts.ClientVersion}, nil)
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()
	session, err := client.Connect(dialCtx, transport, nil)
	if err != nil {
		return &HandshakeError{Server: cfg.Name, Err: err}
	}
	conn := &Connection{cfg: cfg, session: session, logger: m.opts.Logger}
	if !m.registry.insertIfAbsent(cfg.Name, conn) {
		// Lost a concurrent start race; the existing connection wins.
		conn.Shutdown(m.opts.ShutdownTimeout)
		return nil
	}
	m.opts.Logger.Info("connected to MCP server", "server", cfg.Name, "command", cfg.Command)
	return nil
}

func stdioTransport(cfg *ServerConfig) (mcp.Transport, error) {
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, err
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}

// StopServer removes the named connection from the registry and shuts it down
// best-effort. Stopping an unknown or already-stopped server succeeds without
// error. The only way StopServer fails is caller context cancellation.
func (m *Manager) StopServer(ctx context.Context, name string) error {
	conn := m.registry.remove(name)
	if conn == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		conn.Shutdown(m.opts.ShutdownTimeout)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	m.opts.Logger.Info("stopped MCP server", "server", name)
	return nil
}

// CallTool invokes a tool on the named server. It never returns an error: the
// outcome, including "server not found" and remote failures, is always
// communicated through the ToolCallResult envelope so callers render every
// failure cause uniformly.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args any) ToolCallResult {
	conn, ok := m.registry.get(server)
	if !ok {
		return callFailure("Server '%s' not found", server)
	}
	payload, err := conn.CallTool(ctx, tool, args)
	if err != nil {
		m.opts.Logger.Warn("tool call failed", "server", server, "tool", tool, "error", err)
		return callFailure("%s", remoteMessage(err))
	}
	return callSuccess(payload)
}

// remoteMessage strips the local wrapping so the envelope carries the
// remote's own message text.
func remoteMessage(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Err != nil {
		return remote.Err.Error()
	}
	return err.Error()
}

// ListTools returns the named server's tool catalog with normalized schemas.
// Unlike CallTool, an unknown server is a *NotFoundError: listing is a
// precondition check, not a terminal user action.
func (m *Manager) ListTools(ctx context.Context, server string) ([]Tool, error) {
	conn, ok := m.registry.get(server)
	if !ok {
		return nil, &NotFoundError{Server: server}
	}
	return conn.ListTools(ctx)
}

// ListAllTools collects tools from every registered server, prefixing each
// tool name with "<server>__" to keep the aggregate collision-free. A server
// that fails to list is logged and skipped; the result is the union of what
// could be obtained.
func (m *Manager) ListAllTools(ctx context.Context) []Tool {
	all := []Tool{}
	for _, name := range m.registry.names() {
		tools, err := m.ListTools(ctx, name)
		if err != nil {
			m.opts.Logger.Warn("skipping server in aggregate listing", "server", name, "error", err)
			continue
		}
		for _, tool := range tools {
			tool.Name = namespacedToolName(name, tool.Name)
			all = append(all, tool)
		}
	}
	return all
}

// GetValidatedTools returns the server's tools filtered down to those whose
// schemas pass ValidateToolSchema; invalid tools are dropped, not fatal.
func (m *Manager) GetValidatedTools(ctx context.Context, server string) ([]Tool, error) {
	tools, err := m.ListTools(ctx, server)
	if err != nil {
		return nil, err
	}
	return m.filterValidated(tools), nil
}

func (m *Manager) filterValidated(tools []Tool) []Tool {
	valid := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if err := ValidateToolSchema(&tool); err != nil {
			m.opts.Logger.Warn("dropping tool with invalid schema", "tool", tool.Name, "error", err)
			continue
		}
		valid = append(valid, tool)
	}
	return valid
}

// ConnectedServers returns the names of all registered servers, sorted.
func (m *Manager) ConnectedServers() []string {
	return m.registry.names()
}

// IsServerAlive reports whether name has a registered connection. No liveness
// probe is performed against the underlying process; a crashed child stays
// "alive" until it is stopped, and surfaces as a RemoteError on its next use.
func (m *Manager) IsServerAlive(name string) bool {
	return m.registry.contains(name)
}

// CheckAllServers reports the registration status of every known server.
func (m *Manager) CheckAllServers() map[string]bool {
	status := make(map[string]bool)
	for _, name := range m.registry.names() {
		status[name] = true
	}
	return status
}

// ListToolsFromConfig ingests a whole multi-server configuration document
// (see ParseServersDocument for the accepted shapes): every server is started
// if not already alive, given a settle delay after a fresh spawn, and asked
// for its tools, which are aggregated under "<server>__<tool>" names. A
// server that fails to start or list is skipped; the call returns the union
// of what it could obtain. Only a malformed document fails the whole call,
// and it does so before any server is touched.
func (m *Manager) ListToolsFromConfig(ctx context.Context, document []byte) ([]Tool, error) {
	configs, err := ParseServersDocument(document)
	if err != nil {
		return nil, err
	}
	all := []Tool{}
	for _, cfg := range configs {
		if !m.IsServerAlive(cfg.Name) {
			if _, err := m.StartServer(ctx, cfg); err != nil {
				m.opts.Logger.Warn("skipping server that failed to start", "server", cfg.Name, "error", err)
				continue
			}
			if cfg.withDefaults().Transport == TransportStdio {
				if err := m.settle(ctx); err != nil {
					return all, err
				}
			}
		}
		tools, err := m.ListTools(ctx, cfg.Name)
		if err != nil {
			m.opts.Logger.Warn("skipping server that failed to list tools", "server", cfg.Name, "error", err)
			continue
		}
		for _, tool := range tools {
			tool.Name = namespacedToolName(cfg.Name, tool.Name)
			all = append(all, tool)
		}
	}
	return all, nil
}

// settle waits out the post-spawn grace period so a fresh child can finish
// initializing before the first tools/list.
func (m *Manager) settle(ctx context.Context) error {
	if m.opts.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.opts.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close stops every registered server, shutting connections down
// concurrently. Per-server shutdown remains best-effort.
func (m *Manager) Close(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range m.registry.names() {
		g.Go(func() error {
			return m.StopServer(ctx, name)
		})
	}
	return g.Wait()
}
