// Package hostapi exposes an mcphost.Manager over a small JSON HTTP API so
// local frontends can start, stop, inspect, and call managed MCP servers.
package hostapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/agentdesk/mcp-server-host/pkg/mcphost"
)

// Host is the subset of mcphost.Manager the API serves. It is an interface so
// tests can substitute a stub.
type Host interface {
	StartServer(ctx context.Context, cfg mcphost.ServerConfig) (string, error)
	StopServer(ctx context.Context, name string) error
	CallTool(ctx context.Context, server, tool string, args any) mcphost.ToolCallResult
	ListTools(ctx context.Context, server string) ([]mcphost.Tool, error)
	ListAllTools(ctx context.Context) []mcphost.Tool
	ListToolsFromConfig(ctx context.Context, document []byte) ([]mcphost.Tool, error)
	IsServerAlive(name string) bool
	CheckAllServers() map[string]bool
}

var _ Host = (*mcphost.Manager)(nil)

// Options configure a Server instance.
type Options struct {
	// Addr controls the listen address used by ListenAndServe. Defaults to ":8700".
	Addr string
	// AllowedOrigins is passed to the CORS layer. Defaults to allowing every
	// origin, which suits the local-frontend deployments this API is built for.
	AllowedOrigins []string
	// Logger receives structured diagnostics.
	Logger *slog.Logger
	// ShutdownTimeout bounds the graceful drain when the serve context is
	// cancelled. Defaults to 10 seconds.
	ShutdownTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Addr == "" {
		opts.Addr = ":8700"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return opts
}

// Server serves the JSON API for one Host.
type Server struct {
	host    Host
	opts    Options
	handler http.Handler

	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// NewServer builds a Server fronting the given host.
func NewServer(host Host, opts *Options) (*Server, error) {
	if host == nil {
		return nil, fmt.Errorf("hostapi: host is required")
	}
	s := &Server{host: host, opts: opts.withDefaults()}
	s.handler = s.buildHandler()
	return s, nil
}

// Handler exposes the HTTP handler serving the API routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe runs an HTTP server until the provided context is cancelled
// or the server stops.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServerMu.Lock()
	if s.httpServer != nil {
		srv := s.httpServer
		s.httpServerMu.Unlock()
		return fmt.Errorf("hostapi: server already running on %s", srv.Addr)
	}
	srv := &http.Server{Addr: s.opts.Addr, Handler: s.handler}
	s.httpServer = srv
	s.httpServerMu.Unlock()
	defer func() {
		s.httpServerMu.Lock()
		if s.httpServer == srv {
			s.httpServer = nil
		}
		s.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpServerMu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/servers", s.handleListServers)
	mux.HandleFunc("POST /v1/servers", s.handleStartServer)
	mux.HandleFunc("GET /v1/servers/{name}", s.handleServerStatus)
	mux.HandleFunc("DELETE /v1/servers/{name}", s.handleStopServer)
	mux.HandleFunc("GET /v1/servers/{name}/tools", s.handleServerTools)
	mux.HandleFunc("GET /v1/tools", s.handleAllTools)
	mux.HandleFunc("POST /v1/tools/call", s.handleCallTool)
	mux.HandleFunc("POST /v1/config/tools", s.handleConfigTools)

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}

type serverStatus struct {
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
}

type startServerResponse struct {
	Status string `json:"status"`
}

type callToolRequest struct {
	Server    string          `json:"server"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	status := s.host.CheckAllServers()
	servers := make([]serverStatus, 0, len(status))
	for _, name := range sortedKeys(status) {
		servers = append(servers, serverStatus{Name: name, Alive: status[name]})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"servers": servers})
}

func (s *Server) handleStartServer(w http.ResponseWriter, r *http.Request) {
	var cfg mcphost.ServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, &mcphost.ConfigError{Reason: "request body is not a valid server config"})
		return
	}
	msg, err := s.host.StartServer(r.Context(), cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, startServerResponse{Status: msg})
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.host.IsServerAlive(name) {
		s.writeError(w, &mcphost.NotFoundError{Server: name})
		return
	}
	s.writeJSON(w, http.StatusOK, serverStatus{Name: name, Alive: true})
}

func (s *Server) handleStopServer(w http.ResponseWriter, r *http.Request) {
	if err := s.host.StopServer(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServerTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.host.ListTools(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tools == nil {
		tools = []mcphost.Tool{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleAllTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": s.host.ListAllTools(r.Context())})
}

// handleCallTool always answers 200: the outcome of the call, success or
// failure, travels in the ToolCallResult envelope.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req callToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &mcphost.ConfigError{Reason: "request body is not a valid tool call"})
		return
	}
	res := s.host.CallTool(r.Context(), req.Server, req.Tool, req.Arguments)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfigTools(w http.ResponseWriter, r *http.Request) {
	document, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, &mcphost.ConfigError{Reason: "could not read request body"})
		return
	}
	tools, err := s.host.ListToolsFromConfig(r.Context(), document)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tools == nil {
		tools = []mcphost.Tool{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the host error taxonomy onto HTTP statuses: caller mistakes
// are 400s, missing servers are 404s, everything else is the host's fault.
func statusFor(err error) int {
	var cfgErr *mcphost.ConfigError
	var valErr *mcphost.ValidationError
	var nfErr *mcphost.NotFoundError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
