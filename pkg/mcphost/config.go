package mcphost

import "fmt"

// TransportKind identifies how a server is reached.
type TransportKind string

const (
	TransportStdio     TransportKind = "stdio"
	TransportHTTP      TransportKind = "http"
	TransportWebSocket TransportKind = "websocket"
)

// ServerConfig describes how to reach one tool-provider server. The zero
// Transport means stdio.
type ServerConfig struct {
	Name      string            `json:"name"`
	Transport TransportKind     `json:"transport,omitempty"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Port      int               `json:"port,omitempty"`
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	return c
}

// Validate rejects configurations that cannot possibly be started: a missing
// name, a stdio transport without a command, a network transport without an
// endpoint, or an unknown transport literal. It runs before any process is
// spawned.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return &ConfigError{Reason: "server name is required"}
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return &ConfigError{Server: c.Name, Reason: "command is required for stdio transport"}
		}
	case TransportHTTP, TransportWebSocket:
		if c.URL == "" {
			return &ConfigError{Server: c.Name, Reason: fmt.Sprintf("url is required for %s transport", c.Transport)}
		}
	default:
		return &ConfigError{Server: c.Name, Reason: fmt.Sprintf("unsupported transport %q", c.Transport)}
	}
	return nil
}
