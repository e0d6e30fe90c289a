package mcphost

import "fmt"

// ConfigError reports a server configuration that was rejected before any
// process was spawned: a missing required field, an unsupported transport, or
// a malformed servers document.
type ConfigError struct {
	Server string // empty for document-level errors
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Server != "" {
		return fmt.Sprintf("mcphost: invalid config for %q: %s", e.Server, e.Reason)
	}
	return "mcphost: invalid config: " + e.Reason
}

// SpawnError reports that a stdio server's child process could not be created.
type SpawnError struct {
	Server  string
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("mcphost: spawn %q for server %q: %v", e.Command, e.Server, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// HandshakeError reports that a spawned server did not complete protocol
// negotiation within the dial timeout.
type HandshakeError struct {
	Server string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("mcphost: handshake with server %q: %v", e.Server, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// RemoteError reports a protocol-level failure on an established connection,
// carrying the remote's message text.
type RemoteError struct {
	Server string
	Op     string // e.g. "tools/call", "tools/list"
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("mcphost: %s on server %q: %v", e.Op, e.Server, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NotFoundError reports an operation that referenced a server name with no
// live connection.
type NotFoundError struct {
	Server string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mcphost: server %q not found", e.Server)
}

// ValidationError reports a tool whose input schema violates the canonical
// shape expected by schema consumers.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mcphost: tool %q: %s", e.Tool, e.Reason)
}
