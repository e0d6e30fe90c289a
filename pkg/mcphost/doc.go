// Package mcphost manages the lifecycle of external MCP (Model Context
// Protocol) tool-provider servers and the invocation of their tools. It spawns
// stdio servers as child processes, performs the protocol handshake through
// the modelcontextprotocol/go-sdk client, and keeps every live connection in a
// single concurrency-safe registry so callers can start, stop, inspect, and
// invoke servers by name without touching protocol plumbing.
//
// # Core entry points
//
//   - Manager is the long-lived orchestration type. Construct it with
//     NewManager and inject it wherever server access is needed; it is safe
//     for concurrent use.
//   - ServerConfig declares how one server is launched (stdio) or where it is
//     expected to be reachable (http/websocket endpoints are recorded but
//     never dialed).
//   - ToolCallResult is the uniform outcome envelope returned by
//     Manager.CallTool: it never raises, so UI layers render success and
//     failure through one shape.
//
// After a server is started, ListTools returns its catalog with every input
// schema normalized to the canonical ToolInputSchema shape, ListAllTools
// aggregates catalogs across servers with collision-free "server__tool"
// names, and ListToolsFromConfig ingests a whole multi-server configuration
// document ({"mcpServers": {...}} or {"servers": [...]}) in one call,
// tolerating per-server failures.
package mcphost
