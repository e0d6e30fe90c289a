package mcphost

import "strings"

// toolNameSeparator joins a server name and a tool name in aggregate listings.
// "__" stays within the MCP spec's tool-name character guidance.
const toolNameSeparator = "__"

func namespacedToolName(server, tool string) string {
	return server + toolNameSeparator + tool
}

// SplitToolName splits an aggregate tool name produced by ListAllTools or
// ListToolsFromConfig back into its server and tool parts. ok is false when
// the name carries no separator or either part is empty.
func SplitToolName(name string) (server, tool string, ok bool) {
	server, tool, ok = strings.Cut(name, toolNameSeparator)
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}
