package mcphost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type serversDocument struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
	Servers    []json.RawMessage          `json:"servers"`
}

// ParseServersDocument decodes a multi-server configuration document into a
// uniform config list. Two shapes are accepted: {"mcpServers": {name: {...}}}
// where the map key becomes the server name, and {"servers": [{...}]} where
// each entry carries its own name. Transport defaults to stdio either way.
// Any other shape is a *ConfigError, reported before any server is touched.
// Map-shape entries come back sorted by name so ingestion order is stable.
func ParseServersDocument(data []byte) ([]ServerConfig, error) {
	var doc serversDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Reason: "malformed servers document: " + err.Error()}
	}
	switch {
	case doc.MCPServers != nil:
		names := make([]string, 0, len(doc.MCPServers))
		for name := range doc.MCPServers {
			names = append(names, name)
		}
		sort.Strings(names)
		configs := make([]ServerConfig, 0, len(names))
		for _, name := range names {
			var cfg ServerConfig
			if err := json.Unmarshal(doc.MCPServers[name], &cfg); err != nil {
				return nil, &ConfigError{Server: name, Reason: "malformed server entry: " + err.Error()}
			}
			cfg.Name = name
			configs = append(configs, cfg.withDefaults())
		}
		return configs, nil
	case doc.Servers != nil:
		configs := make([]ServerConfig, 0, len(doc.Servers))
		for i, raw := range doc.Servers {
			var cfg ServerConfig
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, &ConfigError{Reason: fmt.Sprintf("malformed server entry %d: %v", i, err)}
			}
			configs = append(configs, cfg.withDefaults())
		}
		return configs, nil
	default:
		return nil, &ConfigError{Reason: `servers document must contain an "mcpServers" object or a "servers" array`}
	}
}

// LoadServersDocument reads a servers document from disk and returns it as
// JSON, converting YAML files (.yaml/.yml) along the way. The result feeds
// ParseServersDocument or Manager.ListToolsFromConfig unchanged.
func LoadServersDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ConfigError{Reason: "malformed YAML servers document: " + err.Error()}
		}
		return json.Marshal(doc)
	default:
		return data, nil
	}
}
