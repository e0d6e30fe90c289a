package mcphost

import (
	"encoding/json"
	"fmt"
)

// ToolInputSchema is the canonical structured description of a tool's call
// arguments. Top-level keys the normalizer does not recognize are kept in
// Extra so a round trip through the normalizer never drops schema vocabulary
// a downstream consumer might need.
type ToolInputSchema struct {
	Type        string
	Properties  map[string]json.RawMessage
	Required    []string
	Description string
	Title       string
	Extra       map[string]json.RawMessage
}

func defaultInputSchema() ToolInputSchema {
	return ToolInputSchema{Type: "object", Properties: map[string]json.RawMessage{}}
}

// NormalizeInputSchema converts an arbitrary JSON tool-schema payload into the
// canonical ToolInputSchema shape. It is pure and never fails: non-object
// input yields the default empty-object schema, non-string entries in
// "required" are dropped.
func NormalizeInputSchema(raw json.RawMessage) ToolInputSchema {
	var top map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &top) != nil || top == nil {
		return defaultInputSchema()
	}
	schema := defaultInputSchema()
	for key, value := range top {
		switch key {
		case "type":
			var s string
			if json.Unmarshal(value, &s) == nil && s != "" {
				schema.Type = s
			}
		case "properties":
			var props map[string]json.RawMessage
			if json.Unmarshal(value, &props) == nil && props != nil {
				schema.Properties = props
			}
		case "required":
			var items []json.RawMessage
			if json.Unmarshal(value, &items) != nil {
				continue
			}
			for _, item := range items {
				var name string
				if json.Unmarshal(item, &name) == nil {
					schema.Required = append(schema.Required, name)
				}
			}
		case "description":
			_ = json.Unmarshal(value, &schema.Description)
		case "title":
			_ = json.Unmarshal(value, &schema.Title)
		default:
			if schema.Extra == nil {
				schema.Extra = make(map[string]json.RawMessage)
			}
			schema.Extra[key] = value
		}
	}
	return schema
}

// MarshalJSON flattens Extra back into the top-level object. "required" is
// omitted when empty.
func (s ToolInputSchema) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+5)
	for key, value := range s.Extra {
		out[key] = value
	}
	out["type"] = s.Type
	props := s.Properties
	if props == nil {
		props = map[string]json.RawMessage{}
	}
	out["properties"] = props
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Title != "" {
		out["title"] = s.Title
	}
	return json.Marshal(out)
}

func (s *ToolInputSchema) UnmarshalJSON(data []byte) error {
	*s = NormalizeInputSchema(data)
	return nil
}

// Tool describes one callable capability exposed by a connected server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"input_schema"`
}

// ToolCallResult is the outcome envelope for one tool invocation. Exactly one
// of Result and Error is populated, and Success always agrees with which one.
type ToolCallResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func callSuccess(payload any) ToolCallResult {
	return ToolCallResult{Success: true, Result: payload}
}

func callFailure(format string, args ...any) ToolCallResult {
	return ToolCallResult{Error: fmt.Sprintf(format, args...)}
}

// ValidateToolSchema checks that a tool's input schema is compatible with
// schema consumers: the type must be "object" and every required field must
// be defined in properties. Violations are *ValidationError values.
func ValidateToolSchema(tool *Tool) error {
	if tool.InputSchema.Type != "object" {
		return &ValidationError{
			Tool:   tool.Name,
			Reason: fmt.Sprintf("schema type is %q, expected \"object\"", tool.InputSchema.Type),
		}
	}
	for _, field := range tool.InputSchema.Required {
		if _, ok := tool.InputSchema.Properties[field]; !ok {
			return &ValidationError{
				Tool:   tool.Name,
				Reason: fmt.Sprintf("required field %q is not defined in properties", field),
			}
		}
	}
	return nil
}
