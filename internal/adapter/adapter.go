// Package adapter defines the domain adapter contract: a bundle of prompt
// template, input/output JSON schema, tool definitions, and adaptation logic
// that specializes the service for one domain. Adapters are registered with
// the router, which selects one per request by domain name or keyword score.
package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolDefinition describes a tool the domain exposes to a model.
type ToolDefinition struct {
	// Name is the tool identifier.
	Name string `json:"name"`
	// Description says what the tool does.
	Description string `json:"description"`
	// Parameters is the JSON schema of the tool's arguments.
	Parameters map[string]any `json:"parameters"`
}

// Schema holds the JSON schemas an adapter validates its inputs and outputs
// against.
type Schema struct {
	// Input is the JSON schema for request input data.
	Input map[string]any `json:"input"`
	// Output is the JSON schema for adapted output data.
	Output map[string]any `json:"output"`
}

// Adapter is implemented by each domain specialization.
type Adapter interface {
	// Domain returns the unique domain identifier (e.g. "legal_doc").
	Domain() string

	// PromptTemplate returns the domain prompt with {name} placeholders.
	PromptTemplate() string

	// Schema returns the input/output JSON schemas for this domain.
	Schema() Schema

	// Tools returns the tool definitions available in this domain.
	Tools() []ToolDefinition

	// AdaptInput transforms raw input into the domain's expected shape,
	// filling defaults and normalizing values. The input map is not mutated.
	AdaptInput(raw map[string]any) map[string]any

	// AdaptOutput transforms raw model output into the domain's response
	// shape, filling defaults for absent fields.
	AdaptOutput(raw map[string]any) map[string]any
}

// FormatPrompt renders the adapter's template by substituting each {name}
// placeholder with the corresponding value from vars. Maps and slices are
// rendered as JSON; everything else with fmt.Sprint. Placeholders with no
// matching variable are left in place.
func FormatPrompt(a Adapter, vars map[string]any) string {
	prompt := a.PromptTemplate()
	for name, value := range vars {
		prompt = strings.ReplaceAll(prompt, "{"+name+"}", formatValue(value))
	}
	return prompt
}

// ValidateInput checks input against the required fields of the adapter's
// input schema. The first missing field is reported by name.
func ValidateInput(a Adapter, input map[string]any) error {
	return checkRequired(a.Schema().Input, input)
}

// ValidateOutput checks output against the required fields of the adapter's
// output schema.
func ValidateOutput(a Adapter, output map[string]any) error {
	return checkRequired(a.Schema().Output, output)
}

// checkRequired verifies every field listed under the schema's "required"
// key is present in data.
func checkRequired(schema, data map[string]any) error {
	for _, field := range requiredFields(schema) {
		if _, ok := data[field]; !ok {
			return fmt.Errorf("adapter: missing required field: %s", field)
		}
	}
	return nil
}

// requiredFields extracts the "required" list from a JSON schema map,
// tolerating both []string (Go-authored schemas) and []any (decoded JSON).
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, f := range req {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

// formatValue renders one template variable. Structured values become JSON
// so market data and similar maps stay readable inside the prompt.
func formatValue(v any) string {
	switch v.(type) {
	case map[string]any, []any, []string, []float64:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}

// cloneInput shallow-copies a raw input map so AdaptInput implementations
// can fill defaults without mutating the caller's map.
func cloneInput(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
