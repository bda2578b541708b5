// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"encoding/json"
	"fmt"
)

// BuildCatalog converts MCP tool descriptors into provider-agnostic tool
// definitions ready to send with a completion request. Definitions are
// marked strict so providers that support schema enforcement can opt in.
//
// Schemas are deep-copied through a JSON round trip, so mutating a returned
// definition never leaks back into the descriptors and rebuilding from the
// same descriptors always yields the same catalog. A tool with no name, a
// duplicate name, or an unusable schema fails the whole build with
// SchemaTranslationError rather than being silently dropped.
func BuildCatalog(descriptors []ToolDescriptor) ([]ToolDefinition, error) {
	defs := make([]ToolDefinition, 0, len(descriptors))
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, &SchemaTranslationError{Tool: d.Name, Reason: "missing tool name"}
		}
		if seen[d.Name] {
			return nil, &SchemaTranslationError{Tool: d.Name, Reason: "duplicate tool name"}
		}
		seen[d.Name] = true

		params, err := translateSchema(d)
		if err != nil {
			return nil, err
		}
		defs = append(defs, ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
			Strict:      true,
		})
	}
	return defs, nil
}

// translateSchema validates and deep-copies a descriptor's input schema into
// the parameters map of a tool definition.
func translateSchema(d ToolDescriptor) (map[string]interface{}, error) {
	if d.InputSchema == nil {
		return nil, &SchemaTranslationError{Tool: d.Name, Reason: "missing input schema"}
	}

	raw, err := json.Marshal(d.InputSchema)
	if err != nil {
		return nil, &SchemaTranslationError{Tool: d.Name, Reason: fmt.Sprintf("schema is not serializable: %v", err)}
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &SchemaTranslationError{Tool: d.Name, Reason: fmt.Sprintf("schema is not a JSON object: %v", err)}
	}

	if typ, ok := params["type"]; ok {
		if s, ok := typ.(string); !ok || s != "object" {
			return nil, &SchemaTranslationError{Tool: d.Name, Reason: fmt.Sprintf("schema type %v is not object", typ)}
		}
	} else {
		params["type"] = "object"
	}
	if props, ok := params["properties"]; ok {
		if _, ok := props.(map[string]interface{}); !ok {
			return nil, &SchemaTranslationError{Tool: d.Name, Reason: fmt.Sprintf("properties is %T, not an object", props)}
		}
	}

	padEmptySchema(params)
	return params, nil
}

// padEmptySchema adds a dummy property to parameter-less tools.
//
// WORKAROUND: OpenAI rejects strict function schemas whose properties object
// is empty, so no-parameter tools get a placeholder string property the
// model can fill with anything. The dispatcher validates arguments against
// the original descriptor schema, so the placeholder never becomes required
// for real.
func padEmptySchema(params map[string]interface{}) {
	if params["type"] != "object" {
		return
	}
	props, _ := params["properties"].(map[string]interface{})
	if len(props) > 0 {
		return
	}
	params["properties"] = map[string]interface{}{
		"random_string": map[string]interface{}{
			"type":        "string",
			"description": "Dummy parameter for no-parameter tools",
		},
	}
	params["required"] = []string{"random_string"}
}
