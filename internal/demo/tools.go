// SPDX-License-Identifier: AGPL-3.0-only
package demo

import (
	"context"
	"reflect"
	"strings"

	"github.com/arva/mcp-chat/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddParams holds parameters for the add tool
type AddParams struct {
	A float64 `json:"a" description:"first addend"`
	B float64 `json:"b" description:"second addend"`
}

// TimeParams holds parameters for the current_time tool
type TimeParams struct {
	Timezone string `json:"timezone,omitempty" description:"IANA time zone name, e.g. Europe/Paris (defaults to UTC)"`
}

// ReverseParams holds parameters for the reverse_text tool
type ReverseParams struct {
	Text string `json:"text" description:"text to reverse"`
}

// GlobParams holds parameters for the glob_files tool
type GlobParams struct {
	Pattern string `json:"pattern" description:"glob pattern; ** matches across directory boundaries"`
	Root    string `json:"root,omitempty" description:"directory to search (defaults to the current directory)"`
}

// ErrorProbeParams holds parameters for the error_probe tool
type ErrorProbeParams struct {
	Message string `json:"message,omitempty" description:"message to fail with"`
}

// ToolDefinition represents a tool that can be registered with the MCP server
type ToolDefinition struct {
	// Name is the name of the tool
	Name string

	// Description is a brief description of what the tool does
	Description string

	// Handler is the function that will be called when the tool is invoked
	Handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

	// Parameters is the parameter schema for the tool (can be a struct)
	Parameters interface{}
}

// registerTools sets up all the MCP tools using a declarative approach
func (s *Server) registerTools() {
	// Define all the tools in one place
	tools := []ToolDefinition{
		{
			Name:        "add",
			Description: "Adds two numbers and returns the sum",
			Handler:     s.handleAdd,
			Parameters:  AddParams{},
		},
		{
			Name:        "current_time",
			Description: "Returns the current date and time, optionally in a specific time zone",
			Handler:     s.handleCurrentTime,
			Parameters:  TimeParams{},
		},
		{
			Name:        "reverse_text",
			Description: "Reverses the given text",
			Handler:     s.handleReverseText,
			Parameters:  ReverseParams{},
		},
		{
			Name:        "glob_files",
			Description: "Lists files under a directory that match a glob pattern",
			Handler:     s.handleGlobFiles,
			Parameters:  GlobParams{},
		},
		{
			Name:        "error_probe",
			Description: "Always fails. Useful for checking how tool errors are surfaced.",
			Handler:     s.handleErrorProbe,
			Parameters:  ErrorProbeParams{},
		},
	}

	// Register all the tools
	for _, tool := range tools {
		registerToolWithError(s.server, tool)
	}
}

// registerToolWithError registers a tool with the MCP server
func registerToolWithError(srv *mcp.Server, def ToolDefinition) {
	schema := buildSchema(def.Parameters)
	tool := &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
	srv.AddTool(tool, def.Handler)
}

// registerPrompt exposes the seed conversation chat clients ask for on startup
func (s *Server) registerPrompt() {
	s.server.AddPrompt(&mcp.Prompt{
		Name:        config.DefaultPromptName,
		Description: "Messages that prime the assistant for this tool set",
	}, s.handleInitialPrompts)
}

// buildSchema converts a Go struct with json and description tags into a JSON Schema object
func buildSchema(params interface{}) map[string]interface{} {
	t := reflect.TypeOf(params)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]interface{}{}
	var required []string

	collectFields(t, properties, &required)

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// collectFields extracts JSON schema properties from struct fields,
// recursing into embedded (anonymous) structs.
func collectFields(t reflect.Type, properties map[string]interface{}, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Recurse into embedded structs
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, properties, required)
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		// Parse json tag to get field name and options
		parts := strings.Split(jsonTag, ",")
		fieldName := parts[0]
		omitempty := false
		for _, p := range parts[1:] {
			if p == "omitempty" {
				omitempty = true
			}
		}

		prop := map[string]interface{}{
			"type": goTypeToJSONType(field.Type),
		}

		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}

		properties[fieldName] = prop

		if !omitempty {
			*required = append(*required, fieldName)
		}
	}
}

// goTypeToJSONType maps Go types to JSON Schema types
func goTypeToJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "string"
	}
}
