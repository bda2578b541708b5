// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/arva/mcp-chat/internal/errors"
	"github.com/arva/mcp-chat/internal/logging"
)

// ToolInvoker executes a named tool with decoded arguments and returns its
// textual output. The toolserver client implements it over an MCP session.
type ToolInvoker interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// ToolResult is the outcome of dispatching one tool call, ready to append to
// the conversation as a tool message.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Dispatcher routes model-issued tool calls to the tool server, decoding and
// validating arguments on the way.
type Dispatcher struct {
	invoker ToolInvoker
	// schemas holds the original descriptor schemas keyed by tool name.
	// Validation runs against these, not the padded catalog definitions.
	schemas map[string]map[string]interface{}
	logger  *logging.Logger
}

// NewDispatcher creates a dispatcher for the given tool set.
func NewDispatcher(invoker ToolInvoker, descriptors []ToolDescriptor, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	schemas := make(map[string]map[string]interface{}, len(descriptors))
	for _, d := range descriptors {
		schemas[d.Name] = d.InputSchema
	}
	return &Dispatcher{
		invoker: invoker,
		schemas: schemas,
		logger:  logger,
	}
}

// Dispatch executes a single tool call. Every failure mode is recoverable:
// the returned ToolResult always carries content safe to feed back to the
// model, with errors surfaced as an "ERROR: ..." string and IsError set. The
// classified error is returned alongside for logging and tests; callers must
// not treat it as fatal to the query.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) (ToolResult, error) {
	schema, ok := d.schemas[call.Name]
	if !ok {
		err := &ToolInvocationError{Tool: call.Name, Err: errors.NotFound("tool", call.Name)}
		return errorResult(call, err), err
	}

	args := map[string]interface{}{}
	if strings.TrimSpace(call.Arguments) != "" {
		if uerr := json.Unmarshal([]byte(call.Arguments), &args); uerr != nil {
			err := &ArgumentParseError{Tool: call.Name, Err: uerr}
			return errorResult(call, err), err
		}
	}
	if verr := validateArgs(schema, args); verr != nil {
		err := &ArgumentParseError{Tool: call.Name, Err: verr}
		return errorResult(call, err), err
	}

	d.logger.Debugf("calling tool %s", call.Name)
	out, cerr := d.invoker.CallTool(ctx, call.Name, args)
	if cerr != nil {
		err := &ToolInvocationError{Tool: call.Name, Err: cerr}
		return errorResult(call, err), err
	}
	return ToolResult{ToolCallID: call.ID, Content: out}, nil
}

// errorResult packages a dispatch failure as model-visible tool output.
func errorResult(call ToolCall, err error) ToolResult {
	return ToolResult{
		ToolCallID: call.ID,
		Content:    "ERROR: " + err.Error(),
		IsError:    true,
	}
}

// validateArgs checks decoded arguments against a tool's input schema:
// required properties must be present and, where the schema names a
// primitive type, present values must match it. Validation is shallow and
// lenient on purpose. Unknown keys pass through untouched so the padding
// property and server-side extensions keep working; nested schemas are the
// server's job to enforce.
func validateArgs(schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	for _, name := range requiredNames(schema) {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	for name, value := range args {
		prop, ok := props[name].(map[string]interface{})
		if !ok {
			continue
		}
		typ, ok := prop["type"].(string)
		if !ok {
			continue
		}
		if err := checkType(name, typ, value); err != nil {
			return err
		}
	}
	return nil
}

// requiredNames reads the schema's required list, tolerating both the
// JSON-decoded and the hand-built slice shapes.
func requiredNames(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

func checkType(name, typ string, value interface{}) error {
	ok := true
	switch typ {
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "integer":
		f, isNum := value.(float64)
		ok = isNum && math.Trunc(f) == f
	case "boolean":
		_, ok = value.(bool)
	case "array":
		_, ok = value.([]interface{})
	case "object":
		_, ok = value.(map[string]interface{})
	}
	if !ok {
		return fmt.Errorf("argument %q is not a valid %s", name, typ)
	}
	return nil
}
