// SPDX-License-Identifier: AGPL-3.0-only

// Package toolserver establishes the MCP session with the remote tool server
// and exposes the narrow capability surface the agent core consumes: the tool
// catalog, the seed prompt, and tool invocation.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/arva/mcp-chat/internal/agent"
	"github.com/arva/mcp-chat/internal/config"
	"github.com/arva/mcp-chat/internal/errors"
	"github.com/arva/mcp-chat/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// transportBuilder is overridden in tests to swap in an in-memory transport.
var transportBuilder = buildTransport

// Client wraps an MCP client session against the remote tool server. It
// implements agent.ToolInvoker.
type Client struct {
	session *mcp.ClientSession
	logger  *logging.Logger
}

// Connect builds the configured transport, establishes the MCP session, and
// performs the protocol handshake.
func Connect(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	transport, err := transportBuilder(ctx, &cfg.Server)
	if err != nil {
		return nil, err
	}

	cli := mcp.NewClient(&mcp.Implementation{
		Name:    cfg.Client.Name,
		Version: cfg.Client.Version,
	}, nil)
	session, err := cli.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to tool server: %w", err)
	}

	c := &Client{session: session, logger: logger}
	if info := c.ServerInfo(); info != nil {
		logger.Infof("Connected to tool server %s %s via %s", info.Name, info.Version, cfg.Server.Transport)
	}
	return c, nil
}

// buildTransport constructs the MCP transport for the configured connection
// mode.
func buildTransport(ctx context.Context, cfg *config.ServerConfig) (mcp.Transport, error) {
	switch cfg.Transport {
	case config.TransportSSE:
		if cfg.URL == "" {
			return nil, errors.InvalidInput("sse transport requires a server URL")
		}
		return &mcp.SSEClientTransport{Endpoint: cfg.URL}, nil
	case config.TransportStreamable:
		if cfg.URL == "" {
			return nil, errors.InvalidInput("streamable transport requires a server URL")
		}
		return &mcp.StreamableClientTransport{Endpoint: cfg.URL}, nil
	case config.TransportStdio:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, errors.InvalidInput("stdio transport requires a server command")
		}
		// #nosec G204 -- the command comes from local configuration, not remote input
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		return &mcp.CommandTransport{Command: cmd}, nil
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported transport: %s", cfg.Transport))
	}
}

// ListTools fetches the server's tool catalog as provider-agnostic
// descriptors. A tool whose schema cannot be decoded is skipped with a
// warning rather than failing the whole catalog.
func (c *Client) ListTools(ctx context.Context) ([]agent.ToolDescriptor, error) {
	resp, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	descriptors := make([]agent.ToolDescriptor, 0, len(resp.Tools))
	for _, tl := range resp.Tools {
		schema, err := decodeSchema(tl.InputSchema)
		if err != nil {
			c.logger.Warnf("Skipping tool %s: %v", tl.Name, err)
			continue
		}
		descriptors = append(descriptors, agent.ToolDescriptor{
			Name:        tl.Name,
			Description: tl.Description,
			InputSchema: schema,
		})
	}
	return descriptors, nil
}

// decodeSchema round-trips the SDK's schema representation into a plain map.
func decodeSchema(raw interface{}) (map[string]interface{}, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing input schema")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal input schema: %w", err)
	}
	return schema, nil
}

// InitialPrompt fetches the named server prompt and maps its messages onto
// seed messages for the conversation. User-role prompt messages stay user
// messages; assistant-role messages carry the server's instructions, so they
// seed as system messages.
func (c *Client) InitialPrompt(ctx context.Context, name string) ([]agent.Message, error) {
	res, err := c.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: name})
	if err != nil {
		return nil, fmt.Errorf("get prompt %q: %w", name, err)
	}

	var seed []agent.Message
	for _, pm := range res.Messages {
		text := contentText(pm.Content)
		if text == "" {
			continue
		}
		role := agent.RoleUser
		if pm.Role == "assistant" {
			role = agent.RoleSystem
		}
		seed = append(seed, agent.Message{Role: role, Content: text})
	}
	return seed, nil
}

// CallTool invokes a remote tool and flattens its content into text. An
// error-flagged result becomes an error so the dispatcher can surface it to
// the model.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", err
	}

	text := flattenContent(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

// flattenContent joins the text blocks of a tool result. Results carrying
// only non-text content fall back to their JSON form so nothing is dropped.
func flattenContent(blocks []mcp.Content) string {
	var parts []string
	for _, b := range blocks {
		if tc, ok := b.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && len(blocks) > 0 {
		out, _ := json.Marshal(blocks)
		return string(out)
	}
	return strings.Join(parts, "\n")
}

// contentText extracts the text of a prompt content block.
func contentText(c mcp.Content) string {
	if tc, ok := c.(*mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

// ServerInfo returns the implementation info the server reported during the
// handshake.
func (c *Client) ServerInfo() *mcp.Implementation {
	res := c.session.InitializeResult()
	if res == nil {
		return nil
	}
	return res.ServerInfo
}

// Close shuts down the session, if any.
func (c *Client) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Close()
}
