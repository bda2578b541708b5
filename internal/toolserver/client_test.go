// SPDX-License-Identifier: AGPL-3.0-only
package toolserver

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/arva/mcp-chat/internal/config"
	"github.com/arva/mcp-chat/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Options{Output: io.Discard, Level: logging.Fatal})
}

// newTestServer builds an in-process MCP server with a working tool, a
// failing tool, and a seed prompt.
func newTestServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "test-tools", Version: "1.0.0"}, nil)

	srv.AddTool(&mcp.Tool{
		Name:        "echo",
		Description: "Echoes the input text",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"text"},
		},
	}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "echo:" + params.Text}},
		}, nil
	})

	srv.AddTool(&mcp.Tool{
		Name:        "fail",
		Description: "Always reports an error",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "deliberate failure"}},
		}, nil
	})

	srv.AddPrompt(&mcp.Prompt{
		Name:        "get_initial_prompts",
		Description: "Seed messages for a new conversation",
	}, func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{
				{Role: "assistant", Content: &mcp.TextContent{Text: "You are a helpful assistant."}},
				{Role: "user", Content: &mcp.TextContent{Text: "Introduce yourself briefly."}},
			},
		}, nil
	})

	return srv
}

// connectTestClient wires a Client to srv over in-memory transports.
func connectTestClient(t *testing.T, srv *mcp.Server) *Client {
	t.Helper()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = srv.Run(ctx, serverTransport)
	}()
	t.Cleanup(cancel)

	original := transportBuilder
	transportBuilder = func(context.Context, *config.ServerConfig) (mcp.Transport, error) {
		return clientTransport, nil
	}
	t.Cleanup(func() { transportBuilder = original })

	client, err := Connect(context.Background(), config.DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConnect_ServerInfo(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	info := client.ServerInfo()
	if info == nil {
		t.Fatal("Expected server info from handshake")
	}
	if info.Name != "test-tools" {
		t.Errorf("Expected server name 'test-tools', got %q", info.Name)
	}
}

func TestConnect_TransportBuilderFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Transport = "carrier-pigeon"

	_, err := Connect(context.Background(), cfg, testLogger())
	if err == nil {
		t.Fatal("Expected error for unsupported transport")
	}
}

func TestListTools(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	descriptors, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(descriptors))
	}

	byName := map[string]int{}
	for i, d := range descriptors {
		byName[d.Name] = i
	}
	idx, ok := byName["echo"]
	if !ok {
		t.Fatal("Expected 'echo' descriptor")
	}
	echo := descriptors[idx]
	if echo.Description != "Echoes the input text" {
		t.Errorf("Unexpected description %q", echo.Description)
	}
	if echo.InputSchema["type"] != "object" {
		t.Errorf("Expected schema type 'object', got %v", echo.InputSchema["type"])
	}
	props, ok := echo.InputSchema["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected properties map, got %T", echo.InputSchema["properties"])
	}
	if props["text"] == nil {
		t.Error("Expected 'text' property to survive the round trip")
	}
	if _, ok := byName["fail"]; !ok {
		t.Error("Expected 'fail' descriptor")
	}
}

func TestCallTool(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	out, err := client.CallTool(context.Background(), "echo", map[string]interface{}{"text": "hi"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if out != "echo:hi" {
		t.Errorf("Expected 'echo:hi', got %q", out)
	}
}

func TestCallTool_ErrorResult(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	out, err := client.CallTool(context.Background(), "fail", map[string]interface{}{})
	if err == nil {
		t.Fatal("Expected error for error-flagged result")
	}
	if out != "" {
		t.Errorf("Expected empty output on error, got %q", out)
	}
	if !strings.Contains(err.Error(), "deliberate failure") {
		t.Errorf("Expected error to carry the tool's message, got %q", err.Error())
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	if _, err := client.CallTool(context.Background(), "no_such_tool", nil); err == nil {
		t.Fatal("Expected error for unknown tool")
	}
}

func TestInitialPrompt(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	seed, err := client.InitialPrompt(context.Background(), "get_initial_prompts")
	if err != nil {
		t.Fatalf("InitialPrompt failed: %v", err)
	}
	if len(seed) != 2 {
		t.Fatalf("Expected 2 seed messages, got %d", len(seed))
	}
	// Assistant-role prompt messages become system seed messages
	if seed[0].Role != "system" {
		t.Errorf("Expected first seed role 'system', got %q", seed[0].Role)
	}
	if seed[0].Content != "You are a helpful assistant." {
		t.Errorf("Unexpected seed content %q", seed[0].Content)
	}
	if seed[1].Role != "user" {
		t.Errorf("Expected second seed role 'user', got %q", seed[1].Role)
	}
	if seed[1].Content != "Introduce yourself briefly." {
		t.Errorf("Unexpected seed content %q", seed[1].Content)
	}
}

func TestInitialPrompt_Missing(t *testing.T) {
	client := connectTestClient(t, newTestServer())

	if _, err := client.InitialPrompt(context.Background(), "no_such_prompt"); err == nil {
		t.Fatal("Expected error for missing prompt")
	}
}

func TestBuildTransport(t *testing.T) {
	ctx := context.Background()

	sse, err := buildTransport(ctx, &config.ServerConfig{Transport: config.TransportSSE, URL: "http://localhost:8080/sse"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	sseTransport, ok := sse.(*mcp.SSEClientTransport)
	if !ok {
		t.Fatalf("Expected SSEClientTransport, got %T", sse)
	}
	if sseTransport.Endpoint != "http://localhost:8080/sse" {
		t.Errorf("Unexpected endpoint %q", sseTransport.Endpoint)
	}

	streamable, err := buildTransport(ctx, &config.ServerConfig{Transport: config.TransportStreamable, URL: "http://localhost:8080/mcp"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := streamable.(*mcp.StreamableClientTransport); !ok {
		t.Fatalf("Expected StreamableClientTransport, got %T", streamable)
	}

	stdio, err := buildTransport(ctx, &config.ServerConfig{Transport: config.TransportStdio, Command: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := stdio.(*mcp.CommandTransport); !ok {
		t.Fatalf("Expected CommandTransport, got %T", stdio)
	}
}

func TestBuildTransport_Invalid(t *testing.T) {
	ctx := context.Background()

	if _, err := buildTransport(ctx, &config.ServerConfig{Transport: config.TransportSSE}); err == nil {
		t.Error("Expected error for sse transport without URL")
	}
	if _, err := buildTransport(ctx, &config.ServerConfig{Transport: config.TransportStdio}); err == nil {
		t.Error("Expected error for stdio transport without command")
	}
	if _, err := buildTransport(ctx, &config.ServerConfig{Transport: "bogus"}); err == nil {
		t.Error("Expected error for unknown transport")
	}
}

func TestDecodeSchema(t *testing.T) {
	schema, err := decodeSchema(map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"n": map[string]interface{}{"type": "integer"}},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("Expected type 'object', got %v", schema["type"])
	}

	if _, err := decodeSchema(nil); err == nil {
		t.Error("Expected error for nil schema")
	}
	if _, err := decodeSchema("not an object"); err == nil {
		t.Error("Expected error for non-object schema")
	}
}

func TestFlattenContent(t *testing.T) {
	out := flattenContent([]mcp.Content{
		&mcp.TextContent{Text: "line one"},
		&mcp.TextContent{Text: "line two"},
	})
	if out != "line one\nline two" {
		t.Errorf("Expected joined lines, got %q", out)
	}

	if out := flattenContent(nil); out != "" {
		t.Errorf("Expected empty output for no content, got %q", out)
	}
}

func TestClose_NilSafe(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Expected nil-safe Close, got %v", err)
	}
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Expected Close without session to be nil, got %v", err)
	}
}
