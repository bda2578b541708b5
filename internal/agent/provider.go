// SPDX-License-Identifier: AGPL-3.0-only

// Package agent bridges a chat-completion API and an MCP tool server. It
// translates the server's tool catalog into completion-API function schemas,
// tracks conversation state, dispatches model-issued tool calls, and drives
// the completion loop until the model produces a final answer.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/arva/mcp-chat/internal/config"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons, normalized to the OpenAI vocabulary. Providers map their
// own stop reasons onto these; anything else is passed through raw and the
// resolver treats it as unhandled.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
)

// ToolDescriptor describes a tool as advertised by an MCP server. The
// catalog is fetched once at bootstrap and treated as immutable for the
// lifetime of the session.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ToolDefinition is a provider-agnostic representation of a tool that can be
// offered to an LLM during a chat completion.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Strict      bool
}

// ToolCall represents a single tool invocation requested by the model.
// Arguments holds the raw JSON text exactly as the model emitted it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is a provider-agnostic chat message.
type Message struct {
	Role       string     // "system", "user", "assistant", "tool"
	Content    string     // text content
	ToolCalls  []ToolCall // tool calls requested by the assistant
	ToolCallID string     // set when Role == "tool" to correlate with a ToolCall
}

// Completion is a provider's response to a completion request: the assistant
// message plus the reason the model stopped generating. Only the primary
// choice is represented; providers that return several always take the first.
type Completion struct {
	Message      Message
	FinishReason string
}

// ChatProvider abstracts a chat-completion backend so the resolution loop can
// work with any LLM provider.
type ChatProvider interface {
	// Name identifies the backend ("openai", "anthropic", "gemini").
	Name() string
	// CreateCompletion sends the conversation and tool catalog to the model
	// and returns the assistant's response.
	CreateCompletion(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (*Completion, error)
}

// NewChatProvider builds the appropriate ChatProvider based on cfg.AI.Provider.
// Each provider prefers its own API key and falls back to the generic one.
func NewChatProvider(ctx context.Context, cfg *config.Config) (ChatProvider, error) {
	provider := strings.ToLower(cfg.AI.Provider)
	switch provider {
	case config.ProviderAnthropic:
		apiKey := cfg.AI.AnthropicAPIKey
		if apiKey == "" {
			apiKey = cfg.AI.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key is not set in configuration")
		}
		return NewAnthropicProvider(apiKey, cfg.AI.MaxTokens), nil
	case config.ProviderGemini:
		apiKey := cfg.AI.GeminiAPIKey
		if apiKey == "" {
			apiKey = cfg.AI.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("Gemini API key is not set in configuration")
		}
		return NewGeminiProvider(ctx, apiKey, cfg.AI.MaxTokens)
	default: // "openai" or empty
		apiKey := cfg.AI.OpenAIAPIKey
		if apiKey == "" {
			apiKey = cfg.AI.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key is not set in configuration")
		}
		return NewOpenAIProvider(apiKey, cfg.AI.BaseURL, cfg.AI.MaxTokens), nil
	}
}

// splitSystemMessages separates system-role content from the rest of the
// conversation for providers that take system instructions out of band.
func splitSystemMessages(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if m.Content != "" {
				system = append(system, m.Content)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
