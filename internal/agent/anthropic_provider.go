// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements ChatProvider using the Anthropic SDK.
type AnthropicProvider struct {
	client    *anthropic.Client
	maxTokens int
}

// NewAnthropicProvider creates a new Anthropic-backed ChatProvider.
func NewAnthropicProvider(apiKey string, maxTokens int) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{client: &client, maxTokens: maxTokens}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) CreateCompletion(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (*Completion, error) {
	system, rest := splitSystemMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  toAnthropicMessages(rest),
		MaxTokens: int64(p.maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return &Completion{
		Message:      fromAnthropicMessage(resp),
		FinishReason: normalizeAnthropicStopReason(string(resp.StopReason)),
	}, nil
}

// normalizeAnthropicStopReason maps Anthropic stop reasons onto the
// normalized finish-reason vocabulary. Unknown reasons pass through raw so
// the resolver can report them.
func normalizeAnthropicStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return FinishReasonToolCalls
	case "end_turn", "stop_sequence":
		return FinishReasonStop
	default:
		return reason
	}
}

// toAnthropicTools converts provider-agnostic tool definitions to Anthropic SDK
// tool params.
func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Extract properties and required from the JSON-schema map.
		props, _ := t.Parameters["properties"].(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
		}
		var required []string
		if req, ok := t.Parameters["required"].([]interface{}); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
		// Also handle the case where required is already []string (e.g. the
		// padded catalog schemas).
		if req, ok := t.Parameters["required"].([]string); ok {
			required = req
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// toAnthropicMessages converts provider-agnostic messages to Anthropic SDK
// message params.
//
// Anthropic's API requires:
//   - Only "user" and "assistant" roles (no "tool" role)
//   - Tool results are sent as user messages with ToolResultBlockParam content
//   - Assistant messages with tool calls use ToolUseBlockParam content
func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewTextBlock(m.Content),
			))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0)
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input json.RawMessage
				if tc.Arguments != "" {
					input = json.RawMessage(tc.Arguments)
				} else {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out
}

// fromAnthropicMessage converts an Anthropic SDK response to the
// provider-agnostic Message type.
func fromAnthropicMessage(resp *anthropic.Message) Message {
	msg := Message{
		Role: RoleAssistant,
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if msg.Content != "" {
				msg.Content += "\n"
			}
			msg.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}
	return msg
}
