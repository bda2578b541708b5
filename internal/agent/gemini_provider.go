// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements ChatProvider using the Google GenAI SDK.
type GeminiProvider struct {
	client    *genai.Client
	maxTokens int
}

// NewGeminiProvider creates a new Gemini-backed ChatProvider.
func NewGeminiProvider(ctx context.Context, apiKey string, maxTokens int) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, maxTokens: maxTokens}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) CreateCompletion(ctx context.Context, model string, messages []Message, tools []ToolDefinition) (*Completion, error) {
	system, rest := splitSystemMessages(messages)

	cfg := &genai.GenerateContentConfig{}
	if p.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.maxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if len(tools) > 0 {
		cfg.Tools = toGeminiTools(tools)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, toGeminiContents(rest), cfg)
	if err != nil {
		return nil, err
	}
	return fromGeminiResponse(resp)
}

// toGeminiTools converts provider-agnostic tool definitions to genai function
// declarations. Gemini accepts the JSON schema directly, so the padded
// strict-mode parameters work unchanged.
func toGeminiTools(tools []ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiContents converts provider-agnostic messages to genai contents.
//
// Gemini's API requires:
//   - Only "user" and "model" roles
//   - Assistant tool calls as FunctionCall parts on a model turn
//   - Tool results as FunctionResponse parts on a user turn, correlated by
//     function name rather than call ID alone
func toGeminiContents(messages []Message) []*genai.Content {
	// Remember which function name each call ID belongs to so the matching
	// result part can carry it.
	callName := make(map[string]string)

	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case RoleTool:
			out = append(out, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     callName[m.ToolCallID],
						Response: map[string]any{"output": m.Content},
					},
				}},
			})
		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callName[tc.ID] = tc.Name
				var args map[string]any
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: args,
					},
				})
			}
			out = append(out, &genai.Content{Role: "model", Parts: parts})
		}
	}
	return out
}

// fromGeminiResponse converts a genai response to a Completion, normalizing
// the finish reason.
func fromGeminiResponse(resp *genai.GenerateContentResponse) (*Completion, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("completion response contained no candidates")
	}
	cand := resp.Candidates[0]

	msg := Message{Role: RoleAssistant}
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			fc := part.FunctionCall
			args := "{}"
			if len(fc.Args) > 0 {
				if b, err := json.Marshal(fc.Args); err == nil {
					args = string(b)
				}
			}
			id := fc.ID
			if id == "" {
				// Gemini often omits call IDs; synthesize one so tool
				// results can still be correlated.
				id = fmt.Sprintf("%s_%d", fc.Name, len(msg.ToolCalls))
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: id, Name: fc.Name, Arguments: args})
		case part.Text != "":
			if msg.Content != "" {
				msg.Content += "\n"
			}
			msg.Content += part.Text
		}
	}

	return &Completion{
		Message:      msg,
		FinishReason: normalizeGeminiFinishReason(cand.FinishReason, len(msg.ToolCalls) > 0),
	}, nil
}

// normalizeGeminiFinishReason maps Gemini finish reasons onto the normalized
// vocabulary. Gemini reports STOP even for function-call turns, so the
// presence of calls wins.
func normalizeGeminiFinishReason(reason genai.FinishReason, hasCalls bool) string {
	switch {
	case hasCalls:
		return FinishReasonToolCalls
	case reason == genai.FinishReasonStop || reason == "":
		return FinishReasonStop
	default:
		return string(reason)
	}
}
