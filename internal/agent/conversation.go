// SPDX-License-Identifier: AGPL-3.0-only
package agent

import "fmt"

// Conversation is the append-only message transcript for one session. It is
// the single source of truth sent to the provider on every completion
// request. Exactly one goroutine mutates it (the resolution loop), so it
// carries no locking.
type Conversation struct {
	messages []Message
	// outstanding holds the tool-call IDs of the last assistant turn that
	// have not been answered yet.
	outstanding map[string]bool
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{outstanding: make(map[string]bool)}
}

// Seed installs bootstrap prompt messages before any turns have happened.
// Only system and user roles are accepted; seeding a non-empty conversation
// is an error.
func (c *Conversation) Seed(messages []Message) error {
	if len(c.messages) > 0 {
		return &InvalidMessageError{Reason: "seed on a non-empty conversation"}
	}
	for _, m := range messages {
		if m.Role != RoleSystem && m.Role != RoleUser {
			return &InvalidMessageError{Reason: fmt.Sprintf("seed message with role %q, want system or user", m.Role)}
		}
	}
	c.messages = append(c.messages, messages...)
	return nil
}

// Append adds a message to the transcript, preserving insertion order.
//
// Tool messages must answer an outstanding tool call of the most recent
// assistant turn: a missing or unknown ToolCallID, or a second answer for an
// already-answered ID, is rejected with InvalidMessageError. An assistant
// message resets the outstanding set to its own tool calls.
func (c *Conversation) Append(m Message) error {
	switch m.Role {
	case RoleSystem, RoleUser:
		// Always valid.
	case RoleAssistant:
		c.outstanding = make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			c.outstanding[tc.ID] = true
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return &InvalidMessageError{Reason: "tool message missing tool_call_id"}
		}
		if len(c.outstanding) == 0 {
			return &InvalidMessageError{Reason: fmt.Sprintf("tool result %q answers no outstanding tool call", m.ToolCallID)}
		}
		if !c.outstanding[m.ToolCallID] {
			return &InvalidMessageError{Reason: fmt.Sprintf("tool result %q does not match an outstanding tool call", m.ToolCallID)}
		}
		delete(c.outstanding, m.ToolCallID)
	default:
		return &InvalidMessageError{Reason: fmt.Sprintf("unknown role %q", m.Role)}
	}
	c.messages = append(c.messages, m)
	return nil
}

// Snapshot returns a copy of the full ordered transcript. Mutating the
// returned slice or its tool-call lists does not affect the conversation.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	for i := range out {
		if len(out[i].ToolCalls) > 0 {
			calls := make([]ToolCall, len(out[i].ToolCalls))
			copy(calls, out[i].ToolCalls)
			out[i].ToolCalls = calls
		}
	}
	return out
}

// Len reports the number of messages in the transcript.
func (c *Conversation) Len() int {
	return len(c.messages)
}
