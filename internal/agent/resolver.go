// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/arva/mcp-chat/internal/logging"
)

// Resolver drives the tool-calling loop for a single query: request a
// completion, dispatch any tool calls, fold the results back into the
// conversation, and repeat until the model stops or the round cap is hit.
type Resolver struct {
	provider  ChatProvider
	dispatch  *Dispatcher
	tools     []ToolDefinition
	model     string
	maxRounds int
	logger    *logging.Logger
}

// Resolution summarizes one resolved query.
type Resolution struct {
	Answer    string
	Rounds    int
	ToolCalls int
}

// NewResolver creates a resolver. maxRounds caps the number of tool rounds
// per query; values below 1 are raised to 1.
func NewResolver(provider ChatProvider, dispatch *Dispatcher, tools []ToolDefinition, model string, maxRounds int, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	if maxRounds < 1 {
		maxRounds = 1
	}
	return &Resolver{
		provider:  provider,
		dispatch:  dispatch,
		tools:     tools,
		model:     model,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// Resolve runs the completion loop against conv until the model produces a
// final answer. The conversation must already end with the pending user
// message. Partial metrics are reported even when an error is returned.
//
// A completion with tool calls starts a tool round: the assistant message is
// appended, every call is dispatched (concurrently when there are several),
// and the results are appended in the order the model emitted the calls. A
// dispatch failure never aborts the round; it is fed back to the model as an
// error result. A "stop" completion ends the loop with the final answer. Any
// other finish reason fails the query with UnhandledFinishReasonError, and
// running out of rounds fails it with MaxRoundsExceededError.
func (r *Resolver) Resolve(ctx context.Context, conv *Conversation) (Resolution, error) {
	var res Resolution

	for round := 0; round < r.maxRounds; round++ {
		completion, err := r.provider.CreateCompletion(ctx, r.model, conv.Snapshot(), r.tools)
		if err != nil {
			return res, fmt.Errorf("completion request: %w", err)
		}

		msg := completion.Message
		if len(msg.ToolCalls) > 0 {
			res.Rounds++
			r.logger.Debugf("round %d: dispatching %d tool calls", res.Rounds, len(msg.ToolCalls))
			if err := conv.Append(msg); err != nil {
				return res, err
			}
			for _, tr := range r.dispatchAll(ctx, msg.ToolCalls) {
				res.ToolCalls++
				result := Message{Role: RoleTool, Content: tr.Content, ToolCallID: tr.ToolCallID}
				if err := conv.Append(result); err != nil {
					return res, err
				}
			}
			continue
		}

		switch completion.FinishReason {
		case FinishReasonStop, "":
			if err := conv.Append(msg); err != nil {
				return res, err
			}
			res.Answer = msg.Content
			return res, nil
		default:
			// Includes "tool_calls" with an empty call list, which would
			// otherwise loop forever.
			return res, &UnhandledFinishReasonError{Reason: completion.FinishReason}
		}
	}

	return res, &MaxRoundsExceededError{Rounds: r.maxRounds}
}

// dispatchAll fans the calls of one assistant turn out to the dispatcher and
// collects the results indexed by emission position, so the reduce order is
// deterministic no matter which call finishes first.
func (r *Resolver) dispatchAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := r.dispatch.Dispatch(ctx, call)
			if err != nil {
				r.logger.Warnf("tool call %s failed: %v", call.Name, err)
			}
			results[i] = tr
		}()
	}
	wg.Wait()
	return results
}
