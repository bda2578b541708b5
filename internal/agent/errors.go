// SPDX-License-Identifier: AGPL-3.0-only
package agent

import "fmt"

// SchemaTranslationError reports a tool whose advertised input schema could
// not be converted into a completion-API function definition. It is fatal to
// session bootstrap: a partial catalog would silently hide tools.
type SchemaTranslationError struct {
	Tool   string
	Reason string
}

func (e *SchemaTranslationError) Error() string {
	return fmt.Sprintf("translate schema for tool %q: %s", e.Tool, e.Reason)
}

// InvalidMessageError reports a message that would corrupt the conversation
// transcript, such as a tool result that answers no outstanding tool call.
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

// ArgumentParseError reports tool-call arguments that could not be decoded
// as JSON or failed validation against the tool's input schema. It is
// recoverable: the dispatcher feeds it back to the model as an error result
// instead of aborting the query.
type ArgumentParseError struct {
	Tool string
	Err  error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("parse arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ArgumentParseError) Unwrap() error { return e.Err }

// ToolInvocationError reports a tool call that failed at dispatch: the tool
// is unknown or the server returned an error. Like ArgumentParseError it is
// recoverable.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("invoke tool %q: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// UnhandledFinishReasonError reports a completion that stopped for a reason
// the resolution loop has no strategy for, such as "length" or
// "content_filter". It fails the current query; the conversation remains
// usable for the next one.
type UnhandledFinishReasonError struct {
	Reason string
}

func (e *UnhandledFinishReasonError) Error() string {
	return fmt.Sprintf("unhandled finish reason %q", e.Reason)
}

// MaxRoundsExceededError reports a query whose tool-calling loop did not
// converge within the configured number of rounds.
type MaxRoundsExceededError struct {
	Rounds int
}

func (e *MaxRoundsExceededError) Error() string {
	return fmt.Sprintf("tool loop exceeded maximum rounds (%d)", e.Rounds)
}
