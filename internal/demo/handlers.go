// SPDX-License-Identifier: AGPL-3.0-only
package demo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arva/mcp-chat/internal/errors"
	"github.com/arva/mcp-chat/internal/utils"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Seed conversation returned by the get_initial_prompts prompt.
const (
	assistantSeed = "You are a helpful tool-using assistant. Prefer calling the available tools over guessing, and keep answers short."
	userSeed      = "Greet the user and mention two things you can do with your tools."
)

// glob_files output is bounded so a broad pattern cannot flood the model
const maxGlobMatches = 100

// extractParams decodes request arguments into params
func extractParams(request *mcp.CallToolRequest, params interface{}) error {
	if err := utils.JsonUnmarshal(request.Params.Arguments, params); err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid parameters: %v", err))
	}
	return nil
}

// textResponse wraps plain text in a tool result. Demo tools answer in
// prose rather than JSON envelopes because the text is fed straight back
// to the language model.
func textResponse(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}, nil
}

// createErrorResponse creates an error response
func createErrorResponse(err error) (*mcp.CallToolResult, error) {
	// Always return the original error as the second return value
	// This ensures MCP protocol error handling works correctly
	return nil, err
}

// handleAdd adds two numbers
func (s *Server) handleAdd(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params AddParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling add request: %v + %v", params.A, params.B)

	sum := params.A + params.B
	return textResponse("%s", strconv.FormatFloat(sum, 'f', -1, 64))
}

// handleCurrentTime reports the current time in the requested zone
func (s *Server) handleCurrentTime(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params TimeParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	tz := params.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return createErrorResponse(errors.InvalidInput(fmt.Sprintf("unknown time zone %q", tz)))
	}

	return textResponse("%s", time.Now().In(loc).Format(time.RFC1123))
}

// handleReverseText reverses the given text rune by rune
func (s *Server) handleReverseText(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ReverseParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}
	if params.Text == "" {
		return createErrorResponse(errors.InvalidInput("text is required"))
	}

	runes := []rune(params.Text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return textResponse("%s", string(runes))
}

// handleGlobFiles lists files matching a glob pattern
func (s *Server) handleGlobFiles(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GlobParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}
	if params.Pattern == "" {
		return createErrorResponse(errors.InvalidInput("pattern is required"))
	}
	if !doublestar.ValidatePattern(params.Pattern) {
		return createErrorResponse(errors.InvalidInput(fmt.Sprintf("invalid pattern %q", params.Pattern)))
	}

	root := params.Root
	if root == "" {
		root = "."
	}

	s.logger.Debugf("Handling glob_files request for %s under %s", params.Pattern, root)

	var matches []string
	err := doublestar.GlobWalk(os.DirFS(root), params.Pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return createErrorResponse(errors.Internal(fmt.Errorf("glob %s: %w", params.Pattern, err)))
	}

	if len(matches) == 0 {
		return textResponse("no files match %q under %s", params.Pattern, root)
	}

	sort.Strings(matches)
	if len(matches) > maxGlobMatches {
		extra := len(matches) - maxGlobMatches
		matches = matches[:maxGlobMatches]
		return textResponse("%s\n... and %d more", strings.Join(matches, "\n"), extra)
	}
	return textResponse("%s", strings.Join(matches, "\n"))
}

// handleErrorProbe fails on purpose
func (s *Server) handleErrorProbe(_ context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ErrorProbeParams

	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	msg := params.Message
	if msg == "" {
		msg = "deliberate failure"
	}

	s.logger.Debugf("Handling error_probe request: %s", msg)

	return createErrorResponse(errors.Internal(fmt.Errorf("%s", msg)))
}

// handleInitialPrompts returns the seed conversation for new chat sessions
func (s *Server) handleInitialPrompts(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Seed messages for a new chat session",
		Messages: []*mcp.PromptMessage{
			{Role: "assistant", Content: &mcp.TextContent{Text: assistantSeed}},
			{Role: "user", Content: &mcp.TextContent{Text: userSeed}},
		},
	}, nil
}
