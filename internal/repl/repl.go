// SPDX-License-Identifier: AGPL-3.0-only

// Package repl implements the interactive query loop. It reads queries from
// stdin, hands them to the chat session one at a time and prints the final
// answers, staying alive across failed queries.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arva/mcp-chat/internal/agent"
	"github.com/arva/mcp-chat/internal/logging"
	"github.com/arva/mcp-chat/internal/markdown"
	"github.com/arva/mcp-chat/internal/model"
)

// QuerySession is the slice of the chat session the loop drives.
type QuerySession interface {
	ProcessQuery(ctx context.Context, text string) (string, error)
	Tools() []agent.ToolDescriptor
	Len() int
}

// Options configures a REPL.
type Options struct {
	// Input defaults to os.Stdin, Output to os.Stdout.
	Input  io.Reader
	Output io.Writer

	// Render pushes answers through the markdown renderer. Keep it off
	// when stdout is not a terminal.
	Render bool

	// Width is the wrap width for rendered answers.
	Width int

	Logger *logging.Logger
}

// REPL drives one chat session interactively.
type REPL struct {
	session QuerySession
	store   model.ExchangeStore
	in      io.Reader
	out     io.Writer
	render  bool
	width   int
	logger  *logging.Logger
}

// New creates a REPL over the given session. store may be nil, which
// disables the /history command.
func New(session QuerySession, store model.ExchangeStore, opts Options) *REPL {
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	width := opts.Width
	if width <= 0 {
		width = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &REPL{
		session: session,
		store:   store,
		in:      in,
		out:     out,
		render:  opts.Render,
		width:   width,
		logger:  logger,
	}
}

// Run reads queries until quit, EOF or context cancellation. A failed query
// is reported and the loop keeps prompting; only input errors end the loop
// with an error.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "MCP Client Started!")
	fmt.Fprintln(r.out, "Type your queries or 'quit' to exit.")

	scanner := bufio.NewScanner(r.in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(r.out, "\nQuery: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				r.logger.Errorf("reading query: %v", err)
				return fmt.Errorf("read query: %w", err)
			}
			r.logger.Debugf("stdin closed, leaving the loop")
			fmt.Fprintln(r.out)
			return nil
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "quit", "exit":
			return nil
		}
		if strings.HasPrefix(query, "/") {
			r.runCommand(query)
			continue
		}

		answer, err := r.session.ProcessQuery(ctx, query)
		if err != nil {
			fmt.Fprintf(r.out, "\nError: %v\n", err)
			continue
		}
		r.printAnswer(answer)
	}
}

func (r *REPL) printAnswer(answer string) {
	text := answer
	if r.render {
		text = markdown.Render(answer, r.width)
	}
	fmt.Fprintf(r.out, "\nAssistant: %s\n", strings.TrimRight(text, "\n"))
}

// runCommand handles the local slash commands that never reach the model.
func (r *REPL) runCommand(query string) {
	fields := strings.Fields(query)
	switch fields[0] {
	case "/tools":
		r.printTools()
	case "/history":
		limit := 5
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(r.out, "\nUsage: /history [n]\n")
				return
			}
			limit = v
		}
		r.printHistory(limit)
	case "/status":
		fmt.Fprintf(r.out, "\n%d messages in this conversation, %d tools available.\n",
			r.session.Len(), len(r.session.Tools()))
	default:
		fmt.Fprintf(r.out, "\nUnknown command %s. Available: /tools, /history [n], /status\n", fields[0])
	}
}

func (r *REPL) printTools() {
	tools := r.session.Tools()
	if len(tools) == 0 {
		fmt.Fprintf(r.out, "\nNo tools available.\n")
		return
	}
	fmt.Fprintln(r.out)
	for _, tool := range tools {
		if tool.Description != "" {
			fmt.Fprintf(r.out, "  %s - %s\n", tool.Name, oneLine(tool.Description, 80))
		} else {
			fmt.Fprintf(r.out, "  %s\n", tool.Name)
		}
	}
}

func (r *REPL) printHistory(limit int) {
	if r.store == nil {
		fmt.Fprintf(r.out, "\nHistory is disabled.\n")
		return
	}
	exchanges, err := r.store.RecentExchanges(limit)
	if err != nil {
		fmt.Fprintf(r.out, "\nError: %v\n", err)
		return
	}
	if len(exchanges) == 0 {
		fmt.Fprintf(r.out, "\nNo history yet.\n")
		return
	}
	fmt.Fprintln(r.out)
	for _, ex := range exchanges {
		fmt.Fprintf(r.out, "  %s  %s\n", ex.StartTime.Format("2006-01-02 15:04:05"), oneLine(ex.Query, 60))
		if ex.Error != "" {
			fmt.Fprintf(r.out, "      error: %s\n", oneLine(ex.Error, 80))
		} else {
			fmt.Fprintf(r.out, "      %s\n", oneLine(ex.Answer, 80))
		}
	}
}

// oneLine flattens s to a single line and truncates it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
