// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"context"
	"time"

	"github.com/arva/mcp-chat/internal/config"
	"github.com/arva/mcp-chat/internal/logging"
	"github.com/arva/mcp-chat/internal/model"
)

// Session owns everything one chat session needs: the translated tool
// catalog, the conversation transcript, the dispatcher and the resolver.
// It processes one query at a time; the conversation carries over between
// queries and is discarded with the session.
type Session struct {
	descriptors []ToolDescriptor
	conv        *Conversation
	resolver    *Resolver
	store       model.ExchangeStore
	logger      *logging.Logger
}

// NewSession builds a session from a connected provider and tool server.
// The catalog is translated once here and never refreshed; a descriptor that
// cannot be translated fails the whole bootstrap. seed holds the tool
// server's initial prompt messages and may be empty. store may be nil to
// disable exchange history.
func NewSession(cfg *config.Config, provider ChatProvider, invoker ToolInvoker, descriptors []ToolDescriptor, seed []Message, store model.ExchangeStore, logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	catalog, err := BuildCatalog(descriptors)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		logger.Warnf("no tools available from server; queries run as plain chat")
	}

	conv := NewConversation()
	if len(seed) > 0 {
		if err := conv.Seed(seed); err != nil {
			return nil, err
		}
	}

	dispatcher := NewDispatcher(invoker, descriptors, logger)
	resolver := NewResolver(provider, dispatcher, catalog, cfg.AI.Model, cfg.AI.MaxToolRounds, logger)

	logger.Infof("session ready: provider=%s model=%s tools=%d", provider.Name(), cfg.AI.Model, len(catalog))
	return &Session{
		descriptors: descriptors,
		conv:        conv,
		resolver:    resolver,
		store:       store,
		logger:      logger,
	}, nil
}

// ProcessQuery appends the user's text to the conversation, resolves it
// through the tool-calling loop and returns the model's final answer. Each
// call is also recorded as an Exchange in the history store when one is
// configured. Errors fail this query only; the conversation stays valid for
// the next call.
func (s *Session) ProcessQuery(ctx context.Context, text string) (string, error) {
	ex := &model.Exchange{
		Query:     text,
		StartTime: time.Now(),
	}

	if err := s.conv.Append(Message{Role: RoleUser, Content: text}); err != nil {
		return "", err
	}

	resolution, err := s.resolver.Resolve(ctx, s.conv)

	ex.EndTime = time.Now()
	ex.Duration = ex.EndTime.Sub(ex.StartTime).String()
	ex.Rounds = resolution.Rounds
	ex.ToolCalls = resolution.ToolCalls
	if err != nil {
		ex.Error = err.Error()
		model.PersistAndLogExchange(s.store, ex, s.logger)
		s.logger.Errorf("query failed after %d rounds: %v", resolution.Rounds, err)
		return "", err
	}

	ex.Answer = resolution.Answer
	model.PersistAndLogExchange(s.store, ex, s.logger)
	s.logger.Infof("query resolved in %d rounds with %d tool calls", resolution.Rounds, resolution.ToolCalls)
	return resolution.Answer, nil
}

// Tools returns the descriptors of the session's tool catalog.
func (s *Session) Tools() []ToolDescriptor {
	return s.descriptors
}

// Len reports the current conversation length. Exposed for the REPL's
// status output.
func (s *Session) Len() int {
	return s.conv.Len()
}
