// SPDX-License-Identifier: AGPL-3.0-only

// Package demo implements the bundled MCP tool server. It exposes a small
// set of tools plus the seed prompt, so the chat client can be exercised
// end to end without any external server.
package demo

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arva/mcp-chat/internal/config"
	"github.com/arva/mcp-chat/internal/errors"
	"github.com/arva/mcp-chat/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Make os.OpenFile mockable for testing
var osOpenFile = os.OpenFile

// Options configures the demo server.
type Options struct {
	// Name and Version identify the server during the MCP handshake.
	Name    string
	Version string

	// Transport selects how the server is reachable: "sse" or "stdio".
	Transport string

	// Address and Port are used by the sse transport.
	Address string
	Port    int

	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string

	// LogFile, when set, receives all log output.
	LogFile string
}

// DefaultOptions returns the options the mcp-chat-demo binary starts from.
// They line up with the chat client's default server URL.
func DefaultOptions() *Options {
	return &Options{
		Name:      "mcp-chat-demo",
		Version:   "0.1.0",
		Transport: config.TransportSSE,
		Address:   "localhost",
		Port:      8080,
		LogLevel:  "info",
	}
}

// Server serves the demo tool set over stdio or SSE.
type Server struct {
	opts           *Options
	server         *mcp.Server
	httpServer     *http.Server
	cancel         context.CancelFunc
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	logger         *logging.Logger
	shutdownMutex  sync.Mutex
	isShuttingDown bool
}

// New creates a demo server from the given options.
func New(opts *Options) (*Server, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Initialize logger
	var logger *logging.Logger

	if opts.LogFile != "" {
		var err error
		logger, err = logging.FileLogger(opts.LogFile, logging.ParseLevel(opts.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
	} else if opts.Transport == config.TransportStdio {
		// For stdio transport, all logging must go to a file to avoid
		// corrupting the JSON-RPC stream on stdout
		execPath, err := os.Executable()
		if err != nil {
			execPath = opts.Name
		}
		logPath := filepath.Join(filepath.Dir(execPath), fmt.Sprintf("%s.log", opts.Name))

		logFile, err := osOpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(logFile)
			logger = logging.New(logging.Options{
				Output: logFile,
				Level:  logging.ParseLevel(opts.LogLevel),
			})
		} else {
			// Fall back to stderr to avoid corrupting stdout
			log.SetOutput(os.Stderr)
			logger = logging.New(logging.Options{
				Output: os.Stderr,
				Level:  logging.ParseLevel(opts.LogLevel),
			})
		}
	} else {
		logger = logging.New(logging.Options{
			Level: logging.ParseLevel(opts.LogLevel),
		})
	}

	logging.SetDefaultLogger(logger)

	switch opts.Transport {
	case config.TransportStdio:
		logger.Infof("Using stdio transport")
	case config.TransportSSE:
		logger.Infof("Using SSE transport on %s:%d", opts.Address, opts.Port)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported transport: %s", opts.Transport))
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, nil)

	return &Server{
		opts:   opts,
		server: srv,
		stopCh: make(chan struct{}),
		logger: logger,
	}, nil
}

// Start registers the tool set and begins serving. It returns once the
// transport is up; Stop shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.registerTools()
	s.registerPrompt()

	switch s.opts.Transport {
	case config.TransportStdio:
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.closeStopCh()
			if err := s.server.Run(runCtx, &mcp.StdioTransport{}); err != nil {
				s.logger.Errorf("Error running demo server: %v", err)
			}
		}()
	case config.TransportSSE:
		addr := fmt.Sprintf("%s:%d", s.opts.Address, s.opts.Port)
		handler := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
			return s.server
		}, nil)
		s.httpServer = &http.Server{Addr: addr, Handler: handler}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.closeStopCh()
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Errorf("Error running demo server: %v", err)
			}
		}()
	}

	// Listen for context cancellation
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			s.logger.Errorf("Error stopping demo server: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop() error {
	s.shutdownMutex.Lock()
	defer s.shutdownMutex.Unlock()

	// Return early if the server is already being shut down
	if s.isShuttingDown {
		s.logger.Debugf("Stop called but server is already shutting down, ignoring")
		return nil
	}

	s.isShuttingDown = true

	if s.cancel != nil {
		s.cancel()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return errors.Internal(fmt.Errorf("error shutting down demo server: %w", err))
		}
	}

	s.closeStopCh()
	s.wg.Wait()
	return nil
}

// Done returns a channel that is closed once the server has stopped,
// whether through Stop or because the transport exited on its own
// (for example stdin closing in stdio mode).
func (s *Server) Done() <-chan struct{} {
	return s.stopCh
}

// closeStopCh closes stopCh exactly once. Both the transport goroutine
// and Stop may race to signal termination.
func (s *Server) closeStopCh() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
