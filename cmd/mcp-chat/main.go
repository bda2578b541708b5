// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/arva/mcp-chat/internal/agent"
	"github.com/arva/mcp-chat/internal/config"
	"github.com/arva/mcp-chat/internal/envfile"
	"github.com/arva/mcp-chat/internal/logging"
	"github.com/arva/mcp-chat/internal/model"
	"github.com/arva/mcp-chat/internal/repl"
	"github.com/arva/mcp-chat/internal/singleton"
	"github.com/arva/mcp-chat/internal/store"
	"github.com/arva/mcp-chat/internal/toolserver"
)

var (
	serverURL     = flag.String("server-url", "", "Tool server URL for the sse and streamable transports")
	transport     = flag.String("transport", "", "Transport to the tool server: sse, streamable or stdio")
	serverCommand = flag.String("server-command", "", "Command that starts a stdio tool server (implies -transport stdio)")
	promptName    = flag.String("prompt", "", "Server prompt used to seed the conversation (default: get_initial_prompts)")
	aiProvider    = flag.String("ai-provider", "", "AI provider: openai, anthropic or gemini (default: openai)")
	aiBaseURL     = flag.String("ai-base-url", "", "Custom base URL for OpenAI-compatible endpoints (e.g. Ollama, vLLM, Groq, LiteLLM)")
	aiModel       = flag.String("ai-model", "", "Model to chat with (default: gpt-4o-mini)")
	maxRounds     = flag.Int("max-tool-rounds", 0, "Maximum tool-calling rounds per query (default: 20)")
	logLevel      = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	logFile       = flag.String("log-file", "", "Log file path (default: stderr)")
	dbPath        = flag.String("db-path", "", "Path to the SQLite exchange history (default: ~/.mcp-chat/history.db)")
	noHistory     = flag.Bool("no-history", false, "Disable the exchange history store")
	plain         = flag.Bool("plain", false, "Print answers as plain text instead of rendered markdown")
	version       = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	// Load .env before reading the environment so file values are visible,
	// without overriding variables that are already set
	if res := envfile.Load(); res.Err != nil {
		log.Printf("Warning: could not load %s: %v", res.Path, res.Err)
	}

	cfg := loadConfig()

	// Show version and exit if requested
	if *version {
		log.Printf("%s version %s", cfg.Client.Name, cfg.Client.Version)
		os.Exit(0)
	}

	// Create a context that will be cancelled on interrupt signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := createApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start %s: %v", cfg.Client.Name, err)
	}
	defer app.Close()

	runUntilDone(ctx, cancel, app)
}

// loadConfig loads configuration from environment and command line flags
func loadConfig() *config.Config {
	// Start with defaults
	cfg := config.DefaultConfig()

	// Override with environment variables
	config.FromEnv(cfg)

	// Override with command-line flags
	applyCommandLineFlagsToConfig(cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// applyCommandLineFlagsToConfig applies command line flags to the configuration
func applyCommandLineFlagsToConfig(cfg *config.Config) {
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *transport != "" {
		cfg.Server.Transport = *transport
	}
	if *serverCommand != "" {
		parts := strings.Fields(*serverCommand)
		cfg.Server.Command = parts[0]
		cfg.Server.Args = parts[1:]
		cfg.Server.Transport = config.TransportStdio
	}
	if *promptName != "" {
		cfg.Server.PromptName = *promptName
	}
	if *aiProvider != "" {
		cfg.AI.Provider = strings.ToLower(*aiProvider)
	}
	if *aiBaseURL != "" {
		cfg.AI.BaseURL = *aiBaseURL
	}
	if *aiModel != "" {
		cfg.AI.Model = *aiModel
	}
	if *maxRounds > 0 {
		cfg.AI.MaxToolRounds = *maxRounds
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.FilePath = *logFile
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}
	if *noHistory {
		cfg.Store.Enabled = false
	}
}

// Application holds the connected pieces of one chat run
type Application struct {
	cfg     *config.Config
	client  *toolserver.Client
	session *agent.Session
	store   model.ExchangeStore
	lock    *singleton.Lock
	logger  *logging.Logger
}

// createApp connects the provider and the tool server and builds the session
func createApp(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger := newLogger(cfg)
	logging.SetDefaultLogger(logger)

	app := &Application{cfg: cfg, logger: logger}

	// The history store is an extra, never a reason to refuse to chat:
	// any failure here downgrades to running without history
	if cfg.Store.Enabled {
		app.store, app.lock = openStore(cfg.Store.DBPath, logger)
	}

	provider, err := agent.NewChatProvider(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	client, err := toolserver.Connect(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.client = client

	descriptors, err := client.ListTools(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var seed []agent.Message
	if cfg.Server.PromptName != "" {
		seed, err = client.InitialPrompt(ctx, cfg.Server.PromptName)
		if err != nil {
			logger.Warnf("Starting without an initial prompt: %v", err)
			seed = nil
		}
	}

	session, err := agent.NewSession(cfg, provider, client, descriptors, seed, app.store, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.session = session

	return app, nil
}

// openStore acquires the single-instance lock and opens the history DB.
// Both results are nil when another instance owns the DB or opening fails.
func openStore(dbPath string, logger *logging.Logger) (model.ExchangeStore, *singleton.Lock) {
	lock, acquired, err := singleton.TryAcquire(dbPath)
	if err != nil {
		logger.Warnf("History disabled: %v", err)
		return nil, nil
	}
	if !acquired {
		logger.Warnf("History disabled: another instance owns %s", dbPath)
		return nil, nil
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warnf("History disabled: %v", err)
		if rerr := lock.Release(); rerr != nil {
			logger.Warnf("Error releasing history lock: %v", rerr)
		}
		return nil, nil
	}
	return st, lock
}

// newLogger builds the client logger. Logs default to stderr so they never
// mix with the interactive output on stdout.
func newLogger(cfg *config.Config) *logging.Logger {
	if cfg.Logging.FilePath != "" {
		logger, err := logging.FileLogger(cfg.Logging.FilePath, logging.ParseLevel(cfg.Logging.Level))
		if err == nil {
			return logger
		}
		log.Printf("Warning: could not open log file %s: %v", cfg.Logging.FilePath, err)
	}
	return logging.New(logging.Options{Level: logging.ParseLevel(cfg.Logging.Level)})
}

// Close releases the tool-server session, the history store and the lock
func (a *Application) Close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warnf("Error closing tool server session: %v", err)
		}
		a.client = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warnf("Error closing history store: %v", err)
		}
		a.store = nil
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			a.logger.Warnf("Error releasing history lock: %v", err)
		}
		a.lock = nil
	}
}

// runUntilDone drives the interactive loop until quit, EOF or a signal
func runUntilDone(ctx context.Context, cancel context.CancelFunc, app *Application) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("\nConnected to server with tools: %s\n", strings.Join(toolNames(app.session), ", "))

	loop := repl.New(app.session, app.store, repl.Options{
		Render: renderAnswers(),
		Logger: app.logger,
	})

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Errorf("Interactive loop failed: %v", err)
		}
	case <-signalCh:
		app.logger.Infof("Received termination signal, shutting down...")
		cancel()
	}
}

func toolNames(session *agent.Session) []string {
	descriptors := session.Tools()
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

// renderAnswers reports whether answers should go through the markdown
// renderer, which emits ANSI escapes
func renderAnswers() bool {
	if *plain {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && (fi.Mode()&os.ModeCharDevice) != 0
}
