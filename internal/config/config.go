// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arva/mcp-chat/internal/errors"
)

// Transport modes for the tool-server connection.
const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
	TransportStdio      = "stdio"
)

// Supported completion providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultPromptName is the tool-server prompt fetched at bootstrap to seed
// the conversation.
const DefaultPromptName = "get_initial_prompts"

// Config holds all application configuration.
type Config struct {
	Client  ClientConfig
	Server  ServerConfig
	AI      AIConfig
	Logging LoggingConfig
	Store   StoreConfig
}

// ClientConfig identifies this client to the tool server.
type ClientConfig struct {
	Name    string
	Version string
}

// ServerConfig describes how to reach the tool server.
type ServerConfig struct {
	// URL is the endpoint for sse and streamable transports.
	URL string
	// Transport is one of sse, streamable, stdio.
	Transport string
	// Command and Args spawn a child tool server for the stdio transport.
	Command string
	Args    []string
	// PromptName is the server prompt used to seed the conversation.
	// Empty disables seeding.
	PromptName string
}

// AIConfig configures the completion provider.
type AIConfig struct {
	Provider        string
	APIKey          string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	BaseURL         string
	Model           string
	MaxTokens       int
	MaxToolRounds   int
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level    string
	FilePath string
}

// StoreConfig configures the exchange history store.
type StoreConfig struct {
	DBPath  string
	Enabled bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Name:    "mcp-chat",
			Version: "0.1.0",
		},
		Server: ServerConfig{
			URL:        "http://localhost:8080/sse",
			Transport:  TransportSSE,
			PromptName: DefaultPromptName,
		},
		AI: AIConfig{
			Provider:      ProviderOpenAI,
			Model:         "gpt-4o-mini",
			MaxTokens:     1000,
			MaxToolRounds: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			DBPath:  defaultDBPath(),
			Enabled: true,
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mcp-chat-history.db"
	}
	return filepath.Join(home, ".mcp-chat", "history.db")
}

// FromEnv overrides cfg fields from environment variables.
func FromEnv(cfg *Config) {
	// MCP_SSE_URL is accepted as a legacy alias for the server URL.
	if url := getEnv("MCP_CHAT_SERVER_URL", os.Getenv("MCP_SSE_URL")); url != "" {
		cfg.Server.URL = url
	}
	if transport := os.Getenv("MCP_CHAT_TRANSPORT"); transport != "" {
		cfg.Server.Transport = transport
	}
	if command := os.Getenv("MCP_CHAT_SERVER_COMMAND"); command != "" {
		parts := strings.Fields(command)
		cfg.Server.Command = parts[0]
		cfg.Server.Args = parts[1:]
		cfg.Server.Transport = TransportStdio
	}
	if prompt, ok := os.LookupEnv("MCP_CHAT_PROMPT"); ok {
		cfg.Server.PromptName = prompt
	}

	if provider := os.Getenv("MCP_CHAT_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("MCP_CHAT_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if baseURL := os.Getenv("MCP_CHAT_BASE_URL"); baseURL != "" {
		cfg.AI.BaseURL = baseURL
	}
	if key := os.Getenv("MCP_CHAT_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.AI.OpenAIAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.AI.AnthropicAPIKey = key
	}
	if key := getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")); key != "" {
		cfg.AI.GeminiAPIKey = key
	}
	if v := os.Getenv("MCP_CHAT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.MaxTokens = n
		}
	}
	if v := os.Getenv("MCP_CHAT_MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.MaxToolRounds = n
		}
	}

	if level := os.Getenv("MCP_CHAT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("MCP_CHAT_LOG_FILE"); file != "" {
		cfg.Logging.FilePath = file
	}

	if path := os.Getenv("MCP_CHAT_HISTORY_DB"); path != "" {
		cfg.Store.DBPath = path
	}
	if v := os.Getenv("MCP_CHAT_NO_HISTORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			cfg.Store.Enabled = false
		}
	}
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// ResolvedAPIKey returns the API key for the configured provider, falling
// back to the generic APIKey when no provider-specific key is set.
func (a AIConfig) ResolvedAPIKey() string {
	var key string
	switch a.Provider {
	case ProviderOpenAI:
		key = a.OpenAIAPIKey
	case ProviderAnthropic:
		key = a.AnthropicAPIKey
	case ProviderGemini:
		key = a.GeminiAPIKey
	}
	if key == "" {
		key = a.APIKey
	}
	return key
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Client.Name == "" {
		return errors.InvalidInput("client name must not be empty")
	}
	if c.Client.Version == "" {
		return errors.InvalidInput("client version must not be empty")
	}

	switch c.Server.Transport {
	case TransportSSE, TransportStreamable:
		if c.Server.URL == "" {
			return errors.InvalidInput(fmt.Sprintf("server URL is required for %s transport", c.Server.Transport))
		}
	case TransportStdio:
		if c.Server.Command == "" {
			return errors.InvalidInput("server command is required for stdio transport")
		}
	default:
		return errors.InvalidInput(fmt.Sprintf("unsupported transport: %s", c.Server.Transport))
	}

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return errors.InvalidInput(fmt.Sprintf("unsupported AI provider: %s", c.AI.Provider))
	}
	if c.AI.ResolvedAPIKey() == "" {
		return errors.InvalidInput(fmt.Sprintf("no API key configured for provider %s", c.AI.Provider))
	}
	if c.AI.Model == "" {
		return errors.InvalidInput("model must not be empty")
	}
	if c.AI.MaxTokens < 1 {
		return errors.InvalidInput("max tokens must be at least 1")
	}
	if c.AI.MaxToolRounds < 1 {
		return errors.InvalidInput("max tool rounds must be at least 1")
	}

	if c.Store.Enabled && c.Store.DBPath == "" {
		return errors.InvalidInput("history DB path must not be empty when history is enabled")
	}

	return nil
}
