// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"io"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/arva/mcp-chat/internal/config"
	"github.com/arva/mcp-chat/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Options{Output: io.Discard, Level: logging.Fatal})
}

func resetFlags() {
	*serverURL = ""
	*transport = ""
	*serverCommand = ""
	*promptName = ""
	*aiProvider = ""
	*aiBaseURL = ""
	*aiModel = ""
	*maxRounds = 0
	*logLevel = ""
	*logFile = ""
	*dbPath = ""
	*noHistory = false
	*plain = false
}

func TestApplyCommandLineFlagsToConfig(t *testing.T) {
	defer resetFlags()

	*serverURL = "http://example.com/sse"
	*aiProvider = "Anthropic"
	*aiModel = "claude-sonnet-4-0"
	*maxRounds = 7
	*noHistory = true

	cfg := config.DefaultConfig()
	applyCommandLineFlagsToConfig(cfg)

	if cfg.Server.URL != "http://example.com/sse" {
		t.Errorf("Expected the URL flag to win, got %q", cfg.Server.URL)
	}
	if cfg.AI.Provider != config.ProviderAnthropic {
		t.Errorf("Expected the provider to be lowercased, got %q", cfg.AI.Provider)
	}
	if cfg.AI.Model != "claude-sonnet-4-0" {
		t.Errorf("Expected the model flag to win, got %q", cfg.AI.Model)
	}
	if cfg.AI.MaxToolRounds != 7 {
		t.Errorf("Expected 7 max rounds, got %d", cfg.AI.MaxToolRounds)
	}
	if cfg.Store.Enabled {
		t.Error("Expected -no-history to disable the store")
	}
}

func TestApplyCommandLineFlags_ServerCommandImpliesStdio(t *testing.T) {
	defer resetFlags()

	*serverCommand = "./mcp-chat-demo -transport stdio"

	cfg := config.DefaultConfig()
	applyCommandLineFlagsToConfig(cfg)

	if cfg.Server.Transport != config.TransportStdio {
		t.Errorf("Expected stdio transport, got %q", cfg.Server.Transport)
	}
	if cfg.Server.Command != "./mcp-chat-demo" {
		t.Errorf("Expected the command head, got %q", cfg.Server.Command)
	}
	if !reflect.DeepEqual(cfg.Server.Args, []string{"-transport", "stdio"}) {
		t.Errorf("Expected the command tail as args, got %v", cfg.Server.Args)
	}
}

func TestApplyCommandLineFlags_NoFlagsKeepDefaults(t *testing.T) {
	resetFlags()

	cfg := config.DefaultConfig()
	want := config.DefaultConfig()
	applyCommandLineFlagsToConfig(cfg)

	if cfg.Server.URL != want.Server.URL || cfg.AI.Model != want.AI.Model {
		t.Errorf("Expected defaults to survive, got %+v", cfg)
	}
	if !cfg.Store.Enabled {
		t.Error("Expected history to stay enabled by default")
	}
}

func TestNewLogger_FileFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.FilePath = filepath.Join(t.TempDir(), "missing", "chat.log")

	// The directory does not exist, so this must fall back to stderr
	if logger := newLogger(cfg); logger == nil {
		t.Fatal("Expected a logger even when the file cannot be opened")
	}
}

func TestNewLogger_File(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.FilePath = filepath.Join(t.TempDir(), "chat.log")

	if logger := newLogger(cfg); logger == nil {
		t.Fatal("Expected a file logger")
	}
}

func TestOpenStore_SecondInstanceDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	st, lock := openStore(path, testLogger())
	if st == nil || lock == nil {
		t.Fatal("Expected the first open to own the store")
	}
	t.Cleanup(func() {
		_ = st.Close()
		_ = lock.Release()
	})

	st2, lock2 := openStore(path, testLogger())
	if st2 != nil || lock2 != nil {
		t.Fatal("Expected the second open to run without history")
	}
}

func TestRenderAnswers_PlainFlag(t *testing.T) {
	defer resetFlags()

	*plain = true
	if renderAnswers() {
		t.Error("Expected -plain to disable rendering")
	}
}
