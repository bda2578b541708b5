// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arva/mcp-chat/internal/demo"
	"github.com/arva/mcp-chat/internal/logging"
)

var (
	address   = flag.String("address", "", "The address to bind the SSE server to")
	port      = flag.Int("port", 0, "The port to bind the SSE server to")
	transport = flag.String("transport", "", "Transport mode: sse or stdio")
	logLevel  = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	logFile   = flag.String("log-file", "", "Log file path")
	version   = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	opts := loadOptions()

	// Show version and exit if requested
	if *version {
		log.Printf("%s version %s", opts.Name, opts.Version)
		os.Exit(0)
	}

	// Create a context that will be cancelled on interrupt signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := demo.New(opts)
	if err != nil {
		log.Fatalf("Failed to create demo server: %v", err)
	}

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start demo server: %v", err)
	}

	waitForShutdown(cancel, srv)
}

// loadOptions applies command line flags on top of the defaults
func loadOptions() *demo.Options {
	opts := demo.DefaultOptions()

	if *address != "" {
		opts.Address = *address
	}
	if *port != 0 {
		opts.Port = *port
	}
	if *transport != "" {
		opts.Transport = *transport
	}
	if *logLevel != "" {
		opts.LogLevel = *logLevel
	}
	if *logFile != "" {
		opts.LogFile = *logFile
	}

	return opts
}

// waitForShutdown waits for termination signals or transport exit and
// performs cleanup
func waitForShutdown(cancel context.CancelFunc, srv *demo.Server) {
	logger := logging.GetDefaultLogger()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalCh:
		logger.Infof("Received termination signal, shutting down...")
	case <-srv.Done():
		logger.Infof("Server transport exited, shutting down...")
	}

	// Cancel the context to initiate shutdown
	cancel()

	// Stop the server with a timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := srv.Stop(); err != nil {
			logger.Errorf("Error during shutdown: %v", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logger.Infof("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		logger.Warnf("Shutdown timed out")
	}
}
