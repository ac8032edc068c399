package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/docfields/internal/bootstrap"
	"github.com/a3tai/docfields/internal/config"
	"github.com/a3tai/docfields/internal/logging"
	"github.com/a3tai/docfields/internal/mcp"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const serviceName = "docfields-mcp"

// setupLogging builds the process logger. Stdout carries the MCP protocol in
// stdio mode, so logs always go to stderr and stay quiet unless debug is on.
func setupLogging(cfg *config.Config, stderr io.Writer) *slog.Logger {
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		return logging.Discard()
	}
	return logging.NewJSONLogger(stderr, serviceName, cfg.LogLevel)
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(serviceName, args, stderr)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, stderr)
	logger.Debug("config.loaded", "config", cfg.String())

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}

	server, err := mcp.NewServer(cfg, app.Runner,
		mcp.WithLogger(logger),
		mcp.WithMetricsHandler(app.Metrics.Handler()),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create MCP server: %v\n", err)
		return 1
	}

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Error("mcp.failed", "error", err)
		if cfg.IsServerMode() {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
		}
		return 1
	}
	logger.Info("mcp.stopped")
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "docfields MCP server\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
