package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/a3tai/docfields/internal/batch"
	"github.com/a3tai/docfields/internal/bootstrap"
	"github.com/a3tai/docfields/internal/config"
	"github.com/a3tai/docfields/internal/export"
	"github.com/a3tai/docfields/internal/logging"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const serviceName = "docfields"

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUnreadable = 2 // at least one input could not be read
)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(serviceName, args, stderr)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return exitOK
	case errors.Is(err, pflag.ErrHelp):
		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}
	if len(cfg.Inputs) == 0 {
		fmt.Fprintf(stderr, "No input documents given. Run %s --help for usage.\n", serviceName)
		return exitFailure
	}

	logger := logging.NewJSONLogger(stderr, serviceName, cfg.LogLevel)
	logger.Debug("config.loaded", "config", cfg.String())

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return exitFailure
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, app.Metrics.Handler(), logger)
		defer stopMetrics()
	}

	start := time.Now()
	outcomes, err := app.Runner.Run(ctx, cfg.Inputs)
	if err != nil {
		logger.Error("batch.aborted", "error", err)
		return exitFailure
	}

	if err := writeOutcomes(cfg, stdout, outcomes); err != nil {
		fmt.Fprintf(stderr, "Failed to write results: %v\n", err)
		return exitFailure
	}

	var matched, unreadable int
	for _, out := range outcomes {
		switch {
		case out.Result == nil:
			unreadable++
		case out.Matched():
			matched++
		}
	}
	logger.Info("batch.done",
		"documents", len(outcomes),
		"matched", matched,
		"unreadable", unreadable,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if unreadable > 0 {
		return exitUnreadable
	}
	return exitOK
}

// writeOutcomes writes to the configured output file, or stdout when none
// is set.
func writeOutcomes(cfg *config.Config, stdout io.Writer, outcomes []batch.Outcome) (err error) {
	w := stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if cfg.Format == config.FormatXLSX {
		return export.WriteXLSX(w, outcomes)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

// serveMetrics exposes /metrics until the returned stop function is called.
func serveMetrics(addr string, h http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics.failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics.start", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "docfields\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
