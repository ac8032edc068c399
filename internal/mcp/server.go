package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/docfields/internal/batch"
	"github.com/a3tai/docfields/internal/config"
	"github.com/a3tai/docfields/internal/descriptions"
	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. In stdio mode it must not write to
// stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler mounts h at /metrics in server mode.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithStdio replaces the stdin and stdout used in stdio mode.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(s *Server) { s.in, s.out = in, out }
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	runner    *batch.Runner
	mcpServer *server.MCPServer
	logger    *slog.Logger
	metrics   http.Handler
	in        io.Reader
	out       io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, runner *batch.Runner, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		runner:    runner,
		mcpServer: mcpServer,
		logger:    logging.Discard(),
		in:        os.Stdin,
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractFieldsTool := mcp.NewTool(
		descriptions.ExtractFieldsTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ExtractFieldsTool)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to a .pdf file or a .json document"),
		),
	)
	s.mcpServer.AddTool(extractFieldsTool, s.handleExtractFields)

	extractDocumentTool := mcp.NewTool(
		descriptions.ExtractDocumentTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ExtractDocumentTool)),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description(`JSON document: {"raw_text": "...", "spans": [...]}`),
		),
	)
	s.mcpServer.AddTool(extractDocumentTool, s.handleExtractDocument)

	listTemplatesTool := mcp.NewTool(
		descriptions.ListTemplatesTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ListTemplatesTool)),
	)
	s.mcpServer.AddTool(listTemplatesTool, s.handleListTemplates)
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcomes, err := s.runner.Run(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	return outcomeResult(outcomes[0])
}

func (s *Server) handleExtractDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := document.Decode(bytes.NewReader([]byte(raw)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcomeResult(s.runner.Extract(ctx, "inline", doc))
}

// outcomeResult reports documents that could not be read as tool errors.
// A document that matched no template still returns its result.
func outcomeResult(out batch.Outcome) (*mcp.CallToolResult, error) {
	if out.Result == nil {
		return mcp.NewToolResultError(out.Error), nil
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type templateField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type templateInfo struct {
	Issuer   string          `json:"issuer"`
	Priority int             `json:"priority"`
	Keywords []string        `json:"keywords"`
	Fields   []templateField `json:"fields"`
	Source   string          `json:"source,omitempty"`
}

func (s *Server) handleListTemplates(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tpls := s.runner.Registry().Templates()
	infos := make([]templateInfo, 0, len(tpls))
	for _, t := range tpls {
		info := templateInfo{
			Issuer:   t.Issuer,
			Priority: t.Priority,
			Keywords: t.Keywords,
			Source:   t.Source,
		}
		for _, f := range t.Fields {
			info.Fields = append(info.Fields, templateField{
				Name:     f.Name,
				Type:     f.Type.String(),
				Required: f.Required,
			})
		}
		infos = append(infos, info)
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode templates: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Run starts the MCP server in the configured mode and returns when ctx is
// cancelled or the transport ends.
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over the configured stdin and stdout.
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("mcp.start", "mode", config.ModeStdio, "templates", s.runner.Registry().Len())

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(io.Discard, "", 0))
	if err := stdio.Listen(ctx, s.in, s.out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE on the configured address.
func (s *Server) runServerMode(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address(), err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	addr := ln.Addr().String()
	srv := &http.Server{ReadHeaderTimeout: 10 * time.Second}
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+addr),
		server.WithHTTPServer(srv),
	)

	mux := http.NewServeMux()
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.Handle("/", sse)
	srv.Handler = mux

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("mcp.start", "mode", config.ModeServer, "addr", addr, "templates", s.runner.Registry().Len())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Closes open SSE sessions before shutting the listener down.
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("mcp.stop", "addr", addr)
	return nil
}
