// Package server hosts the ecoroute MCP server and its HTTP surface:
// streamable MCP, the REST API used by the browser form and the health
// endpoints.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "ecoroute"

// Server wraps the MCP server and runs it over stdio.
type Server struct {
	srv      *mcpserver.MCPServer
	registry *tools.Registry
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{} // nil when idle or already stopped
	doneCh  chan struct{} // closed when the last stdio loop exits
}

// ErrAlreadyRunning is returned when the stdio loop is started twice
// concurrently.
var ErrAlreadyRunning = errors.New("server: stdio transport already running")

// NewServer creates the MCP server with every tool, resource and prompt
// registered.
func NewServer(deps tools.Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Planner == nil || deps.Detector == nil || deps.Sessions == nil || deps.Store == nil {
		return nil, errors.New("server: planner, detector, sessions and store are required")
	}
	logger.Info("initializing MCP server", "name", ServerName, "version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	registry := tools.NewRegistry(deps, logger)
	registry.RegisterAll(srv)

	srv.AddPrompt(
		mcp.NewPrompt(tools.TripPlanningPromptName,
			mcp.WithPromptDescription("How to plan a trip and read its emissions and reward points"),
		),
		func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return mcp.NewGetPromptResult(
				"Trip planning instructions",
				[]mcp.PromptMessage{
					mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(tools.TripPlanningPrompt())),
				},
			), nil
		},
	)

	return &Server{
		srv:      srv,
		registry: registry,
		logger:   logger,
		in:       os.Stdin,
		out:      os.Stdout,
	}, nil
}

// RunWithContext serves MCP over stdio until ctx is cancelled, stdin closes
// or Shutdown is called. It may be called again once it has returned.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer close(doneCh)
		stdio := mcpserver.NewStdioServer(s.srv)
		stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
		errCh <- stdio.Listen(ctx, s.in, s.out)
	}()

	var err error
	select {
	case <-stopCh:
		cancel()
		err = <-errCh
	case err = <-errCh:
	}

	s.mu.Lock()
	s.running = false
	s.stopCh = nil
	s.mu.Unlock()

	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		s.logger.Error("stdio server error", "error", err)
		return err
	}
	return nil
}

// Shutdown asks a running stdio loop to return. It does not block and is a
// no-op when nothing is running.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

// WaitForShutdown blocks until the most recent stdio loop has exited. It
// returns at once if none was started.
func (s *Server) WaitForShutdown() {
	s.mu.Lock()
	done := s.doneCh
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// GetMCPServer returns the underlying MCP server for the HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// ToolNames lists the registered tools.
func (s *Server) ToolNames() []string {
	return s.registry.GetToolNames()
}
