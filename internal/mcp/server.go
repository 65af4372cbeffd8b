// Package mcp exposes grimoire matching and voice readiness as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rbright/suzerain/internal/doctor"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/parser"
	"github.com/rbright/suzerain/internal/route"
	"github.com/rbright/suzerain/internal/version"
)

// expansionPreview caps expansions echoed by the match tools.
const expansionPreview = 200

// Config holds what the tools read from.
type Config struct {
	Store      *grimoire.Store
	Dispatcher *parser.Dispatcher
	// Router classifies matches for analyze_command. Defaults to route.New().
	Router *route.Router
	// Status runs the readiness checks behind voice_status.
	Status func(context.Context) doctor.Report
	// GrimoireDirs are scanned for *.yaml files by list_grimoires.
	GrimoireDirs []string
	Logger       *slog.Logger
}

// Server wraps the MCP SDK server with the suzerain tools.
type Server struct {
	mcpServer *mcpsdk.Server
	store     *grimoire.Store
	parser    *parser.Dispatcher
	router    *route.Router
	status    func(context.Context) doctor.Report
	dirs      []string
	logger    *slog.Logger
}

// New builds a server and registers every tool.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Dispatcher == nil {
		return nil, errors.New("mcp: store and dispatcher are required")
	}
	s := &Server{
		store:  cfg.Store,
		parser: cfg.Dispatcher,
		router: cfg.Router,
		status: cfg.Status,
		dirs:   cfg.GrimoireDirs,
		logger: cfg.Logger,
	}
	if s.router == nil {
		s.router = route.New()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "suzerain",
			Version: version.Get().Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server start", "source", s.source())
	err := s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("mcp server stop")
	return err
}

func (s *Server) source() string {
	if snap := s.store.Snapshot(); snap != nil {
		return snap.Source
	}
	return ""
}

// registerTools adds all suzerain tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "voice_status",
		Description: "Check voice pipeline readiness: config, grimoire, assistant binary, audio input, and provider keys.",
	}, s.handleVoiceStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "match_cipher",
		Description: "Match a spoken phrase against the grimoire and return the best candidates with scores.",
	}, s.handleMatch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "expand_cipher",
		Description: "Match a phrase and expand its command with optional modifier phrases into the full instruction.",
	}, s.handleExpand)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_commands",
		Description: "List every grimoire command with its tags and flags.",
	}, s.handleListCommands)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_grimoires",
		Description: "Show the active grimoire and other grimoire files available to load.",
	}, s.handleListGrimoires)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "analyze_command",
		Description: "Match a phrase and report the routing category and permission tier it would run under.",
	}, s.handleAnalyze)
}
