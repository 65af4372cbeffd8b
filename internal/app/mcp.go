package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/doctor"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/mcp"
	"github.com/rbright/suzerain/internal/route"
)

// commandMCP serves the matching tools on stdio. Stdout belongs to the protocol, so
// everything human-readable goes to stderr.
func (r Runner) commandMCP(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	cfg := loaded.Config
	m, issues, err := newMatching(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	for _, issue := range issues {
		fmt.Fprintf(r.Stderr, "warning: grimoire: %s\n", issue.String())
	}
	if m.semantic != nil {
		if err := m.semantic.Initialize(ctx); err != nil {
			logger.Warn("semantic index unavailable", "error", err.Error())
		}
	}

	srv, err := mcp.New(mcp.Config{
		Store:        m.store,
		Dispatcher:   m.dispatcher,
		Router:       route.New(),
		Status:       func(ctx context.Context) doctor.Report { return doctor.Run(ctx, loaded) },
		GrimoireDirs: grimoireDirs(loaded),
		Logger:       logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if path := strings.TrimSpace(cfg.Grimoire.Path); path != "" && cfg.Grimoire.Watch {
		if w, err := grimoire.NewWatcher(m.store, path, logger); err == nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = w.Run(ctx)
			}()
		} else {
			logger.Warn("grimoire watch disabled", "path", path, "error", err.Error())
		}
	}

	fmt.Fprintf(r.Stderr, "suzerain MCP server running on stdio (grimoire %s)\n", grimoire.SourceName(cfg.Grimoire.Path))
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// grimoireDirs lists where list_grimoires looks for alternatives: beside the active
// file and under the config directory.
func grimoireDirs(loaded config.Loaded) []string {
	var dirs []string
	if path := strings.TrimSpace(loaded.Config.Grimoire.Path); path != "" {
		dirs = append(dirs, filepath.Dir(path))
	}
	if loaded.Path != "" {
		dirs = append(dirs, filepath.Join(filepath.Dir(loaded.Path), "grimoires"))
	}
	return dirs
}
