// Package app wires parsed command lines to the suzerain runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/suzerain/internal/cli"
	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/doctor"
	"github.com/rbright/suzerain/internal/ipc"
	"github.com/rbright/suzerain/internal/logging"
	"github.com/rbright/suzerain/internal/version"
)

const (
	exitUsage = 2
	ipcWait   = 300 * time.Millisecond
)

// Runner executes one invocation against the given streams.
type Runner struct {
	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute runs args with stdin from the process.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses args and runs the selected command, returning the process exit code.
func (r Runner) Execute(ctx context.Context, args []string) int {
	inv, err := cli.Parse(args, r.Stdout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		fmt.Fprintln(r.Stderr, "Run 'suzerain --help' for usage.")
		return exitUsage
	}

	switch inv.Command {
	case cli.CommandHelp:
		return 0
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Verbose: inv.Flags.Verbose, Console: r.Stderr})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(inv.Flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Key != "" {
			msg = w.Key + ": " + w.Message
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "key", w.Key, "message", w.Message)
	}

	applyFlags(&loaded.Config, inv.Flags)
	if _, err := config.Validate(loaded.Config); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUsage
	}

	logger.Info("command start",
		"command", string(inv.Command),
		"config", loaded.Path,
		"log", logRuntime.Path,
		"trust_level", loaded.Config.Trust.Level,
	)

	switch inv.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.commandStop(ctx)
	case cli.CommandValidate:
		return r.commandValidate(loaded)
	case cli.CommandCommands:
		return r.commandCommands(loaded.Config, inv.Filter)
	case cli.CommandHistory:
		return r.commandHistory(ctx, loaded.Config, inv.Limit)
	case cli.CommandMCP:
		return r.commandMCP(ctx, loaded, logger)
	case cli.CommandMatch:
		return r.commandMatch(ctx, loaded.Config, inv.Text(), logger)
	case cli.CommandRun:
		return r.commandRun(ctx, loaded, inv, logger)
	case cli.CommandREPL:
		return r.commandREPL(ctx, loaded, inv, logger)
	case cli.CommandListen:
		return r.commandListen(ctx, loaded, inv, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", inv.Command)
		return exitUsage
	}
}

// applyFlags layers command-line overrides on top of the loaded config.
func applyFlags(cfg *config.Config, f cli.Flags) {
	if f.GrimoirePath != "" {
		cfg.Grimoire.Path = f.GrimoirePath
	}
	if f.Trust != 0 {
		cfg.Trust.Level = f.Trust
	}
	if f.DryRun {
		cfg.Debug.DryRun = true
	}
	if f.Semantic {
		cfg.Semantic.Enable = true
	}
	if f.Dangerous {
		cfg.Assistant.DangerouslySkipPermissions = true
	}
	if f.AutoPlain {
		cfg.Fallback.AutoPlain = true
	}
	if f.WorkDir != "" {
		cfg.Assistant.WorkDir = f.WorkDir
	}
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, err := ipc.Call(ctx, ipc.CommandStatus, ipcWait)
	if err != nil {
		if errors.Is(err, ipc.ErrNotRunning) || errors.Is(err, ipc.ErrNoRuntimeDir) {
			fmt.Fprintln(r.Stdout, "not running")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	if resp.Phrase != "" {
		elapsed := (time.Duration(resp.ElapsedMS) * time.Millisecond).Round(100 * time.Millisecond)
		fmt.Fprintf(r.Stdout, "%s: %s (%s)\n", resp.State, resp.Phrase, elapsed)
		return 0
	}
	fmt.Fprintln(r.Stdout, resp.State)
	return 0
}

func (r Runner) commandStop(ctx context.Context) int {
	resp, err := ipc.Call(ctx, ipc.CommandStop, ipcWait)
	if err != nil {
		if errors.Is(err, ipc.ErrNotRunning) || errors.Is(err, ipc.ErrNoRuntimeDir) {
			fmt.Fprintln(r.Stderr, "error: no running suzerain instance")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	fmt.Fprintln(r.Stdout, resp.Message)
	return 0
}
