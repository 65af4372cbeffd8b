package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/suzerain/internal/cli"
	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/embedding"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/history"
	"github.com/rbright/suzerain/internal/indicator"
	"github.com/rbright/suzerain/internal/ipc"
	"github.com/rbright/suzerain/internal/monitor"
	"github.com/rbright/suzerain/internal/output"
	"github.com/rbright/suzerain/internal/parser"
	"github.com/rbright/suzerain/internal/route"
	"github.com/rbright/suzerain/internal/semantic"
	"github.com/rbright/suzerain/internal/session"
	"github.com/rbright/suzerain/internal/supervisor"
	"github.com/rbright/suzerain/internal/transcribe"
	"github.com/rbright/suzerain/internal/trust"
)

// matching is the registry plus the matchers built over it.
type matching struct {
	store      *grimoire.Store
	dispatcher *parser.Dispatcher
	semantic   *semantic.Matcher
}

// newMatching loads the grimoire and builds the dispatcher. Issues that are only
// warnings are returned for display.
func newMatching(ctx context.Context, cfg config.Config, logger *slog.Logger) (*matching, []grimoire.Issue, error) {
	g, issues, err := grimoire.Open(cfg.Grimoire.Path)
	if err != nil {
		return nil, issues, err
	}
	m := &matching{store: grimoire.NewStore(g, grimoire.SourceName(cfg.Grimoire.Path))}

	var sem parser.Semantic
	if cfg.Semantic.Enable {
		embedder, err := embedding.New(ctx, cfg.Embedding)
		if err != nil {
			return nil, issues, fmt.Errorf("semantic matching: %w", err)
		}
		m.semantic = semantic.NewMatcher(m.store, embedder, semantic.Options{
			Mode:      semantic.Mode(cfg.Semantic.Mode),
			Threshold: cfg.Semantic.Threshold,
		}, logger)
		sem = m.semantic
	}

	m.dispatcher = parser.NewDispatcher(m.store, parser.Options{
		Threshold:       cfg.Parser.Threshold,
		EscapeThreshold: cfg.Parser.EscapeThreshold,
		TieBand:         cfg.Parser.TieBand,
		TopN:            cfg.Parser.TopN,
		Scorer:          cfg.Parser.Scorer,
		FillerWords:     cfg.Parser.FillerWords,
		EscapeMaxTokens: cfg.Parser.EscapeMaxTokens,
	}, sem, logger)
	return m, issues, nil
}

// feedVocabulary keeps the recognizer's boosted words in step with the registry.
func (m *matching) feedVocabulary(v *transcribe.Vocabulary) {
	publish := func(s *grimoire.Snapshot) {
		v.Set(s.Grimoire.Keywords(grimoire.MaxKeywords))
	}
	if snap := m.store.Snapshot(); snap != nil {
		publish(snap)
	}
	m.store.Subscribe(publish)
}

// runtime is everything a dispatching command needs.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	match   *matching
	history *history.Store
	policy  *trust.Policy

	console  *output.Console
	prompter *output.Prompter
	notifier *indicator.Notifier
	ctrl     *session.Controller

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listener net.Listener
	sockPath string
}

// runtimeOptions customizes runtime construction per command.
type runtimeOptions struct {
	// interrupt builds the extra monitor raced against each execution.
	interrupt func(*parser.Dispatcher) monitor.Monitor
}

func (r Runner) newRuntime(ctx context.Context, loaded config.Loaded, inv cli.Invocation, logger *slog.Logger, opts runtimeOptions) (*runtime, error) {
	cfg := loaded.Config
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		console:  output.NewConsole(r.Stdout),
		prompter: r.prompter(),
		notifier: indicator.New(cfg.Indicator, logger),
	}

	match, issues, err := newMatching(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.match = match
	for _, issue := range issues {
		rt.console.Warn("grimoire: " + issue.String())
	}

	policy, err := trust.PolicyFromConfig(cfg.Trust)
	if err != nil {
		return nil, err
	}
	rt.policy = policy

	if err := rt.warmup(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel

	loaded.Watch(logger, func(next config.Config) {
		applyFlags(&next, inv.Flags)
		if err := policy.Apply(next.Trust); err != nil {
			logger.Warn("trust reload rejected", "error", err.Error())
		}
	})
	rt.watchGrimoire(runCtx)

	if err := rt.serveIPC(runCtx); err != nil {
		rt.Close()
		return nil, err
	}

	runner := supervisor.New(supervisor.Options{
		Command:                    cfg.Assistant.Argv,
		WorkDir:                    cfg.Assistant.WorkDir,
		DangerouslySkipPermissions: cfg.Assistant.DangerouslySkipPermissions,
		Timeout:                    cfg.Supervisor.Timeout,
		SoftWarning:                cfg.Supervisor.SoftWarning,
		TerminateGrace:             cfg.Supervisor.TerminateGrace,
		PollInterval:               cfg.Supervisor.PollInterval,
		Logger:                     logger,
	})

	deps := session.Deps{
		Matcher:   match.dispatcher,
		Router:    route.New(),
		Gate:      trust.NewGate(policy, rt.prompter),
		Runner:    runner,
		Confirmer: rt.prompter,
		Chooser:   rt.prompter,
		Indicator: rt.notifier,
		Reporter:  rt.console,
	}
	if rt.history != nil {
		deps.History = rt.history
	}
	if opts.interrupt != nil {
		deps.Monitor = opts.interrupt(match.dispatcher)
	}
	rt.ctrl = session.NewController(deps, session.Options{
		DryRun:        cfg.Debug.DryRun,
		Fallback:      cfg.Fallback,
		RouteProfiles: cfg.Assistant.RouteProfiles,
		WorkDir:       cfg.Assistant.WorkDir,
		Logger:        logger,
	})
	rt.serveController(runCtx)
	return rt, nil
}

// warmup opens history, builds the embedding index, and checks the assistant binary
// concurrently.
func (rt *runtime) warmup(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if rt.cfg.History.Enable {
		g.Go(func() error {
			path := rt.cfg.History.Path
			if path == "" {
				var err error
				if path, err = history.DefaultPath(); err != nil {
					return err
				}
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			rt.history = store
			return nil
		})
	}

	if rt.match.semantic != nil {
		g.Go(func() error {
			started := time.Now()
			if err := rt.match.semantic.Initialize(gctx); err != nil {
				rt.logger.Warn("semantic index unavailable", "error", err.Error())
				rt.console.Warn("semantic matching unavailable: " + err.Error())
				return nil
			}
			rt.logger.Info("semantic index ready", "duration_ms", time.Since(started).Milliseconds())
			return nil
		})
	}

	g.Go(func() error {
		if len(rt.cfg.Assistant.Argv) == 0 {
			return errors.New("assistant.command is empty")
		}
		if _, err := exec.LookPath(rt.cfg.Assistant.Argv[0]); err != nil {
			rt.logger.Warn("assistant not found on PATH", "command", rt.cfg.Assistant.Argv[0])
		}
		return nil
	})

	return g.Wait()
}

func (rt *runtime) watchGrimoire(ctx context.Context) {
	path := strings.TrimSpace(rt.cfg.Grimoire.Path)
	if path == "" || !rt.cfg.Grimoire.Watch {
		return
	}
	w, err := grimoire.NewWatcher(rt.match.store, path, rt.logger)
	if err != nil {
		rt.logger.Warn("grimoire watch disabled", "path", path, "error", err.Error())
		return
	}
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		_ = w.Run(ctx)
	}()
}

// serveIPC claims the single-instance socket. Without a runtime dir the instance
// simply cannot be controlled from outside.
func (rt *runtime) serveIPC(ctx context.Context) error {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		rt.logger.Debug("ipc disabled", "error", err.Error())
		return nil
	}
	listener, err := ipc.Acquire(ctx, path, 180*time.Millisecond, 4)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			return err
		}
		rt.logger.Warn("ipc disabled", "path", path, "error", err.Error())
		return nil
	}
	rt.listener = listener
	rt.sockPath = path
	return nil
}

func (rt *runtime) serveController(ctx context.Context) {
	if rt.listener == nil {
		return
	}
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		if err := ipc.Serve(ctx, rt.listener, rt.ctrl.Mux()); err != nil {
			rt.logger.Error("ipc server failed", "error", err.Error())
		}
	}()
}

// Close stops background work and releases the socket and database.
func (rt *runtime) Close() {
	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.listener != nil {
		_ = rt.listener.Close()
	}
	rt.wg.Wait()
	if rt.sockPath != "" {
		_ = os.Remove(rt.sockPath)
	}
	if rt.history != nil {
		_ = rt.history.Close()
	}
	rt.notifier.Wait()
}

func (r Runner) prompter() *output.Prompter {
	in := r.Stdin
	if in == nil {
		in = os.Stdin
	}
	return output.NewPrompter(in, r.Stdout)
}
