// Package indicator plays audio cues and desktop notifications for dispatch events.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/suzerain/internal/config"
)

// Controller is the session-facing feedback contract.
type Controller interface {
	Heard(ctx context.Context, phrase string)
	Success(ctx context.Context, summary string)
	Failure(ctx context.Context, summary string)
	Interrupted(ctx context.Context)
	Quiet(ctx context.Context, idle time.Duration)
}

// Noop discards all feedback.
type Noop struct{}

func (Noop) Heard(context.Context, string)        {}
func (Noop) Success(context.Context, string)      {}
func (Noop) Failure(context.Context, string)      {}
func (Noop) Interrupted(context.Context)          {}
func (Noop) Quiet(context.Context, time.Duration) {}

type notifyFunc func(ctx context.Context, appName string, replaceID uint32, summary, body string, timeoutMS int) (uint32, error)

// Notifier plays cues through pulse and, when enabled, replaces a single desktop
// notification per dispatch.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	emit   func(cueKind) error
	notify notifyFunc

	mu       sync.Mutex
	notifyID uint32
	soundMu  sync.Mutex
	pending  sync.WaitGroup
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: english,
		notify:   desktopNotify,
	}
	if cfg.DesktopBackend == config.DesktopBackendHyprland {
		n.notify = hyprlandNotify
	}
	n.emit = func(kind cueKind) error { return emitCue(kind, cfg) }
	return n
}

// Heard confirms an utterance was understood.
func (n *Notifier) Heard(ctx context.Context, phrase string) {
	n.playCue(cueHeard)
	n.show(ctx, n.messages.heard, phrase, 3000)
}

// Success reports a completed dispatch.
func (n *Notifier) Success(ctx context.Context, summary string) {
	n.playCue(cueSuccess)
	n.show(ctx, n.messages.success, summary, 4000)
}

// Failure reports a failed dispatch.
func (n *Notifier) Failure(ctx context.Context, summary string) {
	n.playCue(cueError)
	n.show(ctx, n.messages.failure, summary, 6000)
}

// Interrupted reports a stopped dispatch.
func (n *Notifier) Interrupted(ctx context.Context) {
	n.playCue(cueInterrupt)
	n.show(ctx, n.messages.interrupted, "", 3000)
}

// Quiet reports that the assistant has produced no output for idle.
func (n *Notifier) Quiet(ctx context.Context, idle time.Duration) {
	n.show(ctx, n.messages.quiet, fmt.Sprintf("no output for %s", idle.Round(time.Second)), 5000)
}

// Wait blocks until queued cues have played.
func (n *Notifier) Wait() { n.pending.Wait() }

func (n *Notifier) show(ctx context.Context, summary, body string, timeoutMS int) {
	if !n.cfg.DesktopEnable {
		return
	}
	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "suzerain"
	}

	n.mu.Lock()
	replaceID := n.notifyID
	n.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	id, err := n.notify(runCtx, appName, replaceID, summary, body, timeoutMS)
	if err != nil {
		n.logger.Debug("desktop notification failed", "error", err.Error())
		return
	}

	n.mu.Lock()
	n.notifyID = id
	n.mu.Unlock()
}

// playCue serializes playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := n.emit(kind); err != nil {
			n.logger.Debug("audio cue failed", "cue", kind.String(), "error", err.Error())
		}
	}()
}
