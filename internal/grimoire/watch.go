package grimoire

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads a grimoire file into a Store when it changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	path     string
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher watches the directory containing path, so editor rename-and-replace
// saves are seen as well as in-place writes.
func NewWatcher(store *Store, path string, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create grimoire watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("resolve grimoire path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{watcher: w, store: store, path: abs, logger: logger, debounce: reloadDebounce}, nil
}

// Run blocks until ctx is cancelled, reloading after writes settle. Reloads run on
// the calling goroutine, so none is in flight once Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	var (
		pending *time.Timer
		settled <-chan time.Time
	)
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-settled:
			settled = nil
			w.reload()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(w.debounce)
			} else {
				pending.Reset(w.debounce)
			}
			settled = pending.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("grimoire watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) reload() {
	snap, issues, err := w.store.ReloadFile(w.path)
	for _, issue := range issues {
		w.logger.Warn("grimoire issue", "severity", string(issue.Severity), "message", issue.Message)
	}
	if err != nil {
		w.logger.Error("grimoire reload failed", "path", w.path, "error", err.Error())
		return
	}
	w.logger.Info("grimoire reloaded",
		"path", w.path,
		"version", snap.Version,
		"commands", len(snap.Grimoire.Commands),
		"modifiers", len(snap.Grimoire.Modifiers),
	)
}
