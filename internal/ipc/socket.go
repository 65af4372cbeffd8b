package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrAlreadyRunning means another instance owns the socket.
	ErrAlreadyRunning = errors.New("suzerain is already running")
	// ErrNotRunning means no instance answered on the socket.
	ErrNotRunning = errors.New("suzerain is not running")
	// ErrNoRuntimeDir means there is nowhere to put the socket.
	ErrNoRuntimeDir = errors.New("XDG_RUNTIME_DIR is not set")
)

// RuntimeSocketPath returns $XDG_RUNTIME_DIR/suzerain.sock.
func RuntimeSocketPath() (string, error) {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		return "", ErrNoRuntimeDir
	}
	return filepath.Join(dir, "suzerain.sock"), nil
}

// Acquire listens on path for the single running instance. A socket left behind by
// a dead owner is removed and the listen retried up to retries times. A live owner
// is ErrAlreadyRunning. A socket whose owner neither answers nor refuses is left
// alone.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration, retries int) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	backoff := 25 * time.Millisecond
	for attempt := 0; ; attempt++ {
		l, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return l, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, err := Probe(ctx, path, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if err != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, err)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		if attempt >= retries {
			return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}
