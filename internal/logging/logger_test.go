package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogPath(t *testing.T) {
	state, home := t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)

	t.Setenv("XDG_STATE_HOME", state)
	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "suzerain", "log.jsonl"), path)

	t.Setenv("XDG_STATE_HOME", "")
	path, err = resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "suzerain", "log.jsonl"), path)
}

func TestTeeGroupsAndFiltersPerHandler(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(tee{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	logger.WithGroup("run").Debug("chunk", "bytes", 640)
	logger.Info("dispatch", "phrase", "the judge smiled")

	require.NotContains(t, info.String(), "chunk")
	require.Contains(t, info.String(), `phrase="the judge smiled"`)
	require.Contains(t, debug.String(), "run.bytes=640")
	require.Contains(t, debug.String(), "msg=dispatch")
}

func TestNewCreatesWritableJSONLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(Options{})
	require.NoError(t, err)

	runtime.Logger.Info("unit-test-log", "component", "logging")
	runtime.Logger.Debug("hidden")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"unit-test-log"`)
	require.Contains(t, string(contents), `"component":"logging"`)
	require.NotContains(t, string(contents), "hidden")

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestVerboseTeesToConsole(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	var console bytes.Buffer

	runtime, err := New(Options{Verbose: true, Console: &console, NoColor: true})
	require.NoError(t, err)

	runtime.Logger.With("session_id", "abc").Debug("assistant started", "pid", 42)
	require.NoError(t, runtime.Close())

	require.Contains(t, console.String(), "assistant started")
	require.Contains(t, console.String(), "session_id=abc")
	require.Contains(t, console.String(), "pid=42")

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"session_id":"abc"`)
}
