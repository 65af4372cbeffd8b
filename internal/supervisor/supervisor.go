// Package supervisor runs one assistant process at a time, streams its output, and
// races it against an interrupt monitor and a hard timeout.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rbright/suzerain/internal/fsm"
	"github.com/rbright/suzerain/internal/monitor"
	"github.com/rbright/suzerain/internal/stream"
)

// Reserved exit codes.
const (
	ExitTimeout     = 124
	ExitSpawnFailed = 127
	ExitInterrupted = 130
)

// Result reasons.
const (
	ReasonCompleted   = "completed"
	ReasonFailed      = "failed"
	ReasonSpawnFailed = "spawn_failed"
	ReasonTimeout     = "timeout"
	ReasonInterrupted = "interrupted"
	ReasonCancelled   = "cancelled"
)

// ErrBusy is returned when Run is called while a session is live.
var ErrBusy = errors.New("supervisor is already running a session")

const maxLineBytes = 4 << 20

// Options configures a Supervisor.
type Options struct {
	// Command is the assistant argv prefix, e.g. ["claude"].
	Command                    []string
	WorkDir                    string
	Env                        []string
	DangerouslySkipPermissions bool

	Timeout        time.Duration
	SoftWarning    time.Duration
	TerminateGrace time.Duration
	PollInterval   time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if len(o.Command) == 0 {
		o.Command = []string{"claude"}
	}
	if o.Timeout <= 0 {
		o.Timeout = 300 * time.Second
	}
	if o.SoftWarning <= 0 {
		o.SoftWarning = 30 * time.Second
	}
	if o.TerminateGrace <= 0 {
		o.TerminateGrace = 5 * time.Second
	}
	if o.PollInterval <= 0 || o.PollInterval > time.Second {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Request is one dispatch.
type Request struct {
	Instruction string
	// Continue attaches to the assistant's most recent conversation.
	Continue bool
	// ResumeID attaches to a specific conversation. Ignored when Continue is set.
	ResumeID           string
	AllowedTools       []string
	AppendSystemPrompt string
	WorkDir            string

	Handler       stream.Handler
	Monitor       monitor.Monitor
	OnSoftWarning func(idle time.Duration)
}

// Result describes how a session ended. Execution failures are reported here, never
// as a Run error.
type Result struct {
	ExitCode  int
	State     fsm.State
	Reason    string
	SessionID string
	ToolUses  int
	// Errors counts error records the assistant streamed; a completed session may
	// still carry some.
	Errors     int
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
	Warned     bool
	// Err carries the spawn error or a monitor hard failure.
	Err error
}

// Duration is the wall time of the session.
func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Supervisor owns the interrupt signal and at most one live session.
type Supervisor struct {
	opts   Options
	signal *monitor.Signal

	busy  atomic.Bool
	mu    sync.Mutex
	state fsm.State
}

// New creates an idle supervisor.
func New(opts Options) *Supervisor {
	return &Supervisor{
		opts:   opts.withDefaults(),
		signal: monitor.NewSignal(),
		state:  fsm.StateIdle,
	}
}

// State reports the current lifecycle state.
func (s *Supervisor) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a session is live.
func (s *Supervisor) Busy() bool { return s.busy.Load() }

// Args builds the assistant argv for req.
func (s *Supervisor) Args(req Request) []string {
	args := append([]string(nil), s.opts.Command...)
	switch {
	case req.Continue:
		args = append(args, "--continue")
	case strings.TrimSpace(req.ResumeID) != "":
		args = append(args, "--resume", strings.TrimSpace(req.ResumeID))
	}
	args = append(args, "-p", req.Instruction, "--verbose", "--output-format", "stream-json")
	if s.opts.DangerouslySkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if strings.TrimSpace(req.AppendSystemPrompt) != "" {
		args = append(args, "--append-system-prompt", req.AppendSystemPrompt)
	}
	return args
}

func (s *Supervisor) transition(event fsm.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		s.opts.Logger.Error("supervisor transition rejected", "state", string(s.state), "event", string(event), "error", err.Error())
		return
	}
	s.state = next
}

// Run executes req to completion. Only ErrBusy and request validation errors are
// returned as errors.
func (s *Supervisor) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return Result{}, errors.New("instruction must not be empty")
	}
	if !s.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer s.busy.Store(false)

	s.transition(fsm.EventStart)
	s.signal.Clear()

	res := s.run(ctx, req)

	s.transition(fsm.EventReset)
	s.opts.Logger.Info("session finished",
		"state", string(res.State),
		"reason", res.Reason,
		"exit_code", res.ExitCode,
		"session_id", res.SessionID,
		"tool_uses", res.ToolUses,
		"stream_errors", res.Errors,
		"duration_ms", res.Duration().Milliseconds(),
	)
	return res, nil
}

func (s *Supervisor) run(ctx context.Context, req Request) Result {
	logger := s.opts.Logger
	tally := stream.NewTally(req.Handler)
	args := s.Args(req)
	res := Result{StartedAt: time.Now()}

	pr, pw, err := os.Pipe()
	if err != nil {
		return s.spawnFailed(res, fmt.Errorf("create output pipe: %w", err))
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = s.opts.WorkDir
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	cmd.Env = append(os.Environ(), s.opts.Env...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return s.spawnFailed(res, fmt.Errorf("start %s: %w", args[0], err))
	}
	_ = pw.Close()
	s.transition(fsm.EventSpawned)
	logger.Info("session started", "pid", cmd.Process.Pid, "argv0", args[0], "continue", req.Continue, "resume", req.ResumeID)

	monCtx, monCancel := context.WithCancel(context.Background())
	defer monCancel()
	monDone := make(chan error, 1)
	go func() {
		if req.Monitor == nil {
			<-monCtx.Done()
			monDone <- nil
			return
		}
		monDone <- req.Monitor.Run(monCtx, s.signal)
	}()

	lines := make(chan string, 64)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer close(lines)
		readLines(pr, lines)
	}()

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	handle := func(line string) {
		for _, ev := range stream.Parse(line) {
			tally.Handle(ev)
		}
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	lastOutput := res.StartedAt
	warned := false
	var (
		final    fsm.Event
		exitCode int
		waitErr  error
		done     bool
	)

	for !done {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			handle(line)
			lastOutput = time.Now()
			warned = false
		case waitErr = <-exited:
			exitCode = exitCodeOf(cmd, waitErr)
			final = fsm.EventExited
			if exitCode != 0 {
				final = fsm.EventFail
			}
			exited = nil
			done = true
			continue
		case <-s.signal.Wake():
		case <-ctx.Done():
		case <-ticker.C:
		}

		now := time.Now()
		switch {
		case s.signal.IsSet():
			logger.Info("interrupt received; terminating assistant", "pid", cmd.Process.Pid)
			s.terminate(cmd, exited)
			final, exitCode, res.Reason = fsm.EventInterrupt, ExitInterrupted, ReasonInterrupted
			done = true
		case ctx.Err() != nil:
			logger.Info("dispatch cancelled; terminating assistant", "pid", cmd.Process.Pid)
			s.terminate(cmd, exited)
			final, exitCode, res.Reason = fsm.EventInterrupt, ExitInterrupted, ReasonCancelled
			done = true
		case now.Sub(res.StartedAt) >= s.opts.Timeout:
			logger.Warn("assistant timed out; terminating", "pid", cmd.Process.Pid, "timeout_ms", s.opts.Timeout.Milliseconds())
			s.terminate(cmd, exited)
			final, exitCode, res.Reason = fsm.EventTimeout, ExitTimeout, ReasonTimeout
			done = true
		case !warned && now.Sub(lastOutput) >= s.opts.SoftWarning:
			warned = true
			res.Warned = true
			idle := now.Sub(lastOutput)
			logger.Warn("assistant quiet", "idle_ms", idle.Milliseconds())
			if req.OnSoftWarning != nil {
				req.OnSoftWarning(idle)
			}
		}
	}

	// The monitor must be gone before the session leaves running.
	monCancel()
	if monErr := <-monDone; monErr != nil {
		logger.Error("interrupt monitor failed", "error", monErr.Error())
		res.Err = monErr
	}

	drainLines(lines, readerDone, pr, s.opts.TerminateGrace, handle)

	s.transition(final)
	res.ExitCode = exitCode
	if res.Reason == "" {
		res.Reason = ReasonCompleted
		if final == fsm.EventFail {
			res.Reason = ReasonFailed
		}
	}
	res.State = s.State()
	res.SessionID = tally.SessionID()
	res.ToolUses = tally.ToolUses()
	res.Errors = tally.Errors()
	res.Output = tally.Result()
	res.FinishedAt = time.Now()
	return res
}

func (s *Supervisor) spawnFailed(res Result, err error) Result {
	s.opts.Logger.Error("assistant spawn failed", "error", err.Error())
	s.transition(fsm.EventSpawnFail)
	res.State = s.State()
	res.ExitCode = ExitSpawnFailed
	res.Reason = ReasonSpawnFailed
	res.Err = err
	res.FinishedAt = time.Now()
	return res
}

// terminate sends SIGTERM to the process group, waits out the grace period, then
// kills. It returns once the process has been reaped.
func (s *Supervisor) terminate(cmd *exec.Cmd, exited <-chan error) {
	if exited == nil {
		return
	}
	pid := cmd.Process.Pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	timer := time.NewTimer(s.opts.TerminateGrace)
	defer timer.Stop()
	select {
	case <-exited:
		return
	case <-timer.C:
	}

	s.opts.Logger.Warn("assistant ignored SIGTERM; killing", "pid", pid)
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	<-exited
}

func readLines(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out <- line
		}
	}
}

// drainLines delivers output still buffered after the process ended. Descendants that
// keep the pipe open are cut off after wait.
func drainLines(lines <-chan string, readerDone <-chan struct{}, pr *os.File, wait time.Duration, handle func(string)) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for lines != nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			handle(line)
		case <-deadline.C:
			_ = pr.Close()
			for line := range lines {
				handle(line)
			}
			lines = nil
		}
	}
	<-readerDone
	_ = pr.Close()
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
	}
	if err != nil {
		return 1
	}
	return 0
}
