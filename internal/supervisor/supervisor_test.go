package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rbright/suzerain/internal/fsm"
	"github.com/rbright/suzerain/internal/monitor"
	"github.com/rbright/suzerain/internal/stream"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const helperEnv = "SUZERAIN_SUPERVISOR_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(helperMain(os.Args))
	}
	goleak.VerifyTestMain(m)
}

// helperMain emulates the assistant. The -p argument selects the behavior.
func helperMain(args []string) int {
	instruction := ""
	for i, a := range args {
		if a == "-p" && i+1 < len(args) {
			instruction = args[i+1]
		}
	}

	switch instruction {
	case "ok":
		fmt.Println(`{"type":"system","subtype":"init","session_id":"sess-1"}`)
		fmt.Println(`{"type":"assistant","message":{"content":[{"type":"text","text":"running"},{"type":"tool_use","name":"Bash","input":{"command":"go test"}}]}}`)
		fmt.Println(`{"type":"result","result":"all green","session_id":"sess-1"}`)
		return 0
	case "fail":
		fmt.Println("not json at all")
		fmt.Println(`{"type":"error","error":{"message":"tool crashed"}}`)
		return 3
	case "hang":
		fmt.Println(`{"type":"system","subtype":"init","session_id":"sess-hang"}`)
		time.Sleep(time.Hour)
		return 0
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println(`{"type":"system","subtype":"init","session_id":"sess-stubborn"}`)
		time.Sleep(time.Hour)
		return 0
	case "quiet":
		time.Sleep(400 * time.Millisecond)
		fmt.Println(`{"type":"result","result":"late"}`)
		return 0
	default:
		fmt.Fprintln(os.Stderr, "unknown helper mode", instruction)
		return 2
	}
}

func newTestSupervisor(t *testing.T, mutate func(*Options)) *Supervisor {
	t.Helper()
	opts := Options{
		Command:        []string{os.Args[0], "-test.run=^$"},
		Env:            []string{helperEnv + "=1"},
		Timeout:        10 * time.Second,
		SoftWarning:    5 * time.Second,
		TerminateGrace: 500 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

type recorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *recorder) Handle(ev stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// kinds skips raw lines so toolchain chatter on stderr does not leak into assertions.
func (r *recorder) kinds() []stream.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stream.Kind, 0, len(r.events))
	for _, ev := range r.events {
		if ev.Kind != stream.KindRaw {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func (r *recorder) raw() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Kind == stream.KindRaw {
			out = append(out, ev.Text)
		}
	}
	return out
}

func TestArgs(t *testing.T) {
	s := New(Options{Command: []string{"claude", "--model", "opus"}, DangerouslySkipPermissions: true})

	require.Equal(t,
		[]string{"claude", "--model", "opus", "-p", "do it", "--verbose", "--output-format", "stream-json", "--dangerously-skip-permissions"},
		s.Args(Request{Instruction: "do it"}),
	)
	require.Equal(t,
		[]string{"claude", "--model", "opus", "--continue", "-p", "go on", "--verbose", "--output-format", "stream-json", "--dangerously-skip-permissions",
			"--allowedTools", "Read,Grep", "--append-system-prompt", "read only"},
		s.Args(Request{Instruction: "go on", Continue: true, ResumeID: "ignored", AllowedTools: []string{"Read", "Grep"}, AppendSystemPrompt: "read only"}),
	)

	s = New(Options{})
	require.Equal(t,
		[]string{"claude", "--resume", "abc", "-p", "x", "--verbose", "--output-format", "stream-json"},
		s.Args(Request{Instruction: "x", ResumeID: " abc "}),
	)
}

func TestRunCompletedStreamsEvents(t *testing.T) {
	s := newTestSupervisor(t, nil)
	rec := &recorder{}

	res, err := s.Run(context.Background(), Request{Instruction: "ok", Handler: rec})
	require.NoError(t, err)
	require.Equal(t, fsm.StateCompleted, res.State)
	require.Equal(t, ReasonCompleted, res.Reason)
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, "sess-1", res.SessionID)
	require.Equal(t, 1, res.ToolUses)
	require.Equal(t, "all green", res.Output)
	require.False(t, res.Warned)
	require.NoError(t, res.Err)
	require.Equal(t, []stream.Kind{stream.KindSystem, stream.KindText, stream.KindToolUse, stream.KindResult}, rec.kinds())
	require.Equal(t, fsm.StateIdle, s.State())
	require.False(t, s.Busy())
}

func TestRunFailedKeepsProcessExitCode(t *testing.T) {
	s := newTestSupervisor(t, nil)
	rec := &recorder{}

	res, err := s.Run(context.Background(), Request{Instruction: "fail", Handler: rec})
	require.NoError(t, err)
	require.Equal(t, fsm.StateFailed, res.State)
	require.Equal(t, ReasonFailed, res.Reason)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, rec.raw(), "not json at all")
	require.Equal(t, 1, res.Errors)
}

func TestRunInterruptedWithinPollAndMonitorJoined(t *testing.T) {
	s := newTestSupervisor(t, nil)

	var (
		joined atomic.Bool
		setAt  atomic.Int64
	)
	mon := monitor.Func(func(ctx context.Context, sig *monitor.Signal) error {
		time.Sleep(100 * time.Millisecond)
		setAt.Store(time.Now().UnixNano())
		sig.Set()
		<-ctx.Done()
		joined.Store(true)
		return nil
	})

	res, err := s.Run(context.Background(), Request{Instruction: "hang", Monitor: mon})
	require.NoError(t, err)
	require.Equal(t, fsm.StateInterrupted, res.State)
	require.Equal(t, ExitInterrupted, res.ExitCode)
	require.Equal(t, ReasonInterrupted, res.Reason)
	require.True(t, joined.Load(), "monitor must be joined before Run returns")
	require.Equal(t, fsm.StateIdle, s.State())

	latency := res.FinishedAt.Sub(time.Unix(0, setAt.Load()))
	require.LessOrEqual(t, latency, s.opts.PollInterval+s.opts.TerminateGrace)
}

func TestRunInterruptViaChannelTrigger(t *testing.T) {
	s := newTestSupervisor(t, nil)
	trig := monitor.NewTrigger()

	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), Request{Instruction: "hang", Monitor: monitor.Channel{Trigger: trig}})
		done <- res
	}()

	require.Eventually(t, s.Busy, 5*time.Second, time.Millisecond)
	trig.Fire()
	res := <-done
	require.Equal(t, fsm.StateInterrupted, res.State)
}

func TestRunStubbornProcessIsKilledAfterGrace(t *testing.T) {
	s := newTestSupervisor(t, func(o *Options) { o.TerminateGrace = 200 * time.Millisecond })
	mon := monitor.Func(func(ctx context.Context, sig *monitor.Signal) error {
		time.Sleep(200 * time.Millisecond)
		sig.Set()
		return nil
	})

	started := time.Now()
	res, err := s.Run(context.Background(), Request{Instruction: "stubborn", Monitor: mon})
	require.NoError(t, err)
	require.Equal(t, fsm.StateInterrupted, res.State)
	require.Equal(t, ExitInterrupted, res.ExitCode)
	require.Less(t, time.Since(started), 5*time.Second)
}

func TestRunTimeout(t *testing.T) {
	s := newTestSupervisor(t, func(o *Options) { o.Timeout = 300 * time.Millisecond })

	res, err := s.Run(context.Background(), Request{Instruction: "hang"})
	require.NoError(t, err)
	require.Equal(t, fsm.StateTimedOut, res.State)
	require.Equal(t, ExitTimeout, res.ExitCode)
	require.Equal(t, ReasonTimeout, res.Reason)
}

func TestRunContextCancelTerminates(t *testing.T) {
	s := newTestSupervisor(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := s.Run(ctx, Request{Instruction: "hang"})
	require.NoError(t, err)
	require.Equal(t, fsm.StateInterrupted, res.State)
	require.Equal(t, ReasonCancelled, res.Reason)
}

func TestRunSoftWarningFiresOnce(t *testing.T) {
	s := newTestSupervisor(t, func(o *Options) { o.SoftWarning = 100 * time.Millisecond })
	var warnings atomic.Int32

	res, err := s.Run(context.Background(), Request{
		Instruction:   "quiet",
		OnSoftWarning: func(time.Duration) { warnings.Add(1) },
	})
	require.NoError(t, err)
	require.Equal(t, fsm.StateCompleted, res.State)
	require.True(t, res.Warned)
	require.EqualValues(t, 1, warnings.Load())
	require.Equal(t, "late", res.Output)
}

func TestRunSpawnFailureLeavesSupervisorUsable(t *testing.T) {
	s := newTestSupervisor(t, func(o *Options) { o.Command = []string{"/definitely/not/an/assistant"} })

	res, err := s.Run(context.Background(), Request{Instruction: "ok"})
	require.NoError(t, err)
	require.Equal(t, fsm.StateFailed, res.State)
	require.Equal(t, ExitSpawnFailed, res.ExitCode)
	require.Equal(t, ReasonSpawnFailed, res.Reason)
	require.Error(t, res.Err)
	require.Equal(t, fsm.StateIdle, s.State())

	s.opts.Command = []string{os.Args[0], "-test.run=^$"}
	res, err = s.Run(context.Background(), Request{Instruction: "ok"})
	require.NoError(t, err)
	require.Equal(t, fsm.StateCompleted, res.State)
}

func TestRunRejectsSecondSessionWhileBusy(t *testing.T) {
	s := newTestSupervisor(t, nil)
	trig := monitor.NewTrigger()

	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), Request{Instruction: "hang", Monitor: monitor.Channel{Trigger: trig}})
		done <- res
	}()

	require.Eventually(t, func() bool { return s.State() == fsm.StateRunning }, 5*time.Second, 5*time.Millisecond)
	_, err := s.Run(context.Background(), Request{Instruction: "ok"})
	require.ErrorIs(t, err, ErrBusy)

	trig.Fire()
	res := <-done
	require.Equal(t, fsm.StateInterrupted, res.State)
}

func TestRunRejectsEmptyInstruction(t *testing.T) {
	_, err := New(Options{}).Run(context.Background(), Request{Instruction: "  "})
	require.Error(t, err)
}

func TestRunMonitorFailureIsReported(t *testing.T) {
	s := newTestSupervisor(t, nil)
	mon := monitor.Func(func(context.Context, *monitor.Signal) error {
		return fmt.Errorf("audio device vanished")
	})

	res, err := s.Run(context.Background(), Request{Instruction: "ok", Monitor: mon})
	require.NoError(t, err)
	require.Equal(t, fsm.StateCompleted, res.State)
	require.ErrorContains(t, res.Err, "audio device vanished")
}
