package monitor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedSource struct {
	windows [][]int16
	err     error
	calls   atomic.Int32
}

func (s *scriptedSource) Window(ctx context.Context, _ time.Duration) ([]int16, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.windows) {
		return s.windows[n], nil
	}
	if s.err != nil {
		return nil, s.err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type scriptedTranscriber struct {
	texts []string
	calls atomic.Int32
}

func (s *scriptedTranscriber) Transcribe(context.Context, []byte) (string, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.texts) {
		return s.texts[n], nil
	}
	return "", errors.New("no more transcripts")
}

type wordDetector struct{ word string }

func (w wordDetector) Detect(text string) (string, bool) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) <= 2 {
		for _, f := range fields {
			if strings.Trim(f, ".!?") == w.word {
				return w.word, true
			}
		}
	}
	return "", false
}

func loud(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = 6000
	}
	return out
}

func TestSignalSetClear(t *testing.T) {
	sig := NewSignal()
	require.False(t, sig.IsSet())

	sig.Set()
	sig.Set()
	require.True(t, sig.IsSet())
	select {
	case <-sig.Wake():
	default:
		t.Fatal("expected a wake token")
	}
	select {
	case <-sig.Wake():
		t.Fatal("repeated Set must not queue a second token")
	default:
	}

	sig.Set()
	sig.Clear()
	require.False(t, sig.IsSet())
	select {
	case <-sig.Wake():
		t.Fatal("Clear must drain the wake token")
	default:
	}
}

func TestAudioSkipsSilenceAndFiresOnIsolatedStop(t *testing.T) {
	source := &scriptedSource{windows: [][]int16{
		make([]int16, 1600),
		loud(1600),
		loud(1600),
	}}
	tr := &scriptedTranscriber{texts: []string{"there's a stop sign on the corner", "Stop."}}
	mon := &Audio{Source: source, Transcriber: tr, Detector: wordDetector{word: "stop"}, SilenceRMS: 0.012}

	sig := NewSignal()
	require.NoError(t, mon.Run(context.Background(), sig))
	require.True(t, sig.IsSet())
	require.EqualValues(t, 3, source.calls.Load())
	require.EqualValues(t, 2, tr.calls.Load(), "silent window must not be transcribed")
}

func TestAudioStopsOnCancel(t *testing.T) {
	source := &scriptedSource{}
	mon := &Audio{Source: source, Transcriber: &scriptedTranscriber{}, Detector: wordDetector{word: "stop"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	sig := NewSignal()
	go func() { done <- mon.Run(ctx, sig) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("audio monitor did not stop")
	}
	require.False(t, sig.IsSet())
}

func TestAudioCaptureFailureIsHardError(t *testing.T) {
	source := &scriptedSource{err: errors.New("device unplugged")}
	mon := &Audio{Source: source, Transcriber: &scriptedTranscriber{}, Detector: wordDetector{word: "stop"}}

	err := mon.Run(context.Background(), NewSignal())
	require.Error(t, err)
	require.Contains(t, err.Error(), "device unplugged")
}

func TestAudioTranscriptionFailureIsNoInput(t *testing.T) {
	source := &scriptedSource{windows: [][]int16{loud(800), loud(800)}}
	tr := &scriptedTranscriber{}
	mon := &Audio{Source: source, Transcriber: tr, Detector: wordDetector{word: "stop"}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sig := NewSignal()
	require.NoError(t, mon.Run(ctx, sig))
	require.False(t, sig.IsSet())
	require.EqualValues(t, 2, tr.calls.Load())
}

func TestChannelFiresOnTrigger(t *testing.T) {
	trig := NewTrigger()
	sig := NewSignal()
	done := make(chan error, 1)
	go func() { done <- Channel{Trigger: trig}.Run(context.Background(), sig) }()

	trig.Fire()
	require.NoError(t, <-done)
	require.True(t, sig.IsSet())
}

func TestChannelHonorsTokenQueuedBeforeRun(t *testing.T) {
	trig := NewTrigger()
	trig.Fire()

	sig := NewSignal()
	require.NoError(t, Channel{Trigger: trig}.Run(context.Background(), sig))
	require.True(t, sig.IsSet())
}

func TestTriggerDrainDiscardsPendingToken(t *testing.T) {
	trig := NewTrigger()
	trig.Fire()
	trig.Fire()
	trig.Drain()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sig := NewSignal()
	require.NoError(t, Channel{Trigger: trig}.Run(ctx, sig))
	require.False(t, sig.IsSet())
}

func TestMultiFirstWinsAndJoinsAll(t *testing.T) {
	var stopped atomic.Int32
	waiter := Func(func(ctx context.Context, _ *Signal) error {
		<-ctx.Done()
		stopped.Add(1)
		return nil
	})
	firer := Func(func(_ context.Context, sig *Signal) error {
		time.Sleep(10 * time.Millisecond)
		sig.Set()
		return nil
	})

	sig := NewSignal()
	require.NoError(t, Multi{waiter, firer, waiter}.Run(context.Background(), sig))
	require.True(t, sig.IsSet())
	require.EqualValues(t, 2, stopped.Load())
}

func TestMultiReportsMemberErrors(t *testing.T) {
	failing := Func(func(context.Context, *Signal) error { return errors.New("mic gone") })
	waiter := Func(func(ctx context.Context, _ *Signal) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := Multi{failing, waiter}.Run(ctx, NewSignal())
	require.Error(t, err)
	require.Contains(t, err.Error(), "mic gone")
}

func TestMultiEmptyWaitsForCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, Multi{}.Run(ctx, NewSignal()))
}
