package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/suzerain/internal/audio"
	"golang.org/x/sync/errgroup"
)

// Monitor runs until ctx ends or it sets sig. Returning nil without setting sig is a
// normal stop.
type Monitor interface {
	Run(ctx context.Context, sig *Signal) error
}

// Func adapts a function to Monitor.
type Func func(ctx context.Context, sig *Signal) error

// Run calls f.
func (f Func) Run(ctx context.Context, sig *Signal) error { return f(ctx, sig) }

// WindowSource captures a fixed span of ambient audio.
type WindowSource interface {
	Window(ctx context.Context, d time.Duration) ([]int16, error)
}

// Transcriber turns a short WAV clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Detector reports whether text is an interrupt phrase.
type Detector interface {
	Detect(text string) (phrase string, ok bool)
}

// Audio listens in short windows and fires on an isolated escape phrase.
type Audio struct {
	Source      WindowSource
	Transcriber Transcriber
	Detector    Detector
	Window      time.Duration
	SilenceRMS  float64
	Logger      *slog.Logger
}

// Run loops capture, gate, transcribe, detect.
func (a *Audio) Run(ctx context.Context, sig *Signal) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	window := a.Window
	if window <= 0 {
		window = 1500 * time.Millisecond
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		samples, err := a.Source.Window(ctx, window)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("capture interrupt window: %w", err)
		}

		rms := audio.RMS(samples)
		if rms < a.SilenceRMS {
			continue
		}

		wav, err := audio.EncodeWAV(samples)
		if err != nil {
			continue
		}
		text, err := a.Transcriber.Transcribe(ctx, wav)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Debug("interrupt transcription failed", "error", err.Error())
			continue
		}

		if phrase, ok := a.Detector.Detect(text); ok {
			logger.Info("interrupt heard", "phrase", phrase, "transcript", text, "rms", rms)
			sig.Set()
			return nil
		}
		logger.Debug("interrupt window ignored", "transcript", text, "rms", rms)
	}
}

// Channel fires when a token arrives on a Trigger. Used for text mode and out-of-band
// stop requests.
type Channel struct {
	Trigger *Trigger
}

// Run waits for a token. A token queued before Run counts; owners Drain the trigger
// before starting a session.
func (c Channel) Run(ctx context.Context, sig *Signal) error {
	select {
	case <-ctx.Done():
		return nil
	case <-c.Trigger.ch:
		sig.Set()
		return nil
	}
}

// Trigger is a non-blocking, single-slot cancel token.
type Trigger struct {
	ch chan struct{}
}

// NewTrigger returns an empty trigger.
func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

// Fire queues a token unless one is already pending.
func (t *Trigger) Fire() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// Drain discards a pending token.
func (t *Trigger) Drain() {
	select {
	case <-t.ch:
	default:
	}
}

// Multi runs every monitor; the first to set the signal stops the rest. All members
// are joined before Run returns.
type Multi []Monitor

// Run implements Monitor.
func (m Multi) Run(ctx context.Context, sig *Signal) error {
	if len(m) == 0 {
		<-ctx.Done()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	for _, mon := range m {
		g.Go(func() error {
			err := mon.Run(ctx, sig)
			if sig.IsSet() {
				cancel()
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
