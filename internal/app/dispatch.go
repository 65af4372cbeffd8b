package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/suzerain/internal/audio"
	"github.com/rbright/suzerain/internal/cli"
	"github.com/rbright/suzerain/internal/config"
	"github.com/rbright/suzerain/internal/monitor"
	"github.com/rbright/suzerain/internal/parser"
	"github.com/rbright/suzerain/internal/session"
	"github.com/rbright/suzerain/internal/transcribe"
)

// maxCaptureFailures bounds consecutive retryable transcription failures in listen mode.
const maxCaptureFailures = 3

func (r Runner) commandRun(ctx context.Context, loaded config.Loaded, inv cli.Invocation, logger *slog.Logger) int {
	rt, err := r.newRuntime(ctx, loaded, inv, logger, runtimeOptions{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.Close()

	return r.report(rt.ctrl.Dispatch(ctx, inv.Text()))
}

func (r Runner) commandREPL(ctx context.Context, loaded config.Loaded, inv cli.Invocation, logger *slog.Logger) int {
	rt, err := r.newRuntime(ctx, loaded, inv, logger, runtimeOptions{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.Close()

	code := 0
	for {
		fmt.Fprint(r.Stdout, "suzerain> ")
		line, err := rt.prompter.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.Stdout)
				return code
			}
			if ctx.Err() != nil {
				return session.ExitFailure
			}
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return session.ExitFailure
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return code
		}
		code = r.report(rt.ctrl.Dispatch(ctx, line))
		if ctx.Err() != nil {
			return code
		}
	}
}

func (r Runner) commandListen(ctx context.Context, loaded config.Loaded, inv cli.Invocation, logger *slog.Logger) int {
	cfg := loaded.Config

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if selection.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", selection.Warning)
	}
	recorder := audio.NewRecorder(selection.Device)

	vocab := transcribe.NewVocabulary(nil)
	batch, err := transcribe.NewBatch(cfg.Transcription, vocab)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	var live transcribe.Streaming
	if cfg.Audio.Capture == config.CaptureLive {
		if live, err = transcribe.NewStreaming(cfg.Transcription, cfg.Audio.MaxDuration, vocab); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	if target := strings.TrimSpace(cfg.Transcription.HealthTarget); target != "" {
		report, err := transcribe.CheckHealth(ctx, target, "", 3*time.Second)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: %v\n", err)
		}
		logger.Debug("speech backend health", "target", target, "status", report.Status, "raw", report.Raw, "latency_ms", report.Latency.Milliseconds())
	}

	opts := runtimeOptions{}
	if cfg.Monitor.Enable {
		opts.interrupt = func(d *parser.Dispatcher) monitor.Monitor {
			return &monitor.Audio{
				Source:      recorder,
				Transcriber: batch,
				Detector:    d.InterruptDetector(cfg.Monitor.MaxTokens),
				Window:      cfg.Monitor.Window,
				SilenceRMS:  cfg.Monitor.SilenceRMS,
				Logger:      logger,
			}
		}
	}
	rt, err := r.newRuntime(ctx, loaded, inv, logger, opts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.Close()
	rt.match.feedVocabulary(vocab)

	l := listener{
		cfg:      cfg,
		recorder: recorder,
		batch:    batch,
		live:     live,
		logger:   logger,
	}
	logger.Info("listening", "device", selection.Device.ID, "capture", cfg.Audio.Capture)

	code := 0
	failures := 0
	for {
		rt.console.Info(fmt.Sprintf("listening on %s…", selection.Device.Description))
		text, err := l.utterance(ctx)
		if ctx.Err() != nil {
			return code
		}
		if err != nil {
			if errors.Is(err, audio.ErrNoSpeech) {
				continue
			}
			var failure *transcribe.Failure
			if errors.As(err, &failure) {
				rt.console.Warn(failure.Hint())
				failures++
				if failure.Retryable() && cfg.Transcription.Retry && failures < maxCaptureFailures {
					continue
				}
			}
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return session.ExitFailure
		}
		failures = 0
		if strings.TrimSpace(text) == "" {
			continue
		}

		code = r.report(rt.ctrl.Dispatch(ctx, text))
		if inv.Once {
			return code
		}
	}
}

// listener captures one utterance in the configured mode and transcribes it.
type listener struct {
	cfg      config.Config
	recorder *audio.Recorder
	batch    transcribe.Batch
	live     transcribe.Streaming
	logger   *slog.Logger
}

func (l listener) utterance(ctx context.Context) (string, error) {
	if l.cfg.Audio.Capture == config.CaptureLive {
		return l.listenLive(ctx)
	}

	var (
		samples []int16
		err     error
	)
	if l.cfg.Audio.Capture == config.CaptureFixed {
		samples, err = l.recorder.Window(ctx, l.cfg.Audio.Record)
		if err == nil && audio.RMS(samples) < l.cfg.Audio.SilenceRMS {
			err = audio.ErrNoSpeech
		}
	} else {
		samples, err = l.recorder.Utterance(ctx, &audio.Endpointer{
			SilenceRMS: l.cfg.Audio.SilenceRMS,
			Hold:       l.cfg.Audio.SilenceHold,
			Max:        l.cfg.Audio.MaxDuration,
		})
	}
	if err != nil {
		return "", err
	}

	wav, err := audio.EncodeWAV(samples)
	if err != nil {
		return "", err
	}
	l.dump(wav)

	started := time.Now()
	text, err := l.batch.Transcribe(ctx, wav)
	l.logger.Debug("utterance transcribed",
		"duration_ms", audio.Duration(samples).Milliseconds(),
		"latency_ms", time.Since(started).Milliseconds(),
		"text", text,
	)
	return text, err
}

func (l listener) listenLive(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	capture, err := audio.StartCapture(ctx, l.recorder.Device())
	if err != nil {
		return "", err
	}
	defer capture.Close()

	text, err := l.live.Listen(ctx, capture.Chunks())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", audio.ErrNoSpeech
	}
	return text, nil
}

// dump keeps the last utterance on disk for debugging capture problems.
func (l listener) dump(wav []byte) {
	if !l.cfg.Debug.EnableAudioDump {
		return
	}
	dir, err := config.StateDir()
	if err != nil {
		return
	}
	path := filepath.Join(dir, "last-utterance.wav")
	if err := os.WriteFile(path, wav, 0o600); err != nil {
		l.logger.Warn("audio dump failed", "path", path, "error", err.Error())
	}
}

// report prints what the user needs to know about an outcome the console did not
// already cover and returns its exit code.
func (r Runner) report(out session.Outcome) int {
	switch out.Status {
	case session.StatusNoMatch:
		fmt.Fprintf(r.Stderr, "no command matched %q\n", out.Spoken)
	case session.StatusAmbiguous:
		names := make([]string, len(out.Candidates))
		for i, c := range out.Candidates {
			names[i] = c.Command.Phrase
		}
		fmt.Fprintf(r.Stderr, "ambiguous: %s\n", strings.Join(names, " | "))
	case session.StatusDeclined:
		msg := "declined"
		if out.Err != nil {
			msg = fmt.Sprintf("declined: %v", out.Err)
		}
		fmt.Fprintln(r.Stderr, msg)
	case session.StatusSpawnFailed, session.StatusFailed:
		if out.Err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", out.Err)
		}
	}
	return out.ExitCode
}
