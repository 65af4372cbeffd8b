package audio

import (
	"context"
	"errors"
	"time"
)

// ErrNoSpeech is returned when an endpointed capture ends without crossing the
// silence threshold.
var ErrNoSpeech = errors.New("no speech detected")

// Endpointer decides when an utterance is over: after Hold of silence following
// speech, or after Max regardless.
type Endpointer struct {
	SilenceRMS float64
	Hold       time.Duration
	Max        time.Duration

	heard   bool
	silent  time.Duration
	elapsed time.Duration
}

// Push feeds one chunk and reports whether capture should stop.
func (e *Endpointer) Push(samples []int16) bool {
	d := Duration(samples)
	e.elapsed += d
	if RMS(samples) >= e.SilenceRMS {
		e.heard = true
		e.silent = 0
	} else if e.heard {
		e.silent += d
	}
	if e.Max > 0 && e.elapsed >= e.Max {
		return true
	}
	return e.heard && e.Hold > 0 && e.silent >= e.Hold
}

// Heard reports whether any chunk crossed the threshold.
func (e *Endpointer) Heard() bool { return e.heard }

// Recorder opens short-lived capture streams on one device.
type Recorder struct {
	device Device
}

// NewRecorder binds a recorder to device.
func NewRecorder(device Device) *Recorder {
	return &Recorder{device: device}
}

// Device reports the bound device.
func (r *Recorder) Device() Device { return r.device }

// Window records exactly d of audio, or less when ctx ends first.
func (r *Recorder) Window(ctx context.Context, d time.Duration) ([]int16, error) {
	want := int(d.Seconds() * bytesPerSecond)
	return r.collect(ctx, func(pcm []byte, _ []int16) bool {
		return len(pcm) >= want
	})
}

// Utterance records until the endpointer fires or ctx ends.
func (r *Recorder) Utterance(ctx context.Context, ep *Endpointer) ([]int16, error) {
	samples, err := r.collect(ctx, func(_ []byte, chunk []int16) bool {
		return ep.Push(chunk)
	})
	if err != nil {
		return nil, err
	}
	if !ep.Heard() {
		return nil, ErrNoSpeech
	}
	return samples, nil
}

func (r *Recorder) collect(ctx context.Context, done func(pcm []byte, chunk []int16) bool) ([]int16, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	capture, err := StartCapture(ctx, r.device)
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	var pcm []byte
	for {
		select {
		case <-ctx.Done():
			return Samples(pcm), ctx.Err()
		case chunk, ok := <-capture.Chunks():
			if !ok {
				return Samples(pcm), nil
			}
			pcm = append(pcm, chunk...)
			if done(pcm, Samples(chunk)) {
				return Samples(pcm), nil
			}
		}
	}
}
