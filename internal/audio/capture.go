package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// frameBytes is 20ms of 16kHz mono s16.
	frameBytes = 640
	mediaName  = "suzerain listen"
)

// Capture streams fixed-size PCM frames from one Pulse source until stopped.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	done   chan struct{}

	mu       sync.Mutex
	stopped  bool
	residue  []byte
	inflight sync.WaitGroup
}

// StartCapture opens a 16kHz mono s16 record stream on device. The capture stops
// when ctx ends.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device)
	c.client = client
	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(frameBytes),
		pulse.RecordMediaName(mediaName),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	return c, nil
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		frames: make(chan []byte, 128),
		done:   make(chan struct{}),
	}
}

// Device returns the source being recorded.
func (c *Capture) Device() Device { return c.device }

// Chunks yields PCM frames. It closes after Close, once any partial frame has been
// delivered.
func (c *Capture) Chunks() <-chan []byte { return c.frames }

// Close stops the stream. It is safe to call more than once.
func (c *Capture) Close() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.inflight.Wait()

	if len(c.residue) > 0 {
		select {
		case c.frames <- c.residue:
		default:
		}
		c.residue = nil
	}
	close(c.frames)
}

// write receives PCM from pulse and slices it into frames.
func (c *Capture) write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	c.inflight.Add(1)
	defer c.inflight.Done()

	c.residue = append(c.residue, buf...)
	var out [][]byte
	for len(c.residue) >= frameBytes {
		out = append(out, append([]byte(nil), c.residue[:frameBytes]...))
		c.residue = c.residue[frameBytes:]
	}
	c.mu.Unlock()

	for _, frame := range out {
		select {
		case <-c.done:
			return 0, io.EOF
		case c.frames <- frame:
		}
	}
	return len(buf), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
