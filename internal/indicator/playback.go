package indicator

import (
	"fmt"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/suzerain/internal/config"
)

func emitCue(kind cueKind, cfg config.IndicatorConfig) error {
	c := loadCue(kind, cfg)
	if len(c.samples) == 0 {
		return nil
	}
	return play(c)
}

// play blocks until the clip has drained through pulse.
func play(c clip) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("suzerain"),
		pulse.ClientApplicationIconName("dialog-information"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	rest := c.samples
	stream, err := client.NewPlayback(
		pulse.Int16Reader(func(buf []int16) (int, error) {
			n := copy(buf, rest)
			rest = rest[n:]
			if len(rest) == 0 {
				return n, pulse.EndOfData
			}
			return n, nil
		}),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(c.rate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("suzerain cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}
